package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"github.com/aulagpt/aulagpt-backend/internal/clients/canvas"
	"github.com/aulagpt/aulagpt-backend/internal/clients/openai"
	"github.com/aulagpt/aulagpt-backend/internal/logger"
	"github.com/aulagpt/aulagpt-backend/internal/normalization"
	apperrors "github.com/aulagpt/aulagpt-backend/internal/pkg/errors"
	"github.com/aulagpt/aulagpt-backend/internal/repos"
	"github.com/aulagpt/aulagpt-backend/internal/types"
)

// Extension allow-lists. Document extensions are indexed as-is (tabular ones
// after conversion); code extensions go through the analyzer assistant.
var documentExtensions = map[string]bool{
	"pdf": true, "doc": true, "docx": true, "xlsx": true, "csv": true,
	"txt": true, "md": true, "json": true, "xls": true,
}

var codeExtensions = map[string]bool{
	"py": true, "r": true, "rmd": true, "cpp": true, "c": true,
	"java": true, "js": true, "ts": true, "html": true, "css": true,
	"ipynb": true, "sh": true, "sql": true,
}

var tabularExtensions = map[string]bool{
	"csv": true, "xls": true, "xlsx": true,
}

func fileExtension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

func isAllowedFile(path string) bool {
	ext := fileExtension(path)
	return documentExtensions[ext] || codeExtensions[ext]
}

func isCodeFile(path string) bool    { return codeExtensions[fileExtension(path)] }
func isTabularFile(path string) bool { return tabularExtensions[fileExtension(path)] }

// IngestionPipeline classifies a downloaded course file, transforms it when
// needed (tabular to text, code to an analysis report), uploads the
// resulting artifact to the remote file store, attaches it to the course's
// vector index, and records the outcome.
type IngestionPipeline interface {
	Ingest(ctx context.Context, file canvas.File, localPath string, course *types.Course) error
}

type ingestionPipeline struct {
	db  *gorm.DB
	log *logger.Logger

	processedRepo repos.ProcessedFileRepo
	analysis      CodeAnalysisService
	ai            openai.Client

	tempDir string
}

func NewIngestionPipeline(db *gorm.DB, baseLog *logger.Logger, processedRepo repos.ProcessedFileRepo, analysis CodeAnalysisService, ai openai.Client, tempDir string) IngestionPipeline {
	return &ingestionPipeline{
		db:            db,
		log:           baseLog.With("service", "IngestionPipeline"),
		processedRepo: processedRepo,
		analysis:      analysis,
		ai:            ai,
		tempDir:       tempDir,
	}
}

func (ip *ingestionPipeline) Ingest(ctx context.Context, file canvas.File, localPath string, course *types.Course) error {
	if !isAllowedFile(localPath) {
		return fmt.Errorf("%s: %w", filepath.Base(localPath), apperrors.ErrUnsupportedFileType)
	}
	if course.VectorStoreID == "" {
		return fmt.Errorf("course %s has no vector store: %w", course.ID, apperrors.ErrConfigurationMissing)
	}

	log := ip.log.With("file", file.Filename, "course_id", course.ID)

	uploadPath, uploadName, tempArtifact, err := ip.prepareArtifact(ctx, localPath, course.ID, log)
	if err != nil {
		return err
	}
	// Generated artifacts never outlive the ingest attempt; reuse only
	// kicks in when a previous removal failed and the file survived.
	if tempArtifact != "" {
		defer func() {
			if rmErr := os.Remove(tempArtifact); rmErr != nil && !os.IsNotExist(rmErr) {
				log.Warn("Could not remove temp artifact", "path", tempArtifact, "error", rmErr)
			}
		}()
	}

	src, err := os.Open(uploadPath)
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", uploadPath, err)
	}
	fileID, err := ip.ai.UploadFile(ctx, uploadName, src, openai.PurposeAssistants)
	_ = src.Close()
	if err != nil {
		return fmt.Errorf("upload %s: %w", uploadName, err)
	}

	if err := ip.ai.AttachToVectorStore(ctx, course.VectorStoreID, fileID); err != nil {
		ip.deleteOrphan(ctx, log, fileID)
		return fmt.Errorf("attach %s to vector store: %w", uploadName, err)
	}

	record := &types.ProcessedFile{
		RemoteFileID:    file.RemoteID(),
		CourseID:        course.ID,
		Filename:        uploadName,
		RemoteUpdatedAt: normalization.NormalizeTimestamp(file.UpdatedAt),
		IndexFileID:     fileID,
	}
	if err := ip.processedRepo.Upsert(ctx, nil, record); err != nil {
		ip.deleteOrphan(ctx, log, fileID)
		return fmt.Errorf("record processed file: %w", err)
	}

	log.Info("File ingested", "artifact", uploadName, "index_file_id", fileID)
	return nil
}

// prepareArtifact resolves what actually gets uploaded for a file: the raw
// document, a tab-separated rendering, or a generated analysis report. The
// returned tempArtifact is non-empty only when this call generated it.
func (ip *ingestionPipeline) prepareArtifact(ctx context.Context, localPath, courseID string, log *logger.Logger) (uploadPath, uploadName, tempArtifact string, err error) {
	switch {
	case isCodeFile(localPath):
		reportName := ReportFilename(localPath)
		reportPath := filepath.Join(ip.tempDir, reportName)

		if ip.artifactReusable(ctx, reportName, courseID, reportPath) {
			log.Debug("Reusing existing analysis report", "report", reportName)
			return reportPath, reportName, "", nil
		}

		report, aerr := ip.analysis.Analyze(ctx, localPath)
		if aerr != nil {
			return "", "", "", aerr
		}
		if werr := os.WriteFile(reportPath, []byte(report), 0o644); werr != nil {
			return "", "", "", fmt.Errorf("write analysis report: %w", werr)
		}
		return reportPath, reportName, reportPath, nil

	case isTabularFile(localPath):
		txtName := filepath.Base(localPath) + ".txt"
		txtPath := filepath.Join(ip.tempDir, txtName)

		if ip.artifactReusable(ctx, txtName, courseID, txtPath) {
			log.Debug("Reusing existing text rendering", "artifact", txtName)
			return txtPath, txtName, "", nil
		}

		if cerr := ConvertTabularToText(localPath, txtPath); cerr != nil {
			return "", "", "", cerr
		}
		return txtPath, txtName, txtPath, nil

	default:
		return localPath, filepath.Base(localPath), "", nil
	}
}

// artifactReusable reports whether a derived artifact was already ingested
// for this course and still exists on disk.
func (ip *ingestionPipeline) artifactReusable(ctx context.Context, artifactName, courseID, artifactPath string) bool {
	record, err := ip.processedRepo.GetByFilename(ctx, nil, artifactName, courseID)
	if err != nil || record == nil {
		return false
	}
	_, statErr := os.Stat(artifactPath)
	return statErr == nil
}

// deleteOrphan removes a remote upload that never made it into the index.
// Best effort: a leaked file costs storage, not correctness.
func (ip *ingestionPipeline) deleteOrphan(ctx context.Context, log *logger.Logger, fileID string) {
	if err := ip.ai.DeleteFile(ctx, fileID); err != nil {
		log.Warn("Could not delete orphaned upload", "file_id", fileID, "error", err)
	}
}
