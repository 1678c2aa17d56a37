package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/aulagpt/aulagpt-backend/internal/clients/canvas"
	"github.com/aulagpt/aulagpt-backend/internal/clients/openai"
	redisclient "github.com/aulagpt/aulagpt-backend/internal/clients/redis"
	"github.com/aulagpt/aulagpt-backend/internal/logger"
	"github.com/aulagpt/aulagpt-backend/internal/normalization"
	"github.com/aulagpt/aulagpt-backend/internal/repos"
	"github.com/aulagpt/aulagpt-backend/internal/types"
)

// DefaultSyncWindow is the minimum gap between two file syncs of the same
// course.
const DefaultSyncWindow = 30 * time.Minute

// DiffFiles selects the remote files that need (re)ingestion: those with no
// known record, and those whose normalized last-modified timestamp differs
// from the stored one. Files that only exist locally (deleted remotely) are
// left alone; deletion is not propagated.
func DiffFiles(remote []canvas.File, known []*types.ProcessedFile) []canvas.File {
	byRemoteID := make(map[string]*types.ProcessedFile, len(known))
	for _, record := range known {
		if record != nil {
			byRemoteID[record.RemoteFileID] = record
		}
	}

	var changed []canvas.File
	for _, file := range remote {
		record, ok := byRemoteID[file.RemoteID()]
		if !ok {
			changed = append(changed, file)
			continue
		}
		// Compare normalized forms only; the remote listing and the store
		// do not share a textual representation.
		if normalization.NormalizeTimestamp(file.UpdatedAt) != normalization.NormalizeTimestamp(record.RemoteUpdatedAt) {
			changed = append(changed, file)
		}
	}
	return changed
}

// FileSyncService keeps the retrieval index in step with each course's
// remote file listing.
type FileSyncService interface {
	// SyncAll visits every course, honoring the per-course throttle
	// window. Failures are isolated per course.
	SyncAll(ctx context.Context)
	// SyncCourse runs one detection + ingestion pass unconditionally.
	SyncCourse(ctx context.Context, course *types.Course) error
}

type fileSyncService struct {
	db  *gorm.DB
	log *logger.Logger

	courseRepo    repos.CourseRepo
	processedRepo repos.ProcessedFileRepo
	files         canvas.Client
	pipeline      IngestionPipeline
	throttle      redisclient.SyncThrottle
	ai            openai.Client

	window  time.Duration
	tempDir string
}

func NewFileSyncService(
	db *gorm.DB,
	baseLog *logger.Logger,
	courseRepo repos.CourseRepo,
	processedRepo repos.ProcessedFileRepo,
	files canvas.Client,
	pipeline IngestionPipeline,
	throttle redisclient.SyncThrottle,
	ai openai.Client,
	window time.Duration,
	tempDir string,
) FileSyncService {
	if window <= 0 {
		window = DefaultSyncWindow
	}
	return &fileSyncService{
		db:            db,
		log:           baseLog.With("service", "FileSyncService"),
		courseRepo:    courseRepo,
		processedRepo: processedRepo,
		files:         files,
		pipeline:      pipeline,
		throttle:      throttle,
		ai:            ai,
		window:        window,
		tempDir:       tempDir,
	}
}

func (fs *fileSyncService) SyncAll(ctx context.Context) {
	courses, err := fs.courseRepo.List(ctx, nil)
	if err != nil {
		fs.log.Error("Could not list courses for sync", "error", err)
		return
	}

	for _, course := range courses {
		if course == nil {
			continue
		}
		allowed, err := fs.throttle.Allow(ctx, course.ID, fs.window)
		if err != nil {
			fs.log.Warn("Sync throttle check failed, skipping course", "course_id", course.ID, "error", err)
			continue
		}
		if !allowed {
			continue
		}
		if err := fs.SyncCourse(ctx, course); err != nil {
			// One broken course must not stall the others.
			fs.log.Error("Course sync failed", "course_id", course.ID, "error", err)
		}
	}
}

func (fs *fileSyncService) SyncCourse(ctx context.Context, course *types.Course) error {
	log := fs.log.With("course_id", course.ID)

	remote, err := fs.files.ListCourseFiles(ctx, course.ID)
	if err != nil {
		return fmt.Errorf("list remote files: %w", err)
	}
	if len(remote) == 0 {
		log.Debug("No remote files for course")
		return nil
	}

	known, err := fs.processedRepo.ListByCourseID(ctx, nil, course.ID)
	if err != nil {
		return fmt.Errorf("load processed files: %w", err)
	}

	changed := DiffFiles(remote, known)
	if len(changed) == 0 {
		log.Debug("No new or updated files")
		return nil
	}
	log.Info("Detected new or updated files", "count", len(changed))

	for _, file := range changed {
		if err := fs.ingestOne(ctx, file, course); err != nil {
			// Per-file isolation: log and move on.
			log.Error("File ingestion failed", "file", file.Filename, "error", err)
		}
	}

	fs.reconcileIndex(ctx, log, course)
	return nil
}

// reconcileIndex compares the remote vector store against the local records
// after an ingest pass. Drift is reported, not repaired; the next pass
// re-ingests whatever the diff still flags.
func (fs *fileSyncService) reconcileIndex(ctx context.Context, log *logger.Logger, course *types.Course) {
	if fs.ai == nil || course.VectorStoreID == "" {
		return
	}
	indexed, err := fs.ai.ListVectorStoreFiles(ctx, course.VectorStoreID)
	if err != nil {
		log.Warn("Could not list vector store files", "error", err)
		return
	}
	known, err := fs.processedRepo.ListByCourseID(ctx, nil, course.ID)
	if err != nil {
		log.Warn("Could not reload processed files", "error", err)
		return
	}

	recorded := make(map[string]bool, len(known))
	for _, record := range known {
		if record != nil {
			recorded[record.IndexFileID] = true
		}
	}
	orphans := 0
	for _, fileID := range indexed {
		if !recorded[fileID] {
			orphans++
		}
	}
	if orphans > 0 {
		log.Warn("Vector store holds files with no local record", "indexed", len(indexed), "orphans", orphans)
	} else {
		log.Debug("Vector store reconciled", "indexed", len(indexed))
	}
}

func (fs *fileSyncService) ingestOne(ctx context.Context, file canvas.File, course *types.Course) error {
	localPath, err := fs.files.DownloadFile(ctx, file, fs.tempDir)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(localPath); rmErr != nil && !os.IsNotExist(rmErr) {
			fs.log.Warn("Could not remove downloaded file", "path", localPath, "error", rmErr)
		}
	}()

	return fs.pipeline.Ingest(ctx, file, localPath, course)
}
