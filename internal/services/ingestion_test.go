package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aulagpt/aulagpt-backend/internal/clients/canvas"
	apperrors "github.com/aulagpt/aulagpt-backend/internal/pkg/errors"
	"github.com/aulagpt/aulagpt-backend/internal/repos"
	"github.com/aulagpt/aulagpt-backend/internal/types"
)

func TestFileClassification(t *testing.T) {
	cases := []struct {
		path    string
		allowed bool
		code    bool
		tabular bool
	}{
		{"apuntes.pdf", true, false, false},
		{"tema.docx", true, false, false},
		{"main.py", true, true, false},
		{"Main.JAVA", true, true, false},
		{"notas.csv", true, false, true},
		{"notas.xlsx", true, false, true},
		{"video.mp4", false, false, false},
		{"sin_extension", false, false, false},
	}
	for _, tc := range cases {
		if got := isAllowedFile(tc.path); got != tc.allowed {
			t.Errorf("isAllowedFile(%q) = %v, want %v", tc.path, got, tc.allowed)
		}
		if got := isCodeFile(tc.path); got != tc.code {
			t.Errorf("isCodeFile(%q) = %v, want %v", tc.path, got, tc.code)
		}
		if got := isTabularFile(tc.path); got != tc.tabular {
			t.Errorf("isTabularFile(%q) = %v, want %v", tc.path, got, tc.tabular)
		}
	}
}

func TestReportFilename(t *testing.T) {
	if got := ReportFilename("/tmp/practica1.py"); got != "practica1_informe.txt" {
		t.Fatalf("ReportFilename = %q", got)
	}
}

type ingestFixture struct {
	pipeline  IngestionPipeline
	ai        *fakeAI
	processed repos.ProcessedFileRepo
	tempDir   string
	course    *types.Course
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	db := newTestDB(t)
	log := testLogger(t)
	ai := newFakeAI()
	tempDir := t.TempDir()

	processedRepo := repos.NewProcessedFileRepo(db, log)
	assistantRepo := repos.NewAssistantRepo(db, log)
	analysis := NewCodeAnalysisService(db, log, assistantRepo, ai, time.Millisecond, time.Second)
	pipeline := NewIngestionPipeline(db, log, processedRepo, analysis, ai, tempDir)

	analyzer := &types.Assistant{
		ID:       "asst_analyzer",
		Name:     "Analizador",
		Category: types.AssistantCategoryInternal,
		Subtype:  types.AssistantSubtypeCodeAnalyzer,
	}
	if err := db.Create(analyzer).Error; err != nil {
		t.Fatalf("seed analyzer: %v", err)
	}

	return &ingestFixture{
		pipeline:  pipeline,
		ai:        ai,
		processed: processedRepo,
		tempDir:   tempDir,
		course:    &types.Course{ID: "c1", Name: "Programming", VectorStoreID: "vs_1"},
	}
}

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestIngestRejectsUnsupportedFile(t *testing.T) {
	f := newIngestFixture(t)
	path := writeTempFile(t, t.TempDir(), "video.mp4", "binario")

	err := f.pipeline.Ingest(context.Background(), canvas.File{ID: 1, Filename: "video.mp4"}, path, f.course)
	if !errors.Is(err, apperrors.ErrUnsupportedFileType) {
		t.Fatalf("err = %v, want ErrUnsupportedFileType", err)
	}
}

func TestIngestRequiresVectorStore(t *testing.T) {
	f := newIngestFixture(t)
	path := writeTempFile(t, t.TempDir(), "tema.pdf", "contenido")
	course := &types.Course{ID: "c2", Name: "Sin indice"}

	err := f.pipeline.Ingest(context.Background(), canvas.File{ID: 1, Filename: "tema.pdf"}, path, course)
	if !errors.Is(err, apperrors.ErrConfigurationMissing) {
		t.Fatalf("err = %v, want ErrConfigurationMissing", err)
	}
}

func TestIngestDocumentUploadsRaw(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	path := writeTempFile(t, t.TempDir(), "tema.pdf", "contenido del tema")
	file := canvas.File{ID: 10, Filename: "tema.pdf", UpdatedAt: "2026-02-01T10:00:00Z"}

	if err := f.pipeline.Ingest(ctx, file, path, f.course); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if len(f.ai.uploaded) != 1 || f.ai.uploaded[0] != "tema.pdf" {
		t.Fatalf("uploads = %v", f.ai.uploaded)
	}
	if len(f.ai.attached) != 1 {
		t.Fatalf("attachments = %v", f.ai.attached)
	}

	record, err := f.processed.GetByFilename(ctx, nil, "tema.pdf", "c1")
	if err != nil {
		t.Fatalf("processed record: %v", err)
	}
	if record == nil {
		t.Fatal("ingest recorded nothing")
	}
	if record.RemoteFileID != "10" {
		t.Fatalf("remote id = %q", record.RemoteFileID)
	}
	if record.RemoteUpdatedAt != "2026-02-01 10:00:00" {
		t.Fatalf("stored timestamp = %q, want normalized", record.RemoteUpdatedAt)
	}
}

func TestIngestCodeFileUploadsReport(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	f.ai.reply = "Informe del analisis"
	path := writeTempFile(t, t.TempDir(), "practica1.py", "print('hola')")
	file := canvas.File{ID: 11, Filename: "practica1.py", UpdatedAt: "2026-02-01T10:00:00Z"}

	if err := f.pipeline.Ingest(ctx, file, path, f.course); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if len(f.ai.uploaded) != 1 || f.ai.uploaded[0] != "practica1_informe.txt" {
		t.Fatalf("uploads = %v, want the generated report", f.ai.uploaded)
	}
	// Generated report is removed once the ingest finishes.
	if _, err := os.Stat(filepath.Join(f.tempDir, "practica1_informe.txt")); !os.IsNotExist(err) {
		t.Fatalf("report not cleaned up: %v", err)
	}
}

func TestIngestTabularFileUploadsTextRendering(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	path := writeTempFile(t, t.TempDir(), "notas.csv", "alumno,nota\nana,9\n")
	file := canvas.File{ID: 12, Filename: "notas.csv", UpdatedAt: "2026-02-01T10:00:00Z"}

	if err := f.pipeline.Ingest(ctx, file, path, f.course); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(f.ai.uploaded) != 1 || f.ai.uploaded[0] != "notas.csv.txt" {
		t.Fatalf("uploads = %v, want the text rendering", f.ai.uploaded)
	}
}

func TestIngestDeletesOrphanWhenAttachFails(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	f.ai.attachErr = errors.New("vector store unavailable")
	path := writeTempFile(t, t.TempDir(), "tema.pdf", "contenido")
	file := canvas.File{ID: 13, Filename: "tema.pdf", UpdatedAt: "2026-02-01T10:00:00Z"}

	err := f.pipeline.Ingest(ctx, file, path, f.course)
	if err == nil {
		t.Fatal("ingest succeeded despite attach failure")
	}
	if len(f.ai.deleted) != 1 {
		t.Fatalf("orphan deletions = %v, want 1", f.ai.deleted)
	}
	// No record may claim the file was indexed.
	if record, _ := f.processed.GetByFilename(ctx, nil, "tema.pdf", "c1"); record != nil {
		t.Fatal("failed ingest left a processed record")
	}
}
