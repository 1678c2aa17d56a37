package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aulagpt/aulagpt-backend/internal/clients/openai"
	"github.com/aulagpt/aulagpt-backend/internal/logger"
	"github.com/aulagpt/aulagpt-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&types.User{},
		&types.Course{},
		&types.Assistant{},
		&types.Conversation{},
		&types.Query{},
		&types.Message{},
		&types.MonthlyUsage{},
		&types.ProcessedFile{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.NewNop()
}

// fakeAI is an in-memory stand-in for the remote assistant API. Runs
// complete immediately unless runStatuses scripts a status sequence.
type fakeAI struct {
	mu sync.Mutex

	threadSeq int
	runSeq    int
	fileSeq   int

	// reply is what the assistant answers on every completed run.
	reply string
	// runStatuses, when non-empty, is consumed one status per GetRun call.
	runStatuses []string
	runErr      *openai.RunError

	createThreadErr error
	createRunErr    error
	uploadErr       error
	attachErr       error

	messages map[string][]*openai.ThreadMessage
	uploaded []string
	deleted  []string
	attached []string
}

func newFakeAI() *fakeAI {
	return &fakeAI{
		reply:    "respuesta",
		messages: map[string][]*openai.ThreadMessage{},
	}
}

func (f *fakeAI) CreateThread(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createThreadErr != nil {
		return "", f.createThreadErr
	}
	f.threadSeq++
	id := fmt.Sprintf("thread_%d", f.threadSeq)
	f.messages[id] = nil
	return id, nil
}

func (f *fakeAI) CreateThreadMessage(ctx context.Context, threadID, role, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := &openai.ThreadMessage{
		ID:   fmt.Sprintf("m_%d", len(f.messages[threadID])+1),
		Role: role,
		Content: []openai.MessageContent{
			{Type: "text", Text: &openai.MessageText{Value: content}},
		},
	}
	// Newest first, matching the remote listing order.
	f.messages[threadID] = append([]*openai.ThreadMessage{msg}, f.messages[threadID]...)
	return nil
}

func (f *fakeAI) CreateRun(ctx context.Context, threadID, assistantID string) (*openai.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createRunErr != nil {
		return nil, f.createRunErr
	}
	f.runSeq++
	return &openai.Run{
		ID:       fmt.Sprintf("run_%d", f.runSeq),
		ThreadID: threadID,
		Status:   openai.RunStatusQueued,
	}, nil
}

func (f *fakeAI) GetRun(ctx context.Context, threadID, runID string) (*openai.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	status := openai.RunStatusCompleted
	if len(f.runStatuses) > 0 {
		status = f.runStatuses[0]
		f.runStatuses = f.runStatuses[1:]
	}
	run := &openai.Run{ID: runID, ThreadID: threadID, Status: status, LastError: f.runErr}

	if status == openai.RunStatusCompleted {
		reply := &openai.ThreadMessage{
			ID:   fmt.Sprintf("m_reply_%s", runID),
			Role: openai.RoleAssistant,
			Content: []openai.MessageContent{
				{Type: "text", Text: &openai.MessageText{Value: f.reply}},
			},
		}
		f.messages[threadID] = append([]*openai.ThreadMessage{reply}, f.messages[threadID]...)
	}
	return run, nil
}

func (f *fakeAI) ListMessages(ctx context.Context, threadID string) ([]*openai.ThreadMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*openai.ThreadMessage, len(f.messages[threadID]))
	copy(out, f.messages[threadID])
	return out, nil
}

func (f *fakeAI) UploadFile(ctx context.Context, filename string, content io.Reader, purpose string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.fileSeq++
	id := fmt.Sprintf("file_%d", f.fileSeq)
	f.uploaded = append(f.uploaded, filename)
	return id, nil
}

func (f *fakeAI) DeleteFile(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, fileID)
	return nil
}

func (f *fakeAI) AttachToVectorStore(ctx context.Context, vectorStoreID, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attachErr != nil {
		return f.attachErr
	}
	f.attached = append(f.attached, fileID)
	return nil
}

func (f *fakeAI) ListVectorStoreFiles(ctx context.Context, vectorStoreID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.attached))
	copy(out, f.attached)
	return out, nil
}
