package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/aulagpt/aulagpt-backend/internal/clients/openai"
	"github.com/aulagpt/aulagpt-backend/internal/logger"
	apperrors "github.com/aulagpt/aulagpt-backend/internal/pkg/errors"
	"github.com/aulagpt/aulagpt-backend/internal/repos"
	"github.com/aulagpt/aulagpt-backend/internal/types"
)

type lifecycleFixture struct {
	db        *gorm.DB
	log       *logger.Logger
	ai        *fakeAI
	queryRepo repos.QueryRepo
	lifecycle QueryLifecycle
}

func newLifecycleFixture(t *testing.T, ceiling int) *lifecycleFixture {
	t.Helper()
	db := newTestDB(t)
	log := testLogger(t)
	ai := newFakeAI()

	queryRepo := repos.NewQueryRepo(db, log)
	messageRepo := repos.NewMessageRepo(db, log)
	assistantRepo := repos.NewAssistantRepo(db, log)
	conversationRepo := repos.NewConversationRepo(db, log)
	usageRepo := repos.NewMonthlyUsageRepo(db, log)

	if ceiling <= 0 {
		ceiling = 100
	}
	limiter := NewUsageLimiter(db, log, usageRepo, ceiling)
	conversations := NewConversationStore(db, log, conversationRepo, ai)
	lifecycle := NewQueryLifecycle(
		db, log,
		queryRepo, messageRepo, assistantRepo,
		conversations, limiter, ai,
		time.Millisecond, time.Second,
	)

	assistant := &types.Assistant{ID: "asst_1", Name: "Tutor", Category: types.AssistantCategoryCourse}
	course := &types.Course{
		ID:            "c1",
		Name:          "Programming",
		VectorStoreID: "vs_1",
		Assistants:    []*types.Assistant{assistant},
	}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}

	return &lifecycleFixture{db: db, log: log, ai: ai, queryRepo: queryRepo, lifecycle: lifecycle}
}

func TestSubmitRejectsUnboundAssistant(t *testing.T) {
	f := newLifecycleFixture(t, 0)

	_, err := f.lifecycle.Submit(context.Background(), "u1", "c1", "asst_other", "hola")
	if !errors.Is(err, apperrors.ErrConfigurationMissing) {
		t.Fatalf("err = %v, want ErrConfigurationMissing", err)
	}
}

func TestSubmitRejectsEmptyQuestion(t *testing.T) {
	f := newLifecycleFixture(t, 0)

	_, err := f.lifecycle.Submit(context.Background(), "u1", "c1", "asst_1", "   ")
	if !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestSubmitConsumesQuotaOnce(t *testing.T) {
	f := newLifecycleFixture(t, 1)
	ctx := context.Background()

	query, err := f.lifecycle.Submit(ctx, "u1", "c1", "asst_1", "primera pregunta")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if query.Status != types.QueryStatusPending {
		t.Fatalf("status = %q, want pending", query.Status)
	}

	// Processing the query must not consume additional quota, so the next
	// submit has to fail on the ceiling, not on anything else.
	if err := f.lifecycle.Process(ctx, query.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	_, err = f.lifecycle.Submit(ctx, "u1", "c1", "asst_1", "segunda pregunta")
	if !errors.Is(err, apperrors.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
}

func TestProcessCompletesQuery(t *testing.T) {
	f := newLifecycleFixture(t, 0)
	ctx := context.Background()
	f.ai.reply = "La respuesta es 42【4:0†apuntes.pdf】"

	query, err := f.lifecycle.Submit(ctx, "u1", "c1", "asst_1", "cuanto es?")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := f.lifecycle.Process(ctx, query.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	status, err := f.lifecycle.Status(ctx, query.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != types.QueryStatusCompleted {
		t.Fatalf("state = %q, want completed", status.State)
	}
	if status.Answer == nil || !strings.Contains(*status.Answer, "La respuesta es 42") {
		t.Fatalf("answer = %v", status.Answer)
	}
	if strings.Contains(*status.Answer, "【") {
		t.Fatalf("citation markers left in answer: %q", *status.Answer)
	}
	if !strings.Contains(*status.Answer, "apuntes.pdf") {
		t.Fatalf("sources section missing: %q", *status.Answer)
	}
	if status.ThreadID == nil || *status.ThreadID == "" {
		t.Fatal("thread id not recorded")
	}

	// The exchange lands in the conversation history as one message row.
	messages, err := repos.NewMessageRepo(f.db, f.log).ListByThreadID(ctx, nil, *status.ThreadID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(messages))
	}
}

func TestProcessMarksRunFailureAsError(t *testing.T) {
	f := newLifecycleFixture(t, 0)
	ctx := context.Background()
	f.ai.runStatuses = []string{"failed"}
	f.ai.runErr = &openai.RunError{Code: "server_error", Message: "boom"}

	query, err := f.lifecycle.Submit(ctx, "u1", "c1", "asst_1", "pregunta")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := f.lifecycle.Process(ctx, query.ID); err != nil {
		t.Fatalf("process returned batch error: %v", err)
	}

	status, err := f.lifecycle.Status(ctx, query.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != types.QueryStatusError {
		t.Fatalf("state = %q, want error", status.State)
	}
	if status.Answer == nil || *status.Answer == "" {
		t.Fatal("error cause not recorded on query")
	}
}

func TestProcessIsIdempotentOnTerminalQuery(t *testing.T) {
	f := newLifecycleFixture(t, 0)
	ctx := context.Background()

	query, err := f.lifecycle.Submit(ctx, "u1", "c1", "asst_1", "pregunta")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := f.lifecycle.Process(ctx, query.ID); err != nil {
		t.Fatalf("first process: %v", err)
	}
	first, _ := f.lifecycle.Status(ctx, query.ID)

	// Second pass must not change the stored outcome or talk to the API.
	runsBefore := f.ai.runSeq
	if err := f.lifecycle.Process(ctx, query.ID); err != nil {
		t.Fatalf("second process: %v", err)
	}
	second, _ := f.lifecycle.Status(ctx, query.ID)
	if *first.Answer != *second.Answer || first.State != second.State {
		t.Fatal("terminal query changed on re-process")
	}
	if f.ai.runSeq != runsBefore {
		t.Fatal("re-process created a new run")
	}
}

func TestStatusUnknownQuery(t *testing.T) {
	f := newLifecycleFixture(t, 0)

	_, err := f.lifecycle.Status(context.Background(), "qry_missing")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
