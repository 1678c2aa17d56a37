package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/aulagpt/aulagpt-backend/internal/clients/openai"
	"github.com/aulagpt/aulagpt-backend/internal/logger"
	apperrors "github.com/aulagpt/aulagpt-backend/internal/pkg/errors"
	"github.com/aulagpt/aulagpt-backend/internal/repos"
	"github.com/aulagpt/aulagpt-backend/internal/types"
)

const (
	// DefaultRunPollInterval is how often a pending run's status is
	// re-fetched while it is queued or in progress.
	DefaultRunPollInterval = 1 * time.Second
	// DefaultRunPollTimeout bounds the poll loop. The original system
	// polled without bound and relied on the remote run expiring; the cap
	// makes the worst case explicit.
	DefaultRunPollTimeout = 10 * time.Minute
)

// QueryStatus is the polling contract consumed by the front end.
type QueryStatus struct {
	State    string  `json:"state"`
	Answer   *string `json:"answer"`
	ThreadID *string `json:"thread_id"`
}

// QueryLifecycle owns the pending -> completed/error transition of a
// submitted query: dispatch to the remote assistant, run polling, response
// post-processing, and persistence.
type QueryLifecycle interface {
	// Submit creates a pending query and returns immediately; it never
	// blocks on remote completion. ErrQuotaExceeded means the user hit the
	// monthly ceiling and no query was created.
	Submit(ctx context.Context, userID, courseID, assistantID, question string) (*types.Query, error)
	// Process drives one pending query to a terminal state. Calling it on
	// a query that already completed or errored is a no-op.
	Process(ctx context.Context, queryID string) error
	Status(ctx context.Context, queryID string) (*QueryStatus, error)
}

type queryLifecycle struct {
	db  *gorm.DB
	log *logger.Logger

	queryRepo     repos.QueryRepo
	messageRepo   repos.MessageRepo
	assistantRepo repos.AssistantRepo

	conversations ConversationStore
	limiter       UsageLimiter
	ai            openai.Client

	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewQueryLifecycle(
	db *gorm.DB,
	baseLog *logger.Logger,
	queryRepo repos.QueryRepo,
	messageRepo repos.MessageRepo,
	assistantRepo repos.AssistantRepo,
	conversations ConversationStore,
	limiter UsageLimiter,
	ai openai.Client,
	pollInterval time.Duration,
	pollTimeout time.Duration,
) QueryLifecycle {
	if pollInterval <= 0 {
		pollInterval = DefaultRunPollInterval
	}
	if pollTimeout <= 0 {
		pollTimeout = DefaultRunPollTimeout
	}
	return &queryLifecycle{
		db:            db,
		log:           baseLog.With("service", "QueryLifecycle"),
		queryRepo:     queryRepo,
		messageRepo:   messageRepo,
		assistantRepo: assistantRepo,
		conversations: conversations,
		limiter:       limiter,
		ai:            ai,
		pollInterval:  pollInterval,
		pollTimeout:   pollTimeout,
	}
}

func (ql *queryLifecycle) Submit(ctx context.Context, userID, courseID, assistantID, question string) (*types.Query, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question must not be empty: %w", apperrors.ErrInvalidArgument)
	}
	if assistantID == "" {
		return nil, fmt.Errorf("assistant must be selected: %w", apperrors.ErrInvalidArgument)
	}

	bound, err := ql.assistantRepo.ListByCourseID(ctx, nil, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course assistants: %w", err)
	}
	found := false
	for _, a := range bound {
		if a != nil && a.ID == assistantID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("assistant %s is not configured for course %s: %w", assistantID, courseID, apperrors.ErrConfigurationMissing)
	}

	var query *types.Query
	err = ql.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		allowed, err := ql.limiter.CheckAndIncrement(ctx, tx, userID, courseID)
		if err != nil {
			return err
		}
		if !allowed {
			return apperrors.ErrQuotaExceeded
		}

		query = &types.Query{
			ID:          "qry_" + uuid.NewString(),
			UserID:      userID,
			CourseID:    courseID,
			AssistantID: assistantID,
			Kind:        types.QueryKindGeneral,
			Status:      types.QueryStatusPending,
			Question:    question,
			CreatedAt:   time.Now(),
		}
		if _, err := ql.queryRepo.Create(ctx, tx, query); err != nil {
			return fmt.Errorf("create query: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ql.log.Info("Query submitted", "query_id", query.ID, "user_id", userID, "course_id", courseID)
	return query, nil
}

func (ql *queryLifecycle) Process(ctx context.Context, queryID string) error {
	query, err := ql.queryRepo.GetByID(ctx, nil, queryID)
	if err != nil {
		return fmt.Errorf("load query %s: %w", queryID, err)
	}
	if query.Terminal() {
		// Already claimed by an earlier invocation; re-processing a
		// terminal query must not change it.
		return nil
	}

	log := ql.log.With("query_id", query.ID, "user_id", query.UserID, "course_id", query.CourseID)

	conv, err := ql.conversations.GetOrCreate(ctx, query.UserID, query.CourseID, query.AssistantID)
	if err != nil {
		ql.markError(ctx, log, query.ID, fmt.Errorf("create conversation: %w", err))
		return nil
	}

	answer, err := ql.runExchange(ctx, conv.ThreadID, query.AssistantID, query.Question)
	if err != nil {
		ql.markError(ctx, log, query.ID, err)
		return nil
	}

	formatted, citations := ProcessResponse(answer)

	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		ql.markError(ctx, log, query.ID, fmt.Errorf("encode citations: %w", err))
		return nil
	}

	// The completed transition and the message append commit together; a
	// failure mid-way rolls both back and records the error instead, so a
	// processed query always ends terminal.
	err = ql.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ql.queryRepo.UpdateFields(ctx, tx, query.ID, map[string]any{
			"status":    types.QueryStatusCompleted,
			"answer":    formatted,
			"thread_id": conv.ThreadID,
		}); err != nil {
			return fmt.Errorf("persist answer: %w", err)
		}

		msg := &types.Message{
			ID:        "msg_" + uuid.NewString(),
			ThreadID:  conv.ThreadID,
			Question:  query.Question,
			Answer:    formatted,
			Citations: datatypes.JSON(citationsJSON),
			CreatedAt: time.Now(),
		}
		if _, err := ql.messageRepo.Create(ctx, tx, msg); err != nil {
			return fmt.Errorf("append message: %w", err)
		}
		return nil
	})
	if err != nil {
		ql.markError(ctx, log, query.ID, err)
		return nil
	}

	log.Info("Query completed", "thread_id", conv.ThreadID, "citations", len(citations))
	return nil
}

func (ql *queryLifecycle) runExchange(ctx context.Context, threadID, assistantID, question string) (string, error) {
	return exchangeWithAssistant(ctx, ql.ai, threadID, assistantID, question, ql.pollInterval, ql.pollTimeout)
}

// markError durably records the failure as the query's terminal state. A
// query must never stay silently pending after an attempt has started.
func (ql *queryLifecycle) markError(ctx context.Context, log *logger.Logger, queryID string, cause error) {
	log.Error("Query processing failed", "error", cause)

	err := ql.queryRepo.UpdateFields(ctx, nil, queryID, map[string]any{
		"status": types.QueryStatusError,
		"answer": cause.Error(),
	})
	if err != nil {
		log.Error("Could not record error state for query", "error", err)
	}
}

func (ql *queryLifecycle) Status(ctx context.Context, queryID string) (*QueryStatus, error) {
	query, err := ql.queryRepo.GetByID(ctx, nil, queryID)
	if err != nil {
		return nil, err
	}
	return &QueryStatus{
		State:    query.Status,
		Answer:   query.Answer,
		ThreadID: query.ThreadID,
	}, nil
}
