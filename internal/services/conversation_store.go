package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aulagpt/aulagpt-backend/internal/clients/openai"
	"github.com/aulagpt/aulagpt-backend/internal/logger"
	"github.com/aulagpt/aulagpt-backend/internal/repos"
	"github.com/aulagpt/aulagpt-backend/internal/types"
)

// ConversationStore maps a (user, course) pair to its durable remote thread.
// Threads are created lazily on the first query and reused for every later
// one; the first assistant used for a pair owns the thread for its lifetime.
type ConversationStore interface {
	GetOrCreate(ctx context.Context, userID, courseID, assistantID string) (*types.Conversation, error)
}

type conversationStore struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.ConversationRepo
	ai   openai.Client
}

func NewConversationStore(db *gorm.DB, baseLog *logger.Logger, repo repos.ConversationRepo, ai openai.Client) ConversationStore {
	return &conversationStore{
		db:   db,
		log:  baseLog.With("service", "ConversationStore"),
		repo: repo,
		ai:   ai,
	}
}

func (cs *conversationStore) GetOrCreate(ctx context.Context, userID, courseID, assistantID string) (*types.Conversation, error) {
	existing, err := cs.repo.GetByUserCourse(ctx, nil, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("lookup conversation: %w", err)
	}
	if existing != nil {
		// The assistant argument is deliberately ignored here: the pair's
		// existing thread wins regardless of which assistant the new query
		// selected.
		return existing, nil
	}

	threadID, err := cs.ai.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("create remote thread: %w", err)
	}

	conv := &types.Conversation{
		ThreadID:    threadID,
		UserID:      userID,
		CourseID:    courseID,
		AssistantID: assistantID,
		CreatedAt:   time.Now(),
	}
	if _, err := cs.repo.Create(ctx, nil, conv); err != nil {
		// A concurrent caller may have won the unique (user, course) slot
		// between our lookup and insert. Their row is the conversation;
		// ours is an orphaned remote thread, which is harmless.
		winner, lookupErr := cs.repo.GetByUserCourse(ctx, nil, userID, courseID)
		if lookupErr == nil && winner != nil {
			cs.log.Debug("Lost conversation creation race, reusing winner", "thread_id", winner.ThreadID)
			return winner, nil
		}
		return nil, fmt.Errorf("persist conversation: %w", err)
	}

	cs.log.Info("Conversation created", "thread_id", threadID, "user_id", userID, "course_id", courseID)
	return conv, nil
}
