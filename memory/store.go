// Package memory persists conversations and their messages so the travel
// assistant keeps per-session context across chat requests.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/voyahq/voya-agent/models"
)

// Store is the database-backed conversation memory. All methods are safe for
// concurrent use; session uniqueness and delete atomicity rely on the
// database, not on application-level locking.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the tables backing the store.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&models.Conversation{}, &models.Message{}, &models.Tour{})
}

// Summary is the listing/search projection of a conversation.
type Summary struct {
	ID           uuid.UUID `json:"id"`
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title"`
	MessageCount int64     `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
	Preview      string    `json:"preview"`
}

// Resolve maps a session identifier to its conversation, creating one when
// none exists. An empty session id gets a freshly generated one. When a
// concurrent request wins the creation race, the insert fails on the unique
// index and we retry once as a lookup.
func (s *Store) Resolve(ctx context.Context, sessionID string) (*models.Conversation, error) {
	if sessionID == "" {
		return s.CreateNew(ctx)
	}

	var conv models.Conversation
	err := s.db.WithContext(ctx).First(&conv, "session_id = ?", sessionID).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup conversation: %w", err)
	}

	conv = models.Conversation{SessionID: sessionID}
	err = s.db.WithContext(ctx).Create(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost the race, read the winner's row.
		if err := s.db.WithContext(ctx).First(&conv, "session_id = ?", sessionID).Error; err != nil {
			return nil, fmt.Errorf("%w: %s", ErrConflict, sessionID)
		}
		return &conv, nil
	}
	return nil, fmt.Errorf("create conversation: %w", err)
}

// CreateNew always creates a fresh conversation under a newly generated
// session id, regardless of any existing sessions.
func (s *Store) CreateNew(ctx context.Context) (*models.Conversation, error) {
	sessionID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	conv := models.Conversation{SessionID: sessionID}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", ErrConflict, sessionID)
		}
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &conv, nil
}

// Append inserts a message and refreshes the conversation's recency, both in
// one transaction. After an assistant append it also fills in the title when
// none is set yet and at least one user message exists.
func (s *Store) Append(ctx context.Context, conversationID uuid.UUID, role, content string, metadata map[string]interface{}) (*models.Message, error) {
	if role != models.RoleUser && role != models.RoleAssistant {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message content is empty", ErrValidation)
	}

	var raw []byte
	if len(metadata) > 0 {
		var err error
		raw, err = json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata is not serializable", ErrValidation)
		}
	}

	msg := models.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       raw,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.First(&conv, "id = ?", conversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load conversation: %w", err)
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if err := tx.Model(&conv).Update("updated_at", time.Now()).Error; err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}
		if role == models.RoleAssistant && conv.Title == "" {
			return s.ensureTitle(tx, &conv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ensureTitle fills in an auto-generated title once the conversation has at
// least one user message. It never touches a title that is already set.
func (s *Store) ensureTitle(tx *gorm.DB, conv *models.Conversation) error {
	var userMsgs []models.Message
	err := tx.Where("conversation_id = ? AND role = ?", conv.ID, models.RoleUser).
		Order("timestamp ASC, id ASC").
		Limit(3).
		Find(&userMsgs).Error
	if err != nil {
		return fmt.Errorf("load user messages: %w", err)
	}
	if len(userMsgs) == 0 {
		return nil
	}
	title := GenerateTitle(conv.SessionID, userMsgs)
	if err := tx.Model(conv).Update("title", title).Error; err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	return nil
}

// History returns the conversation's messages ascending by timestamp. A
// positive limit keeps only the most recent messages, still returned
// oldest-first so the agent reads them chronologically. Unknown sessions
// yield an empty slice, not an error.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).First(&conv, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []models.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup conversation: %w", err)
	}

	q := s.db.WithContext(ctx).
		Where("conversation_id = ?", conv.ID).
		Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []models.Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Search returns summaries of conversations matching the filters,
// most-recently-updated first. A query matches conversations containing at
// least one message with the query as a case-insensitive substring; a session
// id narrows to that session. Both filters combine with AND. With neither
// filter set this is equivalent to List.
func (s *Store) Search(ctx context.Context, query, sessionID string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 10
	}
	q := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Order("updated_at DESC").
		Limit(limit)
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	if query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		sub := s.db.Model(&models.Message{}).
			Select("conversation_id").
			Where("LOWER(content) LIKE ?", pattern)
		q = q.Where("id IN (?)", sub)
	}

	var convs []models.Conversation
	if err := q.Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("search conversations: %w", err)
	}
	return s.summarizeAll(ctx, convs)
}

// List returns summaries of all conversations, most-recently-updated first.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	var convs []models.Conversation
	err := s.db.WithContext(ctx).
		Order("updated_at DESC").
		Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return s.summarizeAll(ctx, convs)
}

// Get returns a conversation with its full ordered message list.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return s.get(ctx, "id = ?", id)
}

// GetBySession is Get keyed by session id.
func (s *Store) GetBySession(ctx context.Context, sessionID string) (*models.Conversation, error) {
	return s.get(ctx, "session_id = ?", sessionID)
}

func (s *Store) get(ctx context.Context, cond string, arg interface{}) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC, id ASC")
		}).
		First(&conv, cond, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return &conv, nil
}

// UpdateTitle overwrites the title unconditionally. An empty title is
// accepted and clears it, which makes the conversation eligible for title
// auto-generation again on the next assistant message.
func (s *Store) UpdateTitle(ctx context.Context, id uuid.UUID, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > models.TitleMaxLen {
		return nil, fmt.Errorf("%w: title exceeds %d characters", ErrValidation, models.TitleMaxLen)
	}

	var conv models.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&conv, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load conversation: %w", err)
		}
		if err := tx.Model(&conv).Update("title", title).Error; err != nil {
			return fmt.Errorf("update title: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// Delete removes a conversation and all its messages as one atomic unit.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&models.Conversation{})
		if res.Error != nil {
			return fmt.Errorf("delete conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Summarize builds the listing projection for one conversation: message
// count, recency and a short preview of the latest message. An empty stored
// title falls back to an excerpt of the earliest user message.
func (s *Store) Summarize(ctx context.Context, conv *models.Conversation) (Summary, error) {
	sum := Summary{
		ID:        conv.ID,
		SessionID: conv.SessionID,
		Title:     conv.Title,
		UpdatedAt: conv.UpdatedAt,
	}

	err := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ?", conv.ID).
		Count(&sum.MessageCount).Error
	if err != nil {
		return Summary{}, fmt.Errorf("count messages: %w", err)
	}
	if sum.MessageCount == 0 {
		return sum, nil
	}

	var last models.Message
	err = s.db.WithContext(ctx).
		Where("conversation_id = ?", conv.ID).
		Order("timestamp DESC, id DESC").
		First(&last).Error
	if err != nil {
		return Summary{}, fmt.Errorf("load last message: %w", err)
	}
	sum.Preview = excerpt(last.Content, previewLen)

	if sum.Title == "" {
		var first models.Message
		err = s.db.WithContext(ctx).
			Where("conversation_id = ? AND role = ?", conv.ID, models.RoleUser).
			Order("timestamp ASC, id ASC").
			First(&first).Error
		if err == nil {
			sum.Title = excerpt(first.Content, summaryTitleLen)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return Summary{}, fmt.Errorf("load first user message: %w", err)
		}
	}
	return sum, nil
}

func (s *Store) summarizeAll(ctx context.Context, convs []models.Conversation) ([]Summary, error) {
	summaries := make([]Summary, 0, len(convs))
	for i := range convs {
		sum, err := s.Summarize(ctx, &convs[i])
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

// CacheTours upserts Viator products by product code.
func (s *Store) CacheTours(ctx context.Context, tours []models.Tour) error {
	if len(tours) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "price", "rating", "review_count", "duration",
				"destination", "thumbnail_url", "viator_url", "description", "updated_at",
			}),
		}).
		Create(&tours).Error
	if err != nil {
		return fmt.Errorf("cache tours: %w", err)
	}
	return nil
}

// Tours returns the most recently refreshed cached tours.
func (s *Store) Tours(ctx context.Context, limit int) ([]models.Tour, error) {
	if limit <= 0 {
		limit = 20
	}
	var tours []models.Tour
	err := s.db.WithContext(ctx).
		Order("updated_at DESC").
		Limit(limit).
		Find(&tours).Error
	if err != nil {
		return nil, fmt.Errorf("list cached tours: %w", err)
	}
	return tours, nil
}
