// Package store defines the persistence operations required by the
// service layer. Implementations live under internal/store/<driver>/.
package store

import (
	"context"
	"time"

	"github.com/supahealth/supahealth/internal/model"
)

// Store exposes persistence operations required by services.
type Store interface {
	Users() Users
	Metrics() Metrics
	Goals() Goals
	Chats() Chats

	// Ping verifies connectivity; used by the health endpoint.
	Ping(ctx context.Context) error
	Close() error
}

// Users persists account records. Emails are stored lowercase; the
// unique index on email is the storage-level uniqueness guarantee.
type Users interface {
	// Create inserts a new user. Returns model.ErrConflict when the
	// email is already registered.
	Create(ctx context.Context, u *model.User) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// Metrics persists time-series records. Upsert is keyed by the natural
// key (user, kind, timestamp, source) inside a transaction so that two
// concurrent ingests of the same key cannot produce duplicate rows;
// the unique index on the key is the storage-level backstop and the
// last writer wins.
type Metrics interface {
	// Upsert inserts rec when no row exists for its natural key, using
	// rec.ID as the new identifier; otherwise it overwrites the mutable
	// measurement fields of the existing row, preserving its identifier.
	// The returned bool is true when a row was inserted.
	Upsert(ctx context.Context, rec *model.MetricRecord) (*model.MetricRecord, bool, error)
	List(ctx context.Context, req model.ListMetricsRequest) ([]*model.MetricRecord, error)
	GetByID(ctx context.Context, userID, kind, recordID string) (*model.MetricRecord, error)
	// Delete removes an owned record. Rows owned by other users are
	// indistinguishable from absent rows: both return model.ErrNotFound.
	Delete(ctx context.Context, userID, kind, recordID string) error
}

// Goals persists target records. General and macros goals have one row
// per user; weight goals have one row per (user, target hour).
type Goals interface {
	Upsert(ctx context.Context, g *model.Goal) (*model.Goal, bool, error)
	List(ctx context.Context, userID, kind string) ([]*model.Goal, error)
	Delete(ctx context.Context, userID, kind, goalID string) error
}

// Chats persists assistant conversations and their messages.
type Chats interface {
	// ActiveConversation returns the user's most recent active
	// conversation, or model.ErrNotFound when there is none.
	ActiveConversation(ctx context.Context, userID string) (*model.Conversation, error)
	CreateConversation(ctx context.Context, c *model.Conversation) (*model.Conversation, error)
	GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error)
	AppendMessage(ctx context.Context, m *model.Message) (*model.Message, error)
	ListMessages(ctx context.Context, userID, conversationID string) ([]*model.Message, error)
}

// WeightGoalHour truncates a weight goal's target time to the hour the
// upsert key uses. Kept here so both drivers key rows identically.
func WeightGoalHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}
