// Package sqlite implements store.Store on modernc.org/sqlite. It is
// the driver for local builds and tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/supahealth/supahealth/internal/model"
	"github.com/supahealth/supahealth/internal/store"
)

type sqliteStore struct{ db *sql.DB }

// New opens (or creates) a SQLite database file and applies the schema.
func New(ctx context.Context, path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := applySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

// NewWithDB wires the store to an existing connection.
func NewWithDB(ctx context.Context, db *sql.DB) (store.Store, error) {
	if err := applySchema(ctx, db); err != nil {
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Users() store.Users     { return &users{db: s.db} }
func (s *sqliteStore) Metrics() store.Metrics { return &metrics{db: s.db} }
func (s *sqliteStore) Goals() store.Goals     { return &goals{db: s.db} }
func (s *sqliteStore) Chats() store.Chats     { return &chats{db: s.db} }

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *sqliteStore) Close() error                   { return s.db.Close() }

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func marshalFields(f map[string]float64) (string, error) {
	b, err := json.Marshal(f)
	return string(b), err
}

func unmarshalFields(s string) (map[string]float64, error) {
	var f map[string]float64
	if err := json.Unmarshal([]byte(s), &f); err != nil {
		return nil, err
	}
	return f, nil
}

// marshalLabels maps an empty label set to NULL so kinds without
// labels stay clean in the table.
func marshalLabels(l map[string]string) (any, error) {
	if len(l) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func unmarshalLabels(s sql.NullString) (map[string]string, error) {
	if !s.Valid {
		return nil, nil
	}
	var l map[string]string
	if err := json.Unmarshal([]byte(s.String), &l); err != nil {
		return nil, err
	}
	return l, nil
}

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	out := *m
	out.CreatedAt = time.Now().UTC()
	_, err := u.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, is_active, is_superuser, created_at)
		VALUES (?,?,?,?,?,?,?)
	`, out.ID, out.Email, out.PasswordHash, out.FullName, out.IsActive, out.IsSuperuser, out.CreatedAt)
	if isUniqueViolation(err) {
		return nil, model.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *users) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.scanOne(u.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, full_name, is_active, is_superuser, created_at, updated_at
		FROM users WHERE id = ?
	`, id))
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.scanOne(u.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, full_name, is_active, is_superuser, created_at, updated_at
		FROM users WHERE email = ?
	`, email))
}

func (u *users) scanOne(row *sql.Row) (*model.User, error) {
	var out model.User
	err := row.Scan(&out.ID, &out.Email, &out.PasswordHash, &out.FullName,
		&out.IsActive, &out.IsSuperuser, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Metrics ---

type metrics struct{ db *sql.DB }

// Upsert is a single INSERT ... ON CONFLICT statement. Anything more
// elaborate (read the row, then write it) starts as a read transaction
// and fails with SQLITE_BUSY when a concurrent writer holds the lock;
// a plain write serializes on busy_timeout instead. Last writer wins.
func (m *metrics) Upsert(ctx context.Context, rec *model.MetricRecord) (*model.MetricRecord, bool, error) {
	fieldsJSON, err := marshalFields(rec.Fields)
	if err != nil {
		return nil, false, err
	}
	labelsJSON, err := marshalLabels(rec.Labels)
	if err != nil {
		return nil, false, err
	}
	now := time.Now().UTC()

	out := *rec
	err = m.db.QueryRowContext(ctx, `
		INSERT INTO metric_records (id, user_id, kind, ts, source, fields, labels, created_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT (user_id, kind, ts, source) DO UPDATE
			SET fields = excluded.fields, labels = excluded.labels, updated_at = ?
		RETURNING id, created_at, updated_at
	`, rec.ID, rec.UserID, rec.Kind, rec.Timestamp, rec.Source, fieldsJSON, labelsJSON, now, now).
		Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, false, err
	}
	created := out.ID == rec.ID && out.UpdatedAt == nil
	return &out, created, nil
}

func (m *metrics) List(ctx context.Context, req model.ListMetricsRequest) ([]*model.MetricRecord, error) {
	q := `
		SELECT id, user_id, kind, ts, source, fields, labels, created_at, updated_at
		FROM metric_records WHERE user_id = ? AND kind = ?`
	args := []any{req.UserID, req.Kind}
	if req.StartDate != nil {
		q += " AND ts >= ?"
		args = append(args, req.StartDate.UTC())
	}
	if req.EndDate != nil {
		q += " AND ts <= ?"
		args = append(args, req.EndDate.UTC())
	}
	q += " ORDER BY ts ASC"

	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []*model.MetricRecord
	for rows.Next() {
		rec, err := scanMetric(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (m *metrics) GetByID(ctx context.Context, userID, kind, recordID string) (*model.MetricRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, kind, ts, source, fields, labels, created_at, updated_at
		FROM metric_records WHERE user_id = ? AND kind = ? AND id = ?
	`, userID, kind, recordID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, model.ErrNotFound
	}
	return scanMetric(rows)
}

func (m *metrics) Delete(ctx context.Context, userID, kind, recordID string) error {
	res, err := m.db.ExecContext(ctx, `
		DELETE FROM metric_records WHERE user_id = ? AND kind = ? AND id = ?
	`, userID, kind, recordID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanMetric(rows *sql.Rows) (*model.MetricRecord, error) {
	var rec model.MetricRecord
	var fieldsJSON string
	var labelsJSON sql.NullString
	if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Kind, &rec.Timestamp, &rec.Source,
		&fieldsJSON, &labelsJSON, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	fields, err := unmarshalFields(fieldsJSON)
	if err != nil {
		return nil, err
	}
	labels, err := unmarshalLabels(labelsJSON)
	if err != nil {
		return nil, err
	}
	rec.Fields = fields
	rec.Labels = labels
	rec.Timestamp = rec.Timestamp.UTC()
	return &rec, nil
}

// --- Goals ---

type goals struct{ db *sql.DB }

// Upsert resolves the goal's one-per-user (or one-per-hour for weight)
// rule with the matching partial unique index, so concurrent PUTs of
// the same goal cannot insert duplicates.
func (g *goals) Upsert(ctx context.Context, goal *model.Goal) (*model.Goal, bool, error) {
	fieldsJSON, err := marshalFields(goal.Fields)
	if err != nil {
		return nil, false, err
	}
	now := time.Now().UTC()

	var targetHour *time.Time
	conflict := `(user_id, kind) WHERE kind != 'weight'`
	if goal.Kind == "weight" {
		conflict = `(user_id, kind, target_hour) WHERE kind = 'weight'`
		if goal.TargetTime != nil {
			h := store.WeightGoalHour(*goal.TargetTime)
			targetHour = &h
		}
	}

	out := *goal
	err = g.db.QueryRowContext(ctx, `
		INSERT INTO goals (id, user_id, kind, target_time, target_hour, fields, description, created_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT `+conflict+` DO UPDATE
			SET fields = excluded.fields, target_time = excluded.target_time,
			    description = excluded.description, updated_at = ?
		RETURNING id, created_at, updated_at
	`, goal.ID, goal.UserID, goal.Kind, goal.TargetTime, targetHour, fieldsJSON, goal.Description, now, now).
		Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, false, err
	}
	created := out.ID == goal.ID && out.UpdatedAt == nil
	return &out, created, nil
}

func (g *goals) List(ctx context.Context, userID, kind string) ([]*model.Goal, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, user_id, kind, target_time, fields, description, created_at, updated_at
		FROM goals WHERE user_id = ? AND kind = ? ORDER BY created_at ASC
	`, userID, kind)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []*model.Goal
	for rows.Next() {
		var goal model.Goal
		var fieldsJSON string
		if err := rows.Scan(&goal.ID, &goal.UserID, &goal.Kind, &goal.TargetTime,
			&fieldsJSON, &goal.Description, &goal.CreatedAt, &goal.UpdatedAt); err != nil {
			return nil, err
		}
		fields, err := unmarshalFields(fieldsJSON)
		if err != nil {
			return nil, err
		}
		goal.Fields = fields
		res = append(res, &goal)
	}
	return res, rows.Err()
}

func (g *goals) Delete(ctx context.Context, userID, kind, goalID string) error {
	res, err := g.db.ExecContext(ctx, `
		DELETE FROM goals WHERE user_id = ? AND kind = ? AND id = ?
	`, userID, kind, goalID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// --- Chats ---

type chats struct{ db *sql.DB }

func (c *chats) ActiveConversation(ctx context.Context, userID string) (*model.Conversation, error) {
	var out model.Conversation
	err := c.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, status, created_at
		FROM conversations WHERE user_id = ? AND status = 'active'
		ORDER BY created_at DESC LIMIT 1
	`, userID).Scan(&out.ID, &out.UserID, &out.Title, &out.Status, &out.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *chats) CreateConversation(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	out := *conv
	out.CreatedAt = time.Now().UTC()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, title, status, created_at) VALUES (?,?,?,?,?)
	`, out.ID, out.UserID, out.Title, out.Status, out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *chats) GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	var out model.Conversation
	err := c.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, status, created_at
		FROM conversations WHERE user_id = ? AND id = ?
	`, userID, conversationID).Scan(&out.ID, &out.UserID, &out.Title, &out.Status, &out.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *chats) AppendMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	out := *msg
	out.CreatedAt = time.Now().UTC()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, user_id, role, content, created_at)
		VALUES (?,?,?,?,?,?)
	`, out.ID, out.ConversationID, out.UserID, out.Role, out.Content, out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *chats) ListMessages(ctx context.Context, userID, conversationID string) ([]*model.Message, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, conversation_id, user_id, role, content, created_at
		FROM messages WHERE user_id = ? AND conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`, userID, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []*model.Message
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.UserID, &msg.Role,
			&msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, &msg)
	}
	return res, rows.Err()
}
