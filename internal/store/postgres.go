package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/escolalink/messaging-platform/internal/model"
)

// Postgres is the production Store backend. The unique index on the
// normalized participant pair is what makes FindOrCreateConversation safe
// under concurrent calls from both participants.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects to the database and runs migrations.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Postgres{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Postgres) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY,
			user_a TEXT NOT NULL,
			user_b TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			last_activity TIMESTAMPTZ NOT NULL,
			UNIQUE (user_a, user_b)
		)`,
		`CREATE TABLE IF NOT EXISTS direct_messages (
			id UUID PRIMARY KEY,
			conversation_id UUID NOT NULL REFERENCES conversations(id),
			sender_id TEXT NOT NULL,
			content TEXT NOT NULL,
			read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_direct_messages_conversation
			ON direct_messages (conversation_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS broadcast_messages (
			id UUID PRIMARY KEY,
			content TEXT NOT NULL,
			scope TEXT NOT NULL,
			course_id BIGINT NOT NULL DEFAULT 0,
			class_section TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS calendar_events (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			event_date TIMESTAMPTZ NOT NULL,
			scope TEXT NOT NULL,
			course_id BIGINT NOT NULL DEFAULT 0,
			class_section TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_calendar_events_date
			ON calendar_events (event_date)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Postgres) FindOrCreateConversation(ctx context.Context, cand *model.Conversation) (*model.Conversation, bool, error) {
	// Insert first; the unique pair index turns the duplicate-creation race
	// into a no-op, after which the select returns the canonical row.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_a, user_b, created_at, last_activity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_a, user_b) DO NOTHING`,
		cand.ID, cand.UserA, cand.UserB, cand.CreatedAt, cand.LastActivity)
	if err != nil {
		return nil, false, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	var c model.Conversation
	err = s.db.QueryRowContext(ctx, `
		SELECT id, user_a, user_b, created_at, last_activity
		FROM conversations
		WHERE user_a = $1 AND user_b = $2`,
		cand.UserA, cand.UserB).Scan(
		&c.ID, &c.UserA, &c.UserB, &c.CreatedAt, &c.LastActivity)
	if err != nil {
		return nil, false, err
	}
	return &c, inserted > 0, nil
}

func (s *Postgres) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var c model.Conversation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_a, user_b, created_at, last_activity
		FROM conversations
		WHERE id = $1`, id).Scan(
		&c.ID, &c.UserA, &c.UserB, &c.CreatedAt, &c.LastActivity)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Postgres) ListConversations(ctx context.Context, userID string, limit int) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.user_a, c.user_b, c.created_at, c.last_activity,
		       m.id, m.sender_id, m.content, m.read, m.created_at,
		       (SELECT COUNT(*) FROM direct_messages u
		        WHERE u.conversation_id = c.id AND u.sender_id <> $1 AND u.read = FALSE)
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT id, sender_id, content, read, created_at
			FROM direct_messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) m ON TRUE
		WHERE c.user_a = $1 OR c.user_b = $1
		ORDER BY c.last_activity DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		var c model.Conversation
		var msgID, msgSender, msgContent sql.NullString
		var msgRead sql.NullBool
		var msgCreated sql.NullTime

		err := rows.Scan(
			&c.ID, &c.UserA, &c.UserB, &c.CreatedAt, &c.LastActivity,
			&msgID, &msgSender, &msgContent, &msgRead, &msgCreated,
			&c.UnreadCount)
		if err != nil {
			return nil, err
		}
		if msgID.Valid {
			c.LastMessage = &model.DirectMessage{
				ID:             msgID.String,
				ConversationID: c.ID,
				SenderID:       msgSender.String,
				Content:        msgContent.String,
				Read:           msgRead.Bool,
				CreatedAt:      msgCreated.Time,
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Postgres) InsertMessage(ctx context.Context, msg *model.DirectMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE conversations SET last_activity = $2 WHERE id = $1`,
		msg.ConversationID, msg.CreatedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO direct_messages (id, conversation_id, sender_id, content, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.Read, msg.CreatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Postgres) ListMessages(ctx context.Context, conversationID string, limit int, before time.Time) ([]model.DirectMessage, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, conversation_id, sender_id, content, read, created_at
		FROM direct_messages
		WHERE conversation_id = $1`
	args := []any{conversationID}
	if !before.IsZero() {
		query += ` AND created_at < $2`
		args = append(args, before)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var page []model.DirectMessage
	for rows.Next() {
		var m model.DirectMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Read, &m.CreatedAt); err != nil {
			return nil, err
		}
		page = append(page, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The query fetches the newest window; callers receive ascending order.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

func (s *Postgres) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE direct_messages
		SET read = TRUE
		WHERE conversation_id = $1 AND sender_id <> $2 AND read = FALSE`,
		conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Postgres) InsertBroadcast(ctx context.Context, post *model.BroadcastMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO broadcast_messages (id, content, scope, course_id, class_section, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		post.ID, post.Content, post.Scope, post.CourseID, post.ClassSection, post.CreatedAt)
	return err
}

func (s *Postgres) ListBroadcasts(ctx context.Context) ([]model.BroadcastMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, scope, course_id, class_section, created_at
		FROM broadcast_messages
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BroadcastMessage
	for rows.Next() {
		var b model.BroadcastMessage
		if err := rows.Scan(&b.ID, &b.Content, &b.Scope, &b.CourseID, &b.ClassSection, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Postgres) InsertCalendarEvent(ctx context.Context, event *model.CalendarEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calendar_events (id, title, description, event_date, scope, course_id, class_section, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.Title, event.Description, event.Date,
		event.Scope, event.CourseID, event.ClassSection, event.CreatedAt)
	return err
}

func (s *Postgres) ListCalendarEvents(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	query := `
		SELECT id, title, description, event_date, scope, course_id, class_section, created_at
		FROM calendar_events
		WHERE 1=1`
	var args []any
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(` AND event_date >= $%d`, len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(` AND event_date <= $%d`, len(args))
	}
	query += ` ORDER BY event_date ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CalendarEvent
	for rows.Next() {
		var e model.CalendarEvent
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Scope, &e.CourseID, &e.ClassSection, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Postgres) Close() error {
	return s.db.Close()
}
