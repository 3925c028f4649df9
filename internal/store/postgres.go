package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// isForeignKeyViolation reports whether err is a Postgres FK violation,
// meaning the referenced row disappeared between validation and write.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func (s *PostgresStore) ListBoards(ctx context.Context) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, is_public, access_type, pinned_announcement, display_order, archived_at, created_by, created_at
		FROM boards
		WHERE archived_at IS NULL
		ORDER BY display_order ASC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	items := make([]Board, 0)
	for rows.Next() {
		var item Board
		if err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.Description,
			&item.IsPublic,
			&item.AccessType,
			&item.PinnedAnnouncement,
			&item.DisplayOrder,
			&item.ArchivedAt,
			&item.CreatedBy,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boards: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetBoard(ctx context.Context, boardID string) (Board, error) {
	var item Board
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, is_public, access_type, pinned_announcement, display_order, archived_at, created_by, created_at
		FROM boards
		WHERE id=$1
	`, boardID).Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.IsPublic,
		&item.AccessType,
		&item.PinnedAnnouncement,
		&item.DisplayOrder,
		&item.ArchivedAt,
		&item.CreatedBy,
		&item.CreatedAt,
	)
	if err != nil {
		return Board{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertBoard(ctx context.Context, board Board) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO boards (id, name, description, is_public, access_type, pinned_announcement, display_order, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, board.ID, board.Name, board.Description, board.IsPublic, board.AccessType, board.PinnedAnnouncement, board.DisplayOrder, board.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert board: %w", err)
	}
	return nil
}

// SetBoardArchived is idempotent: archiving an archived board keeps the
// original archived_at, unarchiving clears it.
func (s *PostgresStore) SetBoardArchived(ctx context.Context, boardID string, archived bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE boards
		SET archived_at = CASE WHEN $2 THEN COALESCE(archived_at, NOW()) ELSE NULL END
		WHERE id=$1
	`, boardID, archived)
	if err != nil {
		return false, fmt.Errorf("set board archived: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set board archived rows: %w", err)
	}
	return affected > 0, nil
}

const threadColumns = `id, board_id, title, is_pinned, is_locked, archived_at, created_by, message_count, last_message_at, created_at`

func scanThread(row interface{ Scan(...any) error }) (Thread, error) {
	var item Thread
	err := row.Scan(
		&item.ID,
		&item.BoardID,
		&item.Title,
		&item.IsPinned,
		&item.IsLocked,
		&item.ArchivedAt,
		&item.CreatedBy,
		&item.MessageCount,
		&item.LastMessageAt,
		&item.CreatedAt,
	)
	return item, err
}

// ListBoardThreads returns the board's non-archived threads: pinned first,
// then most recent activity, nulls last, then newest created.
func (s *PostgresStore) ListBoardThreads(ctx context.Context, boardID string) ([]Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+threadColumns+`
		FROM threads
		WHERE board_id=$1 AND archived_at IS NULL
		ORDER BY is_pinned DESC, last_message_at DESC NULLS LAST, created_at DESC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board threads: %w", err)
	}
	defer rows.Close()

	items := make([]Thread, 0)
	for rows.Next() {
		item, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return items, nil
}

// ListActiveThreads returns non-archived threads across the given boards.
func (s *PostgresStore) ListActiveThreads(ctx context.Context, boardIDs []string) ([]Thread, error) {
	if len(boardIDs) == 0 {
		return []Thread{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+threadColumns+`
		FROM threads
		WHERE board_id = ANY($1) AND archived_at IS NULL
	`, boardIDs)
	if err != nil {
		return nil, fmt.Errorf("list active threads: %w", err)
	}
	defer rows.Close()

	items := make([]Thread, 0)
	for rows.Next() {
		item, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active threads: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetThread(ctx context.Context, threadID string) (Thread, error) {
	item, err := scanThread(s.db.QueryRowContext(ctx, `
		SELECT `+threadColumns+`
		FROM threads
		WHERE id=$1
	`, threadID))
	if err != nil {
		return Thread{}, err
	}
	return item, nil
}

// CreateThreadWithFirstMessage inserts the thread and its opening message in
// one transaction so a thread is never visible without content.
func (s *PostgresStore) CreateThreadWithFirstMessage(ctx context.Context, thread Thread, message Message) (Thread, Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Thread{}, Message{}, fmt.Errorf("begin create thread: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO threads (id, board_id, title, created_by, message_count)
		VALUES ($1, $2, $3, $4, 1)
		RETURNING created_at
	`, thread.ID, thread.BoardID, thread.Title, thread.CreatedBy).Scan(&thread.CreatedAt); err != nil {
		return Thread{}, Message{}, fmt.Errorf("insert thread: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO messages (id, thread_id, author_id, author_name, content, content_html)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, seq
	`, message.ID, thread.ID, message.AuthorID, message.AuthorName, message.Content, message.ContentHTML).Scan(&message.CreatedAt, &message.Seq); err != nil {
		return Thread{}, Message{}, fmt.Errorf("insert first message: %w", err)
	}
	message.ThreadID = thread.ID

	if _, err := tx.ExecContext(ctx, `
		UPDATE threads SET last_message_at=$2 WHERE id=$1
	`, thread.ID, message.CreatedAt); err != nil {
		return Thread{}, Message{}, fmt.Errorf("stamp thread activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Thread{}, Message{}, fmt.Errorf("commit create thread: %w", err)
	}

	thread.MessageCount = 1
	thread.LastMessageAt = &message.CreatedAt
	return thread, message, nil
}

func (s *PostgresStore) SetThreadLocked(ctx context.Context, threadID string, locked bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE threads SET is_locked=$2 WHERE id=$1`, threadID, locked)
	if err != nil {
		return false, fmt.Errorf("set thread locked: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set thread locked rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SetThreadPinned(ctx context.Context, threadID string, pinned bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE threads SET is_pinned=$2 WHERE id=$1`, threadID, pinned)
	if err != nil {
		return false, fmt.Errorf("set thread pinned: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set thread pinned rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SetThreadArchived(ctx context.Context, threadID string, archived bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE threads
		SET archived_at = CASE WHEN $2 THEN COALESCE(archived_at, NOW()) ELSE NULL END
		WHERE id=$1
	`, threadID, archived)
	if err != nil {
		return false, fmt.Errorf("set thread archived: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set thread archived rows: %w", err)
	}
	return affected > 0, nil
}

const messageColumns = `id, thread_id, author_id, author_name, content, content_html, reply_to_id, is_deleted, edited_at, created_at, seq`

func scanMessage(row interface{ Scan(...any) error }) (Message, error) {
	var item Message
	err := row.Scan(
		&item.ID,
		&item.ThreadID,
		&item.AuthorID,
		&item.AuthorName,
		&item.Content,
		&item.ContentHTML,
		&item.ReplyToID,
		&item.IsDeleted,
		&item.EditedAt,
		&item.CreatedAt,
		&item.Seq,
	)
	return item, err
}

// InsertMessage appends a message and bumps the thread's denormalized
// counters inside one transaction. Concurrent posters each get their own
// atomic increment; the counters never drift.
func (s *PostgresStore) InsertMessage(ctx context.Context, message Message) (Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, fmt.Errorf("begin insert message: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO messages (id, thread_id, author_id, author_name, content, content_html, reply_to_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, seq
	`, message.ID, message.ThreadID, message.AuthorID, message.AuthorName, message.Content, message.ContentHTML, message.ReplyToID).Scan(&message.CreatedAt, &message.Seq); err != nil {
		if isForeignKeyViolation(err) {
			return Message{}, sql.ErrNoRows
		}
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE threads
		SET message_count = message_count + 1, last_message_at = $2
		WHERE id=$1
	`, message.ThreadID, message.CreatedAt); err != nil {
		return Message{}, fmt.Errorf("bump thread counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("commit insert message: %w", err)
	}
	return message, nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, messageID string) (Message, error) {
	item, err := scanMessage(s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id=$1
	`, messageID))
	if err != nil {
		return Message{}, err
	}
	return item, nil
}

// ListThreadMessages returns the full flat list for the tree builder,
// tombstones included, in display order.
func (s *PostgresStore) ListThreadMessages(ctx context.Context, threadID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE thread_id=$1
		ORDER BY created_at ASC, seq ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list thread messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		item, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateMessageContent(ctx context.Context, messageID, content, contentHTML string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET content=$2, content_html=$3, edited_at=NOW()
		WHERE id=$1 AND NOT is_deleted
	`, messageID, content, contentHTML)
	if err != nil {
		return false, fmt.Errorf("update message content: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update message content rows: %w", err)
	}
	return affected > 0, nil
}

// SoftDeleteMessage tombstones the message and recomputes the thread's
// counters from the remaining non-deleted rows, all in one transaction.
// Recomputing (rather than decrementing a cached max) keeps last_message_at
// correct when the newest message is the one deleted.
func (s *PostgresStore) SoftDeleteMessage(ctx context.Context, messageID, threadID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete message: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE messages SET is_deleted=TRUE WHERE id=$1 AND NOT is_deleted
	`, messageID)
	if err != nil {
		return false, fmt.Errorf("tombstone message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("tombstone message rows: %w", err)
	}
	if affected == 0 {
		return false, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE threads
		SET message_count = (SELECT COUNT(*) FROM messages WHERE thread_id=$1 AND NOT is_deleted),
		    last_message_at = (SELECT MAX(created_at) FROM messages WHERE thread_id=$1 AND NOT is_deleted)
		WHERE id=$1
	`, threadID); err != nil {
		return false, fmt.Errorf("recompute thread counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete message: %w", err)
	}
	return true, nil
}

// AddReaction inserts the (message, member, type) tuple. The primary key
// absorbs duplicate submissions: the second identical insert is a no-op and
// the return value reports whether a row was actually created.
func (s *PostgresStore) AddReaction(ctx context.Context, reaction Reaction) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO reactions (message_id, member_id, reaction_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, member_id, reaction_type) DO NOTHING
	`, reaction.MessageID, reaction.MemberID, reaction.ReactionType)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, sql.ErrNoRows
		}
		return false, fmt.Errorf("add reaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add reaction rows: %w", err)
	}
	return affected > 0, nil
}

// RemoveReaction deletes the tuple if present; removing a reaction that was
// never added is not an error.
func (s *PostgresStore) RemoveReaction(ctx context.Context, reaction Reaction) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM reactions
		WHERE message_id=$1 AND member_id=$2 AND reaction_type=$3
	`, reaction.MessageID, reaction.MemberID, reaction.ReactionType)
	if err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	return nil
}

// ListMessageReactions batch-loads every reaction row for the given message
// ids in a single query. Grouping happens client-side.
func (s *PostgresStore) ListMessageReactions(ctx context.Context, messageIDs []string) ([]Reaction, error) {
	if len(messageIDs) == 0 {
		return []Reaction{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, member_id, reaction_type, created_at
		FROM reactions
		WHERE message_id = ANY($1)
		ORDER BY created_at ASC
	`, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("list message reactions: %w", err)
	}
	defer rows.Close()

	items := make([]Reaction, 0)
	for rows.Next() {
		var item Reaction
		if err := rows.Scan(&item.MessageID, &item.MemberID, &item.ReactionType, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertReport(ctx context.Context, report Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (message_id, reported_by, reporter_name, reason)
		VALUES ($1, $2, $3, $4)
	`, report.MessageID, report.ReportedBy, report.ReporterName, report.Reason)
	if err != nil {
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListReports(ctx context.Context, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, reported_by, reporter_name, reason, created_at
		FROM reports
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	items := make([]Report, 0)
	for rows.Next() {
		var item Report
		if err := rows.Scan(&item.ID, &item.MessageID, &item.ReportedBy, &item.ReporterName, &item.Reason, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpsertNotificationPreference(ctx context.Context, pref NotificationPreference) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (member_id, board_id, email_notifications, in_app_notifications)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (member_id, board_id)
		DO UPDATE SET email_notifications=EXCLUDED.email_notifications, in_app_notifications=EXCLUDED.in_app_notifications, updated_at=NOW()
	`, pref.MemberID, pref.BoardID, pref.EmailNotifications, pref.InAppNotifications)
	if err != nil {
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("upsert notification preference: %w", err)
	}
	return nil
}

// GetNotificationPreference returns the stored row, or the defaults when the
// member has never saved preferences for this board.
func (s *PostgresStore) GetNotificationPreference(ctx context.Context, memberID, boardID string) (NotificationPreference, error) {
	var item NotificationPreference
	err := s.db.QueryRowContext(ctx, `
		SELECT member_id, board_id, email_notifications, in_app_notifications, updated_at
		FROM notification_preferences
		WHERE member_id=$1 AND board_id=$2
	`, memberID, boardID).Scan(&item.MemberID, &item.BoardID, &item.EmailNotifications, &item.InAppNotifications, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return NotificationPreference{MemberID: memberID, BoardID: boardID, InAppNotifications: true}, nil
	}
	if err != nil {
		return NotificationPreference{}, fmt.Errorf("get notification preference: %w", err)
	}
	return item, nil
}

// ListBoardSubscribers returns every member with at least one notification
// channel enabled for the board.
func (s *PostgresStore) ListBoardSubscribers(ctx context.Context, boardID string) ([]NotificationPreference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT member_id, board_id, email_notifications, in_app_notifications, updated_at
		FROM notification_preferences
		WHERE board_id=$1 AND (email_notifications OR in_app_notifications)
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board subscribers: %w", err)
	}
	defer rows.Close()

	items := make([]NotificationPreference, 0)
	for rows.Next() {
		var item NotificationPreference
		if err := rows.Scan(&item.MemberID, &item.BoardID, &item.EmailNotifications, &item.InAppNotifications, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertNotification(ctx context.Context, notification Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (member_id, board_id, thread_id, message_id)
		VALUES ($1, $2, $3, $4)
	`, notification.MemberID, notification.BoardID, notification.ThreadID, notification.MessageID)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, memberID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, member_id, board_id, thread_id, message_id, is_read, created_at
		FROM notifications
		WHERE member_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var item Notification
		if err := rows.Scan(&item.ID, &item.MemberID, &item.BoardID, &item.ThreadID, &item.MessageID, &item.IsRead, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UnreadNotificationCount(ctx context.Context, memberID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE member_id=$1 AND NOT is_read
	`, memberID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, notificationID int64, memberID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read=TRUE WHERE id=$1 AND member_id=$2
	`, notificationID, memberID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, memberID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read=TRUE WHERE member_id=$1 AND NOT is_read
	`, memberID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// CountMessagesAfter counts the thread's non-deleted messages created
// strictly after the watermark. The zero time counts everything.
func (s *PostgresStore) CountMessagesAfter(ctx context.Context, threadID string, after time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE thread_id=$1 AND NOT is_deleted AND created_at > $2
	`, threadID, after).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages after: %w", err)
	}
	return count, nil
}

// CountMessagesInWindow counts non-deleted messages with
// after < created_at <= until.
func (s *PostgresStore) CountMessagesInWindow(ctx context.Context, threadID string, after, until time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE thread_id=$1 AND NOT is_deleted AND created_at > $2 AND created_at <= $3
	`, threadID, after, until).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages in window: %w", err)
	}
	return count, nil
}

// Advance moves the member's read cursor forward; it never regresses thanks
// to the GREATEST guard, so concurrent advances converge on the furthest
// watermark.
func (s *PostgresStore) Advance(ctx context.Context, memberID, threadID string, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO read_cursors (member_id, thread_id, last_seen_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (member_id, thread_id)
		DO UPDATE SET last_seen_at = GREATEST(read_cursors.last_seen_at, EXCLUDED.last_seen_at)
	`, memberID, threadID, t)
	if err != nil {
		if isForeignKeyViolation(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("advance read cursor: %w", err)
	}
	return nil
}

// Get returns the member's watermark for the thread, or the zero time when
// the thread has never been opened.
func (s *PostgresStore) Get(ctx context.Context, memberID, threadID string) (time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT last_seen_at FROM read_cursors WHERE member_id=$1 AND thread_id=$2
	`, memberID, threadID).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get read cursor: %w", err)
	}
	return t, nil
}

// All returns every watermark the member holds, keyed by thread id.
func (s *PostgresStore) All(ctx context.Context, memberID string) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_id, last_seen_at FROM read_cursors WHERE member_id=$1
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list read cursors: %w", err)
	}
	defer rows.Close()

	cursors := make(map[string]time.Time)
	for rows.Next() {
		var threadID string
		var t time.Time
		if err := rows.Scan(&threadID, &t); err != nil {
			return nil, fmt.Errorf("scan read cursor: %w", err)
		}
		cursors[threadID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate read cursors: %w", err)
	}
	return cursors, nil
}
