package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/debashish17/Riverside/internal/models"
)

// Storage-level outcomes the lifecycle service maps onto its error taxonomy.
var (
	ErrNotFound  = errors.New("session not found")
	ErrNotActive = errors.New("session is not active")
	ErrFull      = errors.New("session is full")
)

// MemberUser is a membership row joined with its user.
type MemberUser struct {
	MemberID int64
	UserID   int64
	Username string
	Email    string
	JoinedAt time.Time
}

// Detail is the fetch-with-members read model: one session, its owner's
// username, and the current membership joined with user records.
type Detail struct {
	Session   models.Session
	OwnerName string
	Members   []MemberUser
}

// Sessions provides typed, transactional operations over the session tables.
// Every mutation brackets its reads and writes in a single transaction.
type Sessions struct {
	db *sql.DB
}

func NewSessions(db *sql.DB) *Sessions {
	return &Sessions{db: db}
}

// CreateWithOwner inserts the session and the owner's membership atomically,
// so no session is ever visible with zero members.
func (r *Sessions) CreateWithOwner(ctx context.Context, name, description string, maxParticipants int, ownerID int64) (*models.Session, error) {
	now := time.Now().UTC()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (name, description, owner_id, max_participants, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		name, description, ownerID, maxParticipants, models.StatusActive, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_members (session_id, user_id, joined_at) VALUES (?, ?, ?)`,
		id, ownerID, now,
	); err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create session: %w", err)
	}
	return &models.Session{
		ID:              id,
		Name:            name,
		Description:     description,
		OwnerID:         ownerID,
		MaxParticipants: maxParticipants,
		Status:          models.StatusActive,
		CreatedAt:       now,
	}, nil
}

// GetWithMembers loads one session with its owner username and member list.
func (r *Sessions) GetWithMembers(ctx context.Context, sessionID int64) (*Detail, error) {
	var d Detail
	err := r.db.QueryRowContext(ctx,
		`SELECT s.id, s.name, s.description, s.owner_id, s.max_participants, s.status, s.created_at, s.ended_at, u.username
		 FROM sessions s JOIN users u ON u.id = s.owner_id
		 WHERE s.id = ?`,
		sessionID,
	).Scan(
		&d.Session.ID, &d.Session.Name, &d.Session.Description, &d.Session.OwnerID,
		&d.Session.MaxParticipants, &d.Session.Status, &d.Session.CreatedAt, &d.Session.EndedAt,
		&d.OwnerName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	d.Members, err = r.membersOf(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Sessions) membersOf(ctx context.Context, sessionID int64) ([]MemberUser, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.user_id, u.username, u.email, m.joined_at
		 FROM session_members m JOIN users u ON u.id = m.user_id
		 WHERE m.session_id = ?
		 ORDER BY m.joined_at ASC, m.id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]MemberUser, 0, 4)
	for rows.Next() {
		var m MemberUser
		if err := rows.Scan(&m.MemberID, &m.UserID, &m.Username, &m.Email, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddMember inserts a membership row, enforcing the status and capacity checks
// inside the same transaction as the insert. Returns added=false without error
// when the user is already a member (idempotent join). A unique-index violation
// from a racing duplicate insert is also treated as idempotent success.
func (r *Sessions) AddMember(ctx context.Context, sessionID, userID int64) (added bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var status models.SessionStatus
	var maxParticipants int
	err = tx.QueryRowContext(ctx,
		`SELECT status, max_participants FROM sessions WHERE id = ?`, sessionID,
	).Scan(&status, &maxParticipants)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("read session: %w", err)
	}
	if status != models.StatusActive {
		return false, ErrNotActive
	}

	var existing int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_members WHERE session_id = ? AND user_id = ?`,
		sessionID, userID,
	).Scan(&existing)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	if existing > 0 {
		return false, tx.Commit()
	}

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_members WHERE session_id = ?`, sessionID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count members: %w", err)
	}
	if count >= maxParticipants {
		return false, ErrFull
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO session_members (session_id, user_id, joined_at) VALUES (?, ?, ?)`,
		sessionID, userID, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a race against an identical join; the row exists either way.
			return false, nil
		}
		return false, fmt.Errorf("insert membership: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit join: %w", err)
	}
	return true, nil
}

// RemoveMember deletes one membership row. removed=false means the user had no
// membership to begin with.
func (r *Sessions) RemoveMember(ctx context.Context, sessionID, userID int64) (removed bool, err error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM session_members WHERE session_id = ? AND user_id = ?`,
		sessionID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RemoveAllMembers evicts every member of the session.
func (r *Sessions) RemoveAllMembers(ctx context.Context, sessionID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM session_members WHERE session_id = ?`, sessionID,
	); err != nil {
		return fmt.Errorf("remove all members: %w", err)
	}
	return nil
}

// SetStatus transitions an active session to a terminal status and stamps
// ended_at. The guarded UPDATE makes the transition monotonic: a session that
// already left active is never transitioned again.
func (r *Sessions) SetStatus(ctx context.Context, sessionID int64, status models.SessionStatus, endedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, ended_at = ? WHERE id = ? AND status = ?`,
		status, endedAt, sessionID, models.StatusActive,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return r.missingOrNotActive(ctx, sessionID)
	}
	return nil
}

// Terminate is update-status plus bulk member eviction in one transaction.
func (r *Sessions) Terminate(ctx context.Context, sessionID int64, endedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET status = ?, ended_at = ? WHERE id = ? AND status = ?`,
		models.StatusTerminated, endedAt, sessionID, models.StatusActive,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return r.missingOrNotActive(ctx, sessionID)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM session_members WHERE session_id = ?`, sessionID,
	); err != nil {
		return fmt.Errorf("evict members: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit terminate: %w", err)
	}
	return nil
}

// Delete hard-deletes the session; membership rows cascade.
func (r *Sessions) Delete(ctx context.Context, sessionID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Sessions) missingOrNotActive(ctx context.Context, sessionID int64) error {
	var status models.SessionStatus
	err := r.db.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = ?`, sessionID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	return ErrNotActive
}

// ListByMember returns every session the user currently belongs to, newest first.
func (r *Sessions) ListByMember(ctx context.Context, userID int64) ([]Detail, error) {
	return r.list(ctx,
		`SELECT s.id, s.name, s.description, s.owner_id, s.max_participants, s.status, s.created_at, s.ended_at, u.username
		 FROM sessions s
		 JOIN users u ON u.id = s.owner_id
		 JOIN session_members m ON m.session_id = s.id AND m.user_id = ?
		 ORDER BY s.created_at DESC`,
		userID,
	)
}

// ListActiveByMember returns the user's sessions that are still active.
func (r *Sessions) ListActiveByMember(ctx context.Context, userID int64) ([]Detail, error) {
	return r.list(ctx,
		`SELECT s.id, s.name, s.description, s.owner_id, s.max_participants, s.status, s.created_at, s.ended_at, u.username
		 FROM sessions s
		 JOIN users u ON u.id = s.owner_id
		 JOIN session_members m ON m.session_id = s.id AND m.user_id = ?
		 WHERE s.status = ?
		 ORDER BY s.created_at DESC`,
		userID, models.StatusActive,
	)
}

// ListRecentByMember returns the user's ended/terminated sessions, newest 20
// by ended_at. Terminated sessions have no membership rows left, so recency is
// keyed on ownership as well as surviving membership.
func (r *Sessions) ListRecentByMember(ctx context.Context, userID int64, limit int) ([]Detail, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.list(ctx,
		`SELECT DISTINCT s.id, s.name, s.description, s.owner_id, s.max_participants, s.status, s.created_at, s.ended_at, u.username
		 FROM sessions s
		 JOIN users u ON u.id = s.owner_id
		 LEFT JOIN session_members m ON m.session_id = s.id
		 WHERE s.status IN (?, ?) AND (m.user_id = ? OR s.owner_id = ?)
		 ORDER BY s.ended_at DESC
		 LIMIT ?`,
		models.StatusEnded, models.StatusTerminated, userID, userID, limit,
	)
}

// ListAll returns every session regardless of membership (operator/debug path).
func (r *Sessions) ListAll(ctx context.Context) ([]Detail, error) {
	return r.list(ctx,
		`SELECT s.id, s.name, s.description, s.owner_id, s.max_participants, s.status, s.created_at, s.ended_at, u.username
		 FROM sessions s JOIN users u ON u.id = s.owner_id
		 ORDER BY s.created_at DESC`,
	)
}

func (r *Sessions) list(ctx context.Context, query string, args ...any) ([]Detail, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var details []Detail
	for rows.Next() {
		var d Detail
		if err := rows.Scan(
			&d.Session.ID, &d.Session.Name, &d.Session.Description, &d.Session.OwnerID,
			&d.Session.MaxParticipants, &d.Session.Status, &d.Session.CreatedAt, &d.Session.EndedAt,
			&d.OwnerName,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range details {
		members, err := r.membersOf(ctx, details[i].Session.ID)
		if err != nil {
			return nil, err
		}
		details[i].Members = members
	}
	return details, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite3
		strings.Contains(msg, "Duplicate entry") // mysql 1062
}
