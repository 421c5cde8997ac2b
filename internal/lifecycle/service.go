// Package lifecycle implements the session state machine: who may trigger each
// transition, how transitions are made durable, and which presence events are
// broadcast once a transition has committed.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/debashish17/Riverside/internal/models"
	"github.com/debashish17/Riverside/internal/observability"
	"github.com/debashish17/Riverside/internal/repo"
)

// Role is the viewer's relationship to a session, computed once per operation
// so the authorization matrix lives in one place.
type Role int

const (
	RoleOwner Role = iota
	RoleMember
	RoleNone
)

func roleOf(principal models.User, d *repo.Detail) Role {
	if principal.ID == d.Session.OwnerID {
		return RoleOwner
	}
	for _, m := range d.Members {
		if m.UserID == principal.ID {
			return RoleMember
		}
	}
	return RoleNone
}

// Actions reported by SmartLeave.
const (
	ActionTerminated = "terminated"
	ActionLeft       = "left"
)

const terminatedMessage = "Session has been ended by the owner"

// Read-after-write guard bounds: a session fetched right after creation may
// not be visible yet on the read path; NotFound (and only NotFound) is retried.
const (
	readRetries    = 3
	readRetryDelay = 500 * time.Millisecond
)

// Service is the session lifecycle state machine. All mutations go through
// here; broadcasts are emitted strictly after the durable transaction commits.
type Service struct {
	sessions *repo.Sessions
	notifier Notifier
	metrics  *observability.Metrics

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

func NewService(sessions *repo.Sessions, notifier Notifier, metrics *observability.Metrics) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		sessions: sessions,
		notifier: notifier,
		metrics:  metrics,
		sleep:    time.Sleep,
	}
}

// CreateParams is the create request after JSON binding.
type CreateParams struct {
	Name            string
	Description     string
	MaxParticipants int
}

// Create validates input and creates an active session with the creator as
// its first member, atomically. Any authenticated principal may create.
func (s *Service) Create(ctx context.Context, principal models.User, p CreateParams) (*SessionView, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, errValidation("Session name is required and cannot be empty")
	}
	if len(name) > models.MaxSessionNameLen {
		return nil, errValidation("Session name must be less than %d characters", models.MaxSessionNameLen)
	}
	if len(p.Description) > models.MaxSessionDescriptionLen {
		return nil, errValidation("Session description must be less than %d characters", models.MaxSessionDescriptionLen)
	}
	maxParticipants := p.MaxParticipants
	if maxParticipants == 0 {
		maxParticipants = models.DefaultMaxParticipants
	}
	if maxParticipants < models.MinMaxParticipants {
		return nil, errValidation("Session needs room for at least %d participants", models.MinMaxParticipants)
	}

	created, err := s.sessions.CreateWithOwner(ctx, name, p.Description, maxParticipants, principal.ID)
	if err != nil {
		s.metrics.ObserveOp("create", "error")
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.metrics.ObserveOp("create", "ok")
	log.Info().Int64("session_id", created.ID).Str("owner", principal.Username).Msg("session created")

	// The creator is the sole member; project from what was just written
	// instead of re-reading a possibly lagging replica.
	detail := &repo.Detail{
		Session:   *created,
		OwnerName: principal.Username,
		Members: []repo.MemberUser{{
			UserID:   principal.ID,
			Username: principal.Username,
			Email:    principal.Email,
			JoinedAt: created.CreatedAt,
		}},
	}
	view := ProjectView(detail)
	return &view, nil
}

// Join adds the principal to an active, non-full session. Joining a session
// you already belong to is idempotent. The refreshed participant list is
// broadcast either way.
func (s *Service) Join(ctx context.Context, principal models.User, sessionID int64) (*SessionView, error) {
	added, err := s.sessions.AddMember(ctx, sessionID, principal.ID)
	if err != nil {
		s.metrics.ObserveOp("join", "error")
		return nil, mapRepoErr(err)
	}

	detail, err := s.sessions.GetWithMembers(ctx, sessionID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	view := ProjectView(detail)

	s.metrics.ObserveOp("join", "ok")
	if added {
		log.Info().Int64("session_id", sessionID).Str("user", principal.Username).Msg("user joined session")
	}
	s.broadcast(sessionID, EventParticipantsUpdate, view.Participants)
	return &view, nil
}

// Leave removes the principal's own membership. The session status is
// untouched even when the owner leaves: ownership is a session attribute, not
// a membership fact.
func (s *Service) Leave(ctx context.Context, principal models.User, sessionID int64) (*SessionView, error) {
	detail, err := s.sessions.GetWithMembers(ctx, sessionID)
	if err != nil {
		s.metrics.ObserveOp("leave", "error")
		return nil, mapRepoErr(err)
	}
	wasOwner := principal.ID == detail.Session.OwnerID

	removed, err := s.sessions.RemoveMember(ctx, sessionID, principal.ID)
	if err != nil {
		s.metrics.ObserveOp("leave", "error")
		return nil, fmt.Errorf("leave session: %w", err)
	}
	if !removed {
		s.metrics.ObserveOp("leave", "rejected")
		return nil, errNotAMember()
	}

	updated, err := s.sessions.GetWithMembers(ctx, sessionID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	view := ProjectView(updated)

	s.metrics.ObserveOp("leave", "ok")
	log.Info().Int64("session_id", sessionID).Str("user", principal.Username).Bool("was_owner", wasOwner).Msg("user left session")
	s.broadcast(sessionID, EventParticipantsUpdate, view.Participants)
	s.broadcast(sessionID, EventUserLeft, UserLeftPayload{
		UserID:   principal.ID,
		Username: principal.Username,
		WasOwner: wasOwner,
	})
	return &view, nil
}

// SmartLeave is the primary "leave call" path: owners terminate the session
// for everyone, other members just leave.
func (s *Service) SmartLeave(ctx context.Context, principal models.User, sessionID int64) (string, *SessionView, error) {
	detail, err := s.sessions.GetWithMembers(ctx, sessionID)
	if err != nil {
		s.metrics.ObserveOp("smart_leave", "error")
		return "", nil, mapRepoErr(err)
	}

	if roleOf(principal, detail) != RoleOwner {
		view, err := s.Leave(ctx, principal, sessionID)
		if err != nil {
			return "", nil, err
		}
		return ActionLeft, view, nil
	}

	view, err := s.terminate(ctx, principal, sessionID)
	if err != nil {
		return "", nil, err
	}
	return ActionTerminated, view, nil
}

// End marks the session ended without evicting anyone; the membership rows
// remain as a record of who was present. Owner only.
func (s *Service) End(ctx context.Context, principal models.User, sessionID int64) (*SessionView, error) {
	detail, err := s.sessions.GetWithMembers(ctx, sessionID)
	if err != nil {
		s.metrics.ObserveOp("end", "error")
		return nil, mapRepoErr(err)
	}
	if roleOf(principal, detail) != RoleOwner {
		s.metrics.ObserveOp("end", "forbidden")
		return nil, errForbidden("Only session owner can end the session")
	}

	if err := s.sessions.SetStatus(ctx, sessionID, models.StatusEnded, time.Now().UTC()); err != nil {
		s.metrics.ObserveOp("end", "error")
		return nil, mapRepoErr(err)
	}
	s.metrics.ObserveOp("end", "ok")
	log.Info().Int64("session_id", sessionID).Str("owner", principal.Username).Msg("session ended")

	updated, err := s.sessions.GetWithMembers(ctx, sessionID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	view := ProjectView(updated)
	return &view, nil
}

// Terminate ends the session and force-evicts every member. Owner only.
func (s *Service) Terminate(ctx context.Context, principal models.User, sessionID int64) (*SessionView, error) {
	detail, err := s.sessions.GetWithMembers(ctx, sessionID)
	if err != nil {
		s.metrics.ObserveOp("terminate", "error")
		return nil, mapRepoErr(err)
	}
	if roleOf(principal, detail) != RoleOwner {
		s.metrics.ObserveOp("terminate", "forbidden")
		return nil, errForbidden("Only session owner can terminate the session")
	}
	return s.terminate(ctx, principal, sessionID)
}

// terminate performs the committed transition plus the post-commit broadcasts.
// Callers have already established the principal is the owner.
func (s *Service) terminate(ctx context.Context, principal models.User, sessionID int64) (*SessionView, error) {
	if err := s.sessions.Terminate(ctx, sessionID, time.Now().UTC()); err != nil {
		s.metrics.ObserveOp("terminate", "error")
		return nil, mapRepoErr(err)
	}
	s.metrics.ObserveOp("terminate", "ok")
	log.Info().Int64("session_id", sessionID).Str("owner", principal.Username).Msg("session terminated, all members evicted")

	s.broadcast(sessionID, EventSessionTerminated, TerminatedPayload{
		SessionID: strconv.FormatInt(sessionID, 10),
		Message:   terminatedMessage,
	})
	s.broadcast(sessionID, EventParticipantsUpdate, []models.Participant{})

	updated, err := s.sessions.GetWithMembers(ctx, sessionID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	view := ProjectView(updated)
	return &view, nil
}

// Clear hard-deletes the session; membership rows cascade. Owner only.
// Irreversible. Clients in the room are told the session is gone, same as a
// terminate.
func (s *Service) Clear(ctx context.Context, principal models.User, sessionID int64) error {
	detail, err := s.sessions.GetWithMembers(ctx, sessionID)
	if err != nil {
		s.metrics.ObserveOp("clear", "error")
		return mapRepoErr(err)
	}
	if roleOf(principal, detail) != RoleOwner {
		s.metrics.ObserveOp("clear", "forbidden")
		return errForbidden("Only session owner can clear the session")
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.metrics.ObserveOp("clear", "error")
		return mapRepoErr(err)
	}
	s.metrics.ObserveOp("clear", "ok")
	log.Info().Int64("session_id", sessionID).Str("owner", principal.Username).Msg("session cleared")

	s.broadcast(sessionID, EventSessionTerminated, TerminatedPayload{
		SessionID: strconv.FormatInt(sessionID, 10),
		Message:   terminatedMessage,
	})
	s.broadcast(sessionID, EventParticipantsUpdate, []models.Participant{})
	return nil
}

// Get returns the session view to an owner or member. A NotFound immediately
// after creation is retried with backoff (read replicas may lag the write);
// Forbidden and every other failure surface immediately.
func (s *Service) Get(ctx context.Context, principal models.User, sessionID int64) (*SessionView, error) {
	var detail *repo.Detail
	var err error
	for attempt := 0; ; attempt++ {
		detail, err = s.sessions.GetWithMembers(ctx, sessionID)
		if err == nil {
			break
		}
		if !errors.Is(err, repo.ErrNotFound) || attempt >= readRetries {
			s.metrics.ObserveOp("get", "error")
			return nil, mapRepoErr(err)
		}
		s.metrics.ObserveRetry()
		log.Debug().Int64("session_id", sessionID).Int("attempt", attempt+1).Msg("session not visible yet, retrying")
		s.sleep(time.Duration(attempt+1) * readRetryDelay)
	}

	if roleOf(principal, detail) == RoleNone {
		s.metrics.ObserveOp("get", "forbidden")
		return nil, errForbidden("Access denied to this session")
	}
	s.metrics.ObserveOp("get", "ok")
	view := ProjectView(detail)
	return &view, nil
}

// ListSummary tallies the user's sessions per status alongside ListMine.
type ListSummary struct {
	Total      int `json:"total"`
	Active     int `json:"active"`
	Ended      int `json:"ended"`
	Terminated int `json:"terminated"`
}

// ListMine returns every session the principal belongs to, newest first.
func (s *Service) ListMine(ctx context.Context, principal models.User) ([]SessionSummary, ListSummary, error) {
	details, err := s.sessions.ListByMember(ctx, principal.ID)
	if err != nil {
		return nil, ListSummary{}, fmt.Errorf("list sessions: %w", err)
	}
	summaries := make([]SessionSummary, 0, len(details))
	var tally ListSummary
	for i := range details {
		summaries = append(summaries, ProjectSummary(&details[i], principal.ID))
		tally.Total++
		switch details[i].Session.Status {
		case models.StatusActive:
			tally.Active++
		case models.StatusEnded:
			tally.Ended++
		case models.StatusTerminated:
			tally.Terminated++
		}
	}
	return summaries, tally, nil
}

// ListActive returns the principal's still-active sessions.
func (s *Service) ListActive(ctx context.Context, principal models.User) ([]SessionSummary, error) {
	details, err := s.sessions.ListActiveByMember(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return s.summarize(details, principal.ID), nil
}

// ListRecent returns the principal's ended/terminated sessions, newest 20.
func (s *Service) ListRecent(ctx context.Context, principal models.User) ([]SessionSummary, error) {
	details, err := s.sessions.ListRecentByMember(ctx, principal.ID, 20)
	if err != nil {
		return nil, fmt.Errorf("list recent sessions: %w", err)
	}
	return s.summarize(details, principal.ID), nil
}

// ListAll returns every session with no membership filter (operator/debug).
func (s *Service) ListAll(ctx context.Context, principal models.User) ([]SessionSummary, error) {
	details, err := s.sessions.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all sessions: %w", err)
	}
	return s.summarize(details, principal.ID), nil
}

func (s *Service) summarize(details []repo.Detail, viewerID int64) []SessionSummary {
	summaries := make([]SessionSummary, 0, len(details))
	for i := range details {
		summaries = append(summaries, ProjectSummary(&details[i], viewerID))
	}
	return summaries
}

func (s *Service) broadcast(sessionID int64, event string, payload any) {
	s.metrics.ObserveBroadcast(event)
	s.notifier.Broadcast(sessionID, event, payload)
}

// mapRepoErr translates storage-level outcomes into the lifecycle taxonomy.
// Anything unrecognized is wrapped and surfaces as an internal error upstream.
func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return errNotFound()
	case errors.Is(err, repo.ErrNotActive):
		return errInvalidState()
	case errors.Is(err, repo.ErrFull):
		return errCapacity()
	default:
		return err
	}
}
