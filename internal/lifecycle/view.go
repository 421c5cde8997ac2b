package lifecycle

import (
	"github.com/debashish17/Riverside/internal/models"
	"github.com/debashish17/Riverside/internal/repo"
)

// SessionView is the wire shape for a single session. The participants slice
// here is the exact value broadcast to the session room, so a client's state
// after an HTTP call is bit-identical to what the broadcast would have told it.
type SessionView struct {
	models.Session
	Owner        string               `json:"owner"`
	Members      []string             `json:"members"`
	Participants []models.Participant `json:"participants"`
}

// SessionSummary is the list-view shape; isOwner is relative to the viewer.
type SessionSummary struct {
	models.Session
	Owner       string   `json:"owner"`
	Members     []string `json:"members"`
	MemberCount int      `json:"memberCount"`
	IsOwner     bool     `json:"isOwner"`
}

// ProjectParticipants derives the participant list from a read model. Pure
// function; ownership is a comparison against the session's ownerId, never a
// membership fact.
func ProjectParticipants(d *repo.Detail) []models.Participant {
	participants := make([]models.Participant, 0, len(d.Members))
	for _, m := range d.Members {
		participants = append(participants, models.Participant{
			ID:       m.UserID,
			Username: m.Username,
			IsOwner:  m.UserID == d.Session.OwnerID,
		})
	}
	return participants
}

// ProjectView builds the full client-facing session view.
func ProjectView(d *repo.Detail) SessionView {
	members := make([]string, 0, len(d.Members))
	for _, m := range d.Members {
		members = append(members, m.Username)
	}
	return SessionView{
		Session:      d.Session,
		Owner:        d.OwnerName,
		Members:      members,
		Participants: ProjectParticipants(d),
	}
}

// ProjectSummary builds the list entry for a given viewer.
func ProjectSummary(d *repo.Detail, viewerID int64) SessionSummary {
	members := make([]string, 0, len(d.Members))
	for _, m := range d.Members {
		members = append(members, m.Username)
	}
	return SessionSummary{
		Session:     d.Session,
		Owner:       d.OwnerName,
		Members:     members,
		MemberCount: len(d.Members),
		IsOwner:     d.Session.OwnerID == viewerID,
	}
}
