package lifecycle

import (
	"testing"
	"time"

	"github.com/debashish17/Riverside/internal/models"
	"github.com/debashish17/Riverside/internal/repo"
)

func sampleDetail() *repo.Detail {
	now := time.Now().UTC()
	return &repo.Detail{
		Session: models.Session{
			ID:              7,
			Name:            "Interview",
			OwnerID:         1,
			MaxParticipants: 4,
			Status:          models.StatusActive,
			CreatedAt:       now,
		},
		OwnerName: "alice",
		Members: []repo.MemberUser{
			{UserID: 1, Username: "alice", Email: "alice@example.com", JoinedAt: now},
			{UserID: 2, Username: "bob", Email: "bob@example.com", JoinedAt: now.Add(time.Minute)},
		},
	}
}

func TestProjectParticipantsMarksOwnerByComparison(t *testing.T) {
	participants := ProjectParticipants(sampleDetail())
	if len(participants) != 2 {
		t.Fatalf("expected 2 participants, got %#v", participants)
	}
	if !participants[0].IsOwner || participants[0].Username != "alice" {
		t.Fatalf("owner not flagged: %#v", participants[0])
	}
	if participants[1].IsOwner {
		t.Fatalf("non-owner flagged as owner: %#v", participants[1])
	}
}

func TestProjectParticipantsEmptyMembership(t *testing.T) {
	d := sampleDetail()
	d.Members = nil
	participants := ProjectParticipants(d)
	if participants == nil || len(participants) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", participants)
	}
}

func TestProjectViewNeverExposesEmail(t *testing.T) {
	view := ProjectView(sampleDetail())
	if view.Owner != "alice" {
		t.Fatalf("owner = %q", view.Owner)
	}
	if len(view.Members) != 2 || view.Members[0] != "alice" || view.Members[1] != "bob" {
		t.Fatalf("members = %#v", view.Members)
	}
	for _, p := range view.Participants {
		if p.Username == "alice@example.com" || p.Username == "bob@example.com" {
			t.Fatalf("email leaked into projection: %#v", p)
		}
	}
}

func TestProjectSummaryIsViewerRelative(t *testing.T) {
	d := sampleDetail()

	asOwner := ProjectSummary(d, 1)
	if !asOwner.IsOwner || asOwner.MemberCount != 2 {
		t.Fatalf("owner summary: %#v", asOwner)
	}
	asMember := ProjectSummary(d, 2)
	if asMember.IsOwner {
		t.Fatalf("member summary flagged owner: %#v", asMember)
	}
}
