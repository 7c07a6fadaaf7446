package proposals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jmorrow1204/kitchensync/internal/models"
)

func votes(pairs ...any) []models.Vote {
	var vs []models.Vote
	for i := 0; i < len(pairs); i += 2 {
		vs = append(vs, models.Vote{
			VoterID: pairs[i].(string),
			Choice:  pairs[i+1].(models.VoteChoice),
			VotedAt: time.Now(),
		})
	}
	return vs
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		votes       []models.Vote
		memberCount int
		want        models.ProposalStatus
	}{
		{
			name:        "single reject vetoes despite approvals",
			votes:       votes("a", models.VoteApprove, "b", models.VoteReject, "c", models.VoteApprove),
			memberCount: 3,
			want:        models.ProposalRejected,
		},
		{
			name:        "unanimous approval approves",
			votes:       votes("a", models.VoteApprove, "b", models.VoteApprove, "c", models.VoteApprove),
			memberCount: 3,
			want:        models.ProposalApproved,
		},
		{
			name:        "partial approval stays pending",
			votes:       votes("a", models.VoteApprove),
			memberCount: 3,
			want:        models.ProposalPending,
		},
		{
			name:        "solo household never auto-approves",
			votes:       votes("a", models.VoteApprove),
			memberCount: 1,
			want:        models.ProposalPending,
		},
		{
			name:        "solo household never auto-rejects",
			votes:       votes("a", models.VoteReject),
			memberCount: 1,
			want:        models.ProposalPending,
		},
		{
			name:        "no votes stays pending",
			votes:       nil,
			memberCount: 4,
			want:        models.ProposalPending,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			p := models.Proposal{Status: models.ProposalPending, Votes: tt.votes}
			assert.Equal(t, tt.want, Resolve(p, tt.memberCount))
		})
	}
}

func TestResolve_TerminalUnchanged(t *testing.T) {
	p := models.Proposal{
		Status: models.ProposalWithdrawn,
		Votes:  votes("a", models.VoteApprove, "b", models.VoteApprove),
	}
	assert.Equal(t, models.ProposalWithdrawn, Resolve(p, 2))
}

func TestShouldExpire_Boundary(t *testing.T) {
	now := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)

	pending := models.Proposal{Status: models.ProposalPending}

	pending.ProposedAt = now.Add(-23*time.Hour - 59*time.Minute)
	assert.False(t, ShouldExpire(pending, now))

	pending.ProposedAt = now.Add(-24 * time.Hour)
	assert.True(t, ShouldExpire(pending, now), "exactly 24h is expired")

	ancient := models.Proposal{Status: models.ProposalApproved, ProposedAt: now.Add(-100 * 24 * time.Hour)}
	assert.False(t, ShouldExpire(ancient, now), "terminal proposals never expire")
}

func TestShouldAutoClearResult(t *testing.T) {
	now := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)

	closedOld := now.Add(-24 * time.Hour)
	closedFresh := now.Add(-time.Hour)

	assert.True(t, ShouldAutoClearResult(models.Proposal{Status: models.ProposalRejected, ClosedAt: &closedOld}, now))
	assert.False(t, ShouldAutoClearResult(models.Proposal{Status: models.ProposalRejected, ClosedAt: &closedFresh}, now))
	assert.False(t, ShouldAutoClearResult(models.Proposal{Status: models.ProposalRejected}, now), "no closedAt, nothing to clear")
	assert.False(t, ShouldAutoClearResult(models.Proposal{Status: models.ProposalPending, ClosedAt: &closedOld}, now))
}

func TestVisibleTo(t *testing.T) {
	now := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)
	closed := now.Add(-time.Hour)

	p := models.Proposal{
		Status:     models.ProposalApproved,
		ClosedAt:   &closed,
		Dismissals: []models.Dismissal{{UserID: "alice", DismissedAt: closed}},
	}

	assert.False(t, VisibleTo(p, "alice", now), "dismissed for the dismisser even inside the window")
	assert.True(t, VisibleTo(p, "bob", now), "visible for everyone else")

	cleared := now.Add(-25 * time.Hour)
	p.ClosedAt = &cleared
	assert.False(t, VisibleTo(p, "bob", now), "auto-cleared for everyone")

	pending := models.Proposal{Status: models.ProposalPending, ProposedAt: now.Add(-time.Hour)}
	assert.True(t, VisibleTo(pending, "bob", now))
}

func TestSweep(t *testing.T) {
	now := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)

	list := []models.Proposal{
		{ID: "p1", Status: models.ProposalPending, ProposedAt: now.Add(-25 * time.Hour)},
		{ID: "p2", Status: models.ProposalPending, ProposedAt: now.Add(-time.Hour),
			Votes: votes("a", models.VoteApprove, "b", models.VoteApprove)},
		{ID: "p3", Status: models.ProposalPending, ProposedAt: now.Add(-time.Hour)},
		{ID: "p4", Status: models.ProposalApproved, ProposedAt: now.Add(-48 * time.Hour)},
	}

	changed := Sweep(list, 2, now)

	byID := map[string]models.Proposal{}
	for _, p := range changed {
		byID[p.ID] = p
	}

	assert.Len(t, changed, 2)
	assert.Equal(t, models.ProposalExpired, byID["p1"].Status)
	assert.Equal(t, models.ProposalApproved, byID["p2"].Status)
	assert.NotNil(t, byID["p1"].ClosedAt)
	assert.NotNil(t, byID["p2"].ClosedAt)

	// input untouched
	assert.Equal(t, models.ProposalPending, list[0].Status)
}
