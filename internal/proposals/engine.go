// Package proposals decides the outcome of household meal proposals from
// their votes, age and per-user dismissals. Everything here is a pure
// function of its inputs; callers supply the clock.
package proposals

import (
	"time"

	"github.com/jmorrow1204/kitchensync/internal/common"
	"github.com/jmorrow1204/kitchensync/internal/models"
)

// Resolve returns the proposal's next status given the current votes and the
// household size. Terminal statuses are returned unchanged.
//
// The rules, in order:
//   - strict veto: any reject vote rejects the proposal outright;
//   - solo household: with a single member there is no peer to ratify
//     against, so votes alone never approve or reject;
//   - unanimity: every member voting approve approves the proposal;
//   - otherwise the proposal stays pending.
func Resolve(p models.Proposal, memberCount int) models.ProposalStatus {
	if p.Status != models.ProposalPending {
		return p.Status
	}

	approvals := 0
	for _, v := range p.Votes {
		switch v.Choice {
		case models.VoteReject:
			if memberCount > 1 {
				return models.ProposalRejected
			}
		case models.VoteApprove:
			approvals++
		}
	}

	if memberCount > 1 && approvals == memberCount {
		return models.ProposalApproved
	}
	return models.ProposalPending
}

// ShouldExpire reports whether a pending proposal has waited long enough to
// expire. Terminal proposals never expire, whatever their age.
func ShouldExpire(p models.Proposal, now time.Time) bool {
	if p.Status != models.ProposalPending {
		return false
	}
	return now.Sub(p.ProposedAt) >= common.ProposalExpiry
}

// ShouldAutoClearResult reports whether a resolved proposal has outlived its
// result-visibility window.
func ShouldAutoClearResult(p models.Proposal, now time.Time) bool {
	if p.Status == models.ProposalPending || p.ClosedAt == nil {
		return false
	}
	return now.Sub(*p.ClosedAt) >= common.ResultAutoClear
}

// VisibleTo reports whether the user should still see the proposal: cleared
// results and personally dismissed proposals are hidden; everything else,
// including every pending proposal, is shown.
func VisibleTo(p models.Proposal, userID string, now time.Time) bool {
	if ShouldAutoClearResult(p, now) {
		return false
	}
	return !p.DismissedBy(userID)
}

// Sweep applies expiry and vote resolution across a household's proposals
// and returns fresh copies of those whose status changed, stamping ClosedAt
// on every transition to a terminal status. The input is not modified.
func Sweep(list []models.Proposal, memberCount int, now time.Time) []models.Proposal {
	var changed []models.Proposal
	for _, p := range list {
		if p.Status != models.ProposalPending {
			continue
		}

		next := p.Status
		if ShouldExpire(p, now) {
			next = models.ProposalExpired
		} else {
			next = Resolve(p, memberCount)
		}
		if next == p.Status {
			continue
		}

		p.Status = next
		closed := now
		p.ClosedAt = &closed
		changed = append(changed, p)
	}
	return changed
}
