package models

import "time"

// ProposalStatus is the lifecycle state of a meal proposal. A proposal starts
// pending and moves monotonically to exactly one terminal status.
type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "pending"
	ProposalApproved  ProposalStatus = "approved"
	ProposalRejected  ProposalStatus = "rejected"
	ProposalWithdrawn ProposalStatus = "withdrawn"
	ProposalExpired   ProposalStatus = "expired"
)

// VoteChoice is a member's stance on a proposal.
type VoteChoice string

const (
	VoteApprove VoteChoice = "approve"
	VoteReject  VoteChoice = "reject"
)

// Vote is one member's current vote. A voter's newest vote supersedes any
// earlier one; Votes never holds two entries for the same voter.
type Vote struct {
	VoterID string     `json:"voter_id"`
	Choice  VoteChoice `json:"choice"`
	VotedAt time.Time  `json:"voted_at"`
}

// Dismissal hides a resolved proposal from one user without touching its
// status for anyone else.
type Dismissal struct {
	UserID      string    `json:"user_id"`
	DismissedAt time.Time `json:"dismissed_at"`
}

// Proposal is a member's suggestion to eat a specific meal on a specific
// date, decided by household vote.
type Proposal struct {
	ID          string         `json:"id"`
	HouseholdID string         `json:"household_id"`
	ProposedBy  string         `json:"proposed_by"`
	ProposedAt  time.Time      `json:"proposed_at"`
	TargetDate  string         `json:"target_date"` // YYYY-MM-DD
	Meal        string         `json:"meal"`
	Status      ProposalStatus `json:"status"`
	Votes       []Vote         `json:"votes,omitempty"`
	Dismissals  []Dismissal    `json:"dismissals,omitempty"`
	ClosedAt    *time.Time     `json:"closed_at,omitempty"`
}

// Terminal reports whether the proposal has reached a final status.
func (p *Proposal) Terminal() bool {
	return p.Status != ProposalPending
}

// CastVote records or replaces the voter's vote. Votes on a terminal
// proposal are ignored.
func (p *Proposal) CastVote(voterID string, choice VoteChoice, at time.Time) {
	if p.Terminal() {
		return
	}
	for i := range p.Votes {
		if p.Votes[i].VoterID == voterID {
			p.Votes[i].Choice = choice
			p.Votes[i].VotedAt = at
			return
		}
	}
	p.Votes = append(p.Votes, Vote{VoterID: voterID, Choice: choice, VotedAt: at})
}

// Dismiss records a per-user dismissal. Dismissing twice is a no-op, and
// dismissals never change the proposal status.
func (p *Proposal) Dismiss(userID string, at time.Time) {
	for _, d := range p.Dismissals {
		if d.UserID == userID {
			return
		}
	}
	p.Dismissals = append(p.Dismissals, Dismissal{UserID: userID, DismissedAt: at})
}

// DismissedBy reports whether the user already dismissed the proposal.
func (p *Proposal) DismissedBy(userID string) bool {
	for _, d := range p.Dismissals {
		if d.UserID == userID {
			return true
		}
	}
	return false
}
