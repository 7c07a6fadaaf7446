package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmorrow1204/kitchensync/internal/models"
	"github.com/jmorrow1204/kitchensync/internal/proposals"
	"github.com/jmorrow1204/kitchensync/internal/store"
)

var (
	// ErrNotProposer is returned when someone other than the proposer
	// tries to withdraw a proposal.
	ErrNotProposer = errors.New("only the proposer can withdraw")

	// ErrProposalClosed is returned for mutations of a terminal proposal.
	ErrProposalClosed = errors.New("proposal already closed")
)

// ProposalService drives the meal-proposal lifecycle: creation, voting,
// withdrawal, per-user dismissal and the periodic sweep that expires stale
// proposals and clears old results. Status transitions are computed by the
// resolution engine; this service persists them through the same optimistic
// write path as any other entity, so votes cast offline sync like edits do.
type ProposalService interface {
	Propose(ctx context.Context, targetDate string, meal models.MealSlot) (*models.Proposal, error)
	Vote(ctx context.Context, proposalID string, choice models.VoteChoice) (*models.Proposal, error)
	Withdraw(ctx context.Context, proposalID string) error
	Dismiss(ctx context.Context, proposalID string) error

	// Visible lists the proposals the current user should see, pending
	// first, oldest first within a status.
	Visible(ctx context.Context) ([]models.Proposal, error)

	// Sweep expires stale pending proposals and returns how many changed.
	// Call it periodically and before rendering.
	Sweep(ctx context.Context) (int, error)
}

type proposalService struct {
	store       *store.Store
	notifier    PendingNotifier
	householdID string
	userID      string
	now         clock
}

func NewProposalService(st *store.Store, n PendingNotifier, householdID, userID string) ProposalService {
	return &proposalService{
		store:       st,
		notifier:    n,
		householdID: householdID,
		userID:      userID,
		now:         time.Now,
	}
}

// memberCount counts the household's members as known locally. A household
// always has at least its current user, even before the member list synced.
func (s *proposalService) memberCount(ctx context.Context) (int, error) {
	members, err := listInto[models.Member](ctx, s.store, models.EntityMember, s.householdID)
	if err != nil {
		return 0, err
	}
	if len(members) < 1 {
		return 1, nil
	}
	return len(members), nil
}

func (s *proposalService) save(ctx context.Context, p *models.Proposal) error {
	rec, err := models.WrapRecord(models.EntityProposal, s.householdID, p.ID, p)
	if err != nil {
		return fmt.Errorf("failed to encode proposal: %w", err)
	}
	if err := stage(ctx, s.store, rec); err != nil {
		return fmt.Errorf("failed to save proposal: %w", err)
	}
	notify(ctx, s.notifier)
	return nil
}

func (s *proposalService) Propose(ctx context.Context, targetDate string, meal models.MealSlot) (*models.Proposal, error) {
	p := &models.Proposal{
		ID:          uuid.NewString(),
		HouseholdID: s.householdID,
		ProposedBy:  s.userID,
		ProposedAt:  s.now().UTC(),
		TargetDate:  targetDate,
		Meal:        string(meal),
		Status:      models.ProposalPending,
	}
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *proposalService) Vote(ctx context.Context, proposalID string, choice models.VoteChoice) (*models.Proposal, error) {
	p, err := getInto[models.Proposal](ctx, s.store, models.EntityProposal, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Terminal() {
		return nil, ErrProposalClosed
	}

	count, err := s.memberCount(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p.CastVote(s.userID, choice, now)
	if next := proposals.Resolve(*p, count); next != p.Status {
		p.Status = next
		p.ClosedAt = &now
	}

	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *proposalService) Withdraw(ctx context.Context, proposalID string) error {
	p, err := getInto[models.Proposal](ctx, s.store, models.EntityProposal, proposalID)
	if err != nil {
		return err
	}
	if p.ProposedBy != s.userID {
		return ErrNotProposer
	}
	if p.Terminal() {
		return ErrProposalClosed
	}

	now := s.now().UTC()
	p.Status = models.ProposalWithdrawn
	p.ClosedAt = &now
	return s.save(ctx, p)
}

func (s *proposalService) Dismiss(ctx context.Context, proposalID string) error {
	p, err := getInto[models.Proposal](ctx, s.store, models.EntityProposal, proposalID)
	if err != nil {
		return err
	}

	p.Dismiss(s.userID, s.now().UTC())
	return s.save(ctx, p)
}

func (s *proposalService) Visible(ctx context.Context) ([]models.Proposal, error) {
	if _, err := s.Sweep(ctx); err != nil {
		return nil, err
	}

	all, err := listInto[models.Proposal](ctx, s.store, models.EntityProposal, s.householdID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	visible := make([]models.Proposal, 0, len(all))
	for _, p := range all {
		if proposals.VisibleTo(p, s.userID, now) {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

func (s *proposalService) Sweep(ctx context.Context) (int, error) {
	all, err := listInto[models.Proposal](ctx, s.store, models.EntityProposal, s.householdID)
	if err != nil {
		return 0, err
	}
	count, err := s.memberCount(ctx)
	if err != nil {
		return 0, err
	}

	changed := proposals.Sweep(all, count, s.now().UTC())
	for i := range changed {
		if err := s.save(ctx, &changed[i]); err != nil {
			return i, err
		}
	}
	return len(changed), nil
}
