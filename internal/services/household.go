package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmorrow1204/kitchensync/internal/models"
	"github.com/jmorrow1204/kitchensync/internal/store"
)

// HouseholdService manages the household itself: its record, its member
// list and the user's own profile. Writes follow the same optimistic path
// as dishes and plans.
type HouseholdService interface {
	SaveHousehold(ctx context.Context, h *models.Household) error
	GetHousehold(ctx context.Context) (*models.Household, error)

	AddMember(ctx context.Context, m *models.Member) error
	ListMembers(ctx context.Context) ([]models.Member, error)
	RemoveMember(ctx context.Context, memberID string) error

	SaveProfile(ctx context.Context, p *models.Profile) error
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
}

type householdService struct {
	store       *store.Store
	notifier    PendingNotifier
	householdID string
	now         clock
}

func NewHouseholdService(st *store.Store, n PendingNotifier, householdID string) HouseholdService {
	return &householdService{store: st, notifier: n, householdID: householdID, now: time.Now}
}

func (s *householdService) SaveHousehold(ctx context.Context, h *models.Household) error {
	if h.ID == "" {
		h.ID = s.householdID
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = s.now().UTC()
	}

	rec, err := models.WrapRecord(models.EntityHousehold, h.ID, h.ID, h)
	if err != nil {
		return fmt.Errorf("failed to encode household: %w", err)
	}
	if err := stage(ctx, s.store, rec); err != nil {
		return fmt.Errorf("failed to save household: %w", err)
	}
	notify(ctx, s.notifier)
	return nil
}

func (s *householdService) GetHousehold(ctx context.Context) (*models.Household, error) {
	return getInto[models.Household](ctx, s.store, models.EntityHousehold, s.householdID)
}

func (s *householdService) AddMember(ctx context.Context, m *models.Member) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.HouseholdID = s.householdID
	if m.JoinedAt.IsZero() {
		m.JoinedAt = s.now().UTC()
	}

	rec, err := models.WrapRecord(models.EntityMember, s.householdID, m.ID, m)
	if err != nil {
		return fmt.Errorf("failed to encode member: %w", err)
	}
	if err := stage(ctx, s.store, rec); err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	notify(ctx, s.notifier)
	return nil
}

func (s *householdService) ListMembers(ctx context.Context) ([]models.Member, error) {
	return listInto[models.Member](ctx, s.store, models.EntityMember, s.householdID)
}

func (s *householdService) RemoveMember(ctx context.Context, memberID string) error {
	if err := stageDelete(ctx, s.store, models.EntityMember, memberID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	notify(ctx, s.notifier)
	return nil
}

func (s *householdService) SaveProfile(ctx context.Context, p *models.Profile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	// profiles belong to the user, not the household, but they ride the
	// same cache; keyed under the household for query symmetry
	rec, err := models.WrapRecord(models.EntityProfile, s.householdID, p.ID, p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := stage(ctx, s.store, rec); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	notify(ctx, s.notifier)
	return nil
}

func (s *householdService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	return getInto[models.Profile](ctx, s.store, models.EntityProfile, userID)
}
