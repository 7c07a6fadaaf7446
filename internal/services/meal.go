package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmorrow1204/kitchensync/internal/common"
	"github.com/jmorrow1204/kitchensync/internal/locks"
	"github.com/jmorrow1204/kitchensync/internal/models"
	"github.com/jmorrow1204/kitchensync/internal/store"
)

// MealService defines the household data operations of the client.
//
// Contract:
//   - Saves commit locally at once (optimistic) and queue the remote push;
//     callers never wait for the network.
//   - Meal-plan mutations are gated by the edit lock: a plan held by another
//     user cannot be saved, deleted or assigned to (locks.ErrHeldByOther).
//   - Deletes tombstone the entity until the server acknowledges.
//
// All methods honor context cancellation.
type MealService interface {
	SaveDish(ctx context.Context, d *models.Dish) error
	GetDish(ctx context.Context, id string) (*models.Dish, error)
	ListDishes(ctx context.Context) ([]models.Dish, error)
	DeleteDish(ctx context.Context, id string) error

	SaveMealPlan(ctx context.Context, p *models.MealPlan) error
	GetMealPlan(ctx context.Context, id string) (*models.MealPlan, error)
	ListMealPlans(ctx context.Context) ([]models.MealPlan, error)
	DeleteMealPlan(ctx context.Context, id string) error

	// AssignDay pins a dish to a meal slot on a day of the plan, replacing
	// any previous assignment for that (date, meal).
	AssignDay(ctx context.Context, planID string, a models.DayAssignment) error
}

// mealService is the concrete MealService over the local store. The lock
// manager it holds routes to the cache or the backend depending on
// connectivity, so the gating logic is identical either way.
type mealService struct {
	store       *store.Store
	locks       *locks.Manager
	notifier    PendingNotifier
	householdID string
	userID      string
	now         clock
}

// NewMealService constructs a MealService for one household session.
func NewMealService(st *store.Store, lm *locks.Manager, n PendingNotifier, householdID, userID string) MealService {
	return &mealService{
		store:       st,
		locks:       lm,
		notifier:    n,
		householdID: householdID,
		userID:      userID,
		now:         time.Now,
	}
}

func (s *mealService) SaveDish(ctx context.Context, d *models.Dish) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.HouseholdID = s.householdID

	rec, err := models.WrapRecord(models.EntityDish, s.householdID, d.ID, d)
	if err != nil {
		return fmt.Errorf("failed to encode dish: %w", err)
	}
	if err := stage(ctx, s.store, rec); err != nil {
		return fmt.Errorf("failed to save dish: %w", err)
	}
	notify(ctx, s.notifier)
	return nil
}

func (s *mealService) GetDish(ctx context.Context, id string) (*models.Dish, error) {
	return getInto[models.Dish](ctx, s.store, models.EntityDish, id)
}

func (s *mealService) ListDishes(ctx context.Context) ([]models.Dish, error) {
	return listInto[models.Dish](ctx, s.store, models.EntityDish, s.householdID)
}

func (s *mealService) DeleteDish(ctx context.Context, id string) error {
	if err := stageDelete(ctx, s.store, models.EntityDish, id); err != nil {
		return fmt.Errorf("failed to delete dish: %w", err)
	}
	notify(ctx, s.notifier)
	return nil
}

// gate refuses the mutation when someone else holds a fresh lock on the
// plan. An unknown plan passes, it is being created.
func (s *mealService) gate(ctx context.Context, planID string) error {
	st, err := s.locks.Check(ctx, planID, s.userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return err
	}
	if st.IsLocked && !st.HeldByCaller && !st.IsStale {
		return locks.ErrHeldByOther
	}
	return nil
}

func (s *mealService) SaveMealPlan(ctx context.Context, p *models.MealPlan) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.HouseholdID = s.householdID

	if err := s.gate(ctx, p.ID); err != nil {
		return err
	}

	// the lock fields belong to the lock manager; carry the stored ones
	// so a save cannot silently unlock the plan
	if cur, err := s.GetMealPlan(ctx, p.ID); err == nil {
		p.SetLock(cur.Lock())
	} else if !errors.Is(err, common.ErrNotFound) {
		return err
	}

	rec, err := models.WrapRecord(models.EntityMealPlan, s.householdID, p.ID, p)
	if err != nil {
		return fmt.Errorf("failed to encode meal plan: %w", err)
	}
	if err := stage(ctx, s.store, rec); err != nil {
		return fmt.Errorf("failed to save meal plan: %w", err)
	}
	notify(ctx, s.notifier)
	return nil
}

func (s *mealService) GetMealPlan(ctx context.Context, id string) (*models.MealPlan, error) {
	return getInto[models.MealPlan](ctx, s.store, models.EntityMealPlan, id)
}

func (s *mealService) ListMealPlans(ctx context.Context) ([]models.MealPlan, error) {
	return listInto[models.MealPlan](ctx, s.store, models.EntityMealPlan, s.householdID)
}

func (s *mealService) DeleteMealPlan(ctx context.Context, id string) error {
	if err := s.gate(ctx, id); err != nil {
		return err
	}
	if err := stageDelete(ctx, s.store, models.EntityMealPlan, id); err != nil {
		return fmt.Errorf("failed to delete meal plan: %w", err)
	}
	notify(ctx, s.notifier)
	return nil
}

func (s *mealService) AssignDay(ctx context.Context, planID string, a models.DayAssignment) error {
	if err := s.gate(ctx, planID); err != nil {
		return err
	}

	plan, err := s.GetMealPlan(ctx, planID)
	if err != nil {
		return err
	}

	replaced := false
	for i, day := range plan.Days {
		if day.Date == a.Date && day.Meal == a.Meal {
			plan.Days[i] = a
			replaced = true
			break
		}
	}
	if !replaced {
		plan.Days = append(plan.Days, a)
	}
	return s.SaveMealPlan(ctx, plan)
}
