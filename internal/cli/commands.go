package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmorrow1204/kitchensync/internal/common"
	"github.com/jmorrow1204/kitchensync/internal/locks"
	"github.com/jmorrow1204/kitchensync/internal/models"
)

func (a *App) Status(ctx context.Context) error {
	state, pending := a.session.Reconciler.State()
	fmt.Fprintf(a.out, "state: %s, pending changes: %d, user: %s, household: %s\n",
		state, pending, a.user.UserID(), a.session.HouseholdID)

	att, err := a.session.Reconciler.NeedsAttention(ctx)
	if err != nil {
		return err
	}
	if len(att.Exhausted) > 0 || att.Conflicts > 0 {
		fmt.Fprintf(a.out, "needs attention: %d failed pushes, %d conflicts (see 'attention')\n",
			len(att.Exhausted), att.Conflicts)
	}
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	if err := a.session.Reconciler.SyncNow(ctx); err != nil {
		if errors.Is(err, common.ErrSyncInProgress) {
			fmt.Fprintln(a.out, "sync already running")
			return nil
		}
		return err
	}
	fmt.Fprintln(a.out, "sync complete")
	return nil
}

func (a *App) Dishes(ctx context.Context) error {
	dishes, err := a.session.Meals.ListDishes(ctx)
	if err != nil {
		return err
	}
	if len(dishes) == 0 {
		fmt.Fprintln(a.out, "no dishes yet")
		return nil
	}
	for _, d := range dishes {
		line := fmt.Sprintf("  %s  %s", d.ID, d.Name)
		if len(d.Tags) > 0 {
			line += "  [" + strings.Join(d.Tags, ", ") + "]"
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}

func (a *App) AddDish(ctx context.Context, name string, tags []string) error {
	d := &models.Dish{Name: name, Tags: tags}
	if err := a.session.Meals.SaveDish(ctx, d); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "added dish", d.ID)
	return nil
}

func (a *App) DeleteDish(ctx context.Context, id string) error {
	return a.session.Meals.DeleteDish(ctx, id)
}

func (a *App) Plans(ctx context.Context) error {
	plans, err := a.session.Meals.ListMealPlans(ctx)
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		fmt.Fprintln(a.out, "no meal plans yet")
		return nil
	}
	for _, p := range plans {
		line := fmt.Sprintf("  %s  week of %s, %d assignments", p.ID, p.WeekStart, len(p.Days))
		if p.Lock().Held() {
			line += fmt.Sprintf("  (locked by %s)", p.LockedBy)
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}

func (a *App) NewPlan(ctx context.Context, weekStart string) error {
	p := &models.MealPlan{WeekStart: weekStart}
	if err := a.session.Meals.SaveMealPlan(ctx, p); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "created plan", p.ID)
	return nil
}

func (a *App) Assign(ctx context.Context, planID, date, meal, dishID string) error {
	err := a.session.Meals.AssignDay(ctx, planID, models.DayAssignment{
		Date:   date,
		Meal:   models.MealSlot(meal),
		DishID: dishID,
	})
	if errors.Is(err, locks.ErrHeldByOther) {
		fmt.Fprintln(a.out, "plan is being edited by someone else; try 'lock' first")
		return nil
	}
	return err
}

func (a *App) Lock(ctx context.Context, planID string) error {
	st, err := a.session.Locks.Acquire(ctx, planID, a.user.UserID())
	if errors.Is(err, locks.ErrHeldByOther) {
		fmt.Fprintf(a.out, "held by %s; 'forceunlock' works once it goes stale\n", st.LockedBy)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "locked", planID)
	return nil
}

func (a *App) Unlock(ctx context.Context, planID string) error {
	err := a.session.Locks.Release(ctx, planID, a.user.UserID())
	if errors.Is(err, locks.ErrNotHeldByUser) {
		fmt.Fprintln(a.out, "you do not hold this lock")
		return nil
	}
	return err
}

func (a *App) ForceUnlock(ctx context.Context, planID string) error {
	st, err := a.session.Locks.ForceUnlock(ctx, planID)
	if errors.Is(err, locks.ErrNotStale) {
		fmt.Fprintf(a.out, "lock held by %s is still fresh\n", st.LockedBy)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "unlocked", planID)
	return nil
}

func (a *App) Proposals(ctx context.Context) error {
	list, err := a.session.Proposals.Visible(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "no proposals")
		return nil
	}
	for _, p := range list {
		fmt.Fprintf(a.out, "  %s  %s %s by %s: %s (%d votes)\n",
			p.ID, p.TargetDate, p.Meal, p.ProposedBy, p.Status, len(p.Votes))
	}
	return nil
}

func (a *App) Propose(ctx context.Context, date, meal string) error {
	p, err := a.session.Proposals.Propose(ctx, date, models.MealSlot(meal))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "proposed", p.ID)
	return nil
}

func (a *App) Vote(ctx context.Context, proposalID, choice string) error {
	var vc models.VoteChoice
	switch choice {
	case "approve":
		vc = models.VoteApprove
	case "reject":
		vc = models.VoteReject
	default:
		fmt.Fprintln(a.out, "vote must be approve or reject")
		return nil
	}

	p, err := a.session.Proposals.Vote(ctx, proposalID, vc)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "voted; proposal is now %s\n", p.Status)
	return nil
}

func (a *App) Withdraw(ctx context.Context, proposalID string) error {
	return a.session.Proposals.Withdraw(ctx, proposalID)
}

func (a *App) Dismiss(ctx context.Context, proposalID string) error {
	return a.session.Proposals.Dismiss(ctx, proposalID)
}

func (a *App) Attention(ctx context.Context) error {
	att, err := a.session.Reconciler.NeedsAttention(ctx)
	if err != nil {
		return err
	}
	if len(att.Exhausted) == 0 && att.Conflicts == 0 {
		fmt.Fprintln(a.out, "nothing needs attention")
		return nil
	}
	for _, e := range att.Exhausted {
		fmt.Fprintf(a.out, "  %s %s %s: %d attempts, last error: %s\n",
			e.Op, e.EntityType, e.EntityID, e.RetryCount, e.LastError)
	}
	if att.Conflicts > 0 {
		fmt.Fprintf(a.out, "  %d entities in conflict ('retry' keeps yours, 'discard' takes the server's)\n",
			att.Conflicts)
	}
	return nil
}

// entityType resolves the queued entity type for an id, for retry/discard.
func (a *App) entityType(ctx context.Context, entityID string) (models.EntityType, error) {
	entry, err := a.store.Queue.GetForEntity(ctx, entityID)
	if err != nil {
		return "", fmt.Errorf("no pending operation for %s: %w", entityID, err)
	}
	return entry.EntityType, nil
}

func (a *App) Retry(ctx context.Context, entityID string) error {
	t, err := a.entityType(ctx, entityID)
	if err != nil {
		return err
	}
	if err := a.session.Reconciler.ForceRetry(ctx, t, entityID); err != nil {
		return err
	}
	return a.Sync(ctx)
}

func (a *App) Discard(ctx context.Context, entityID string) error {
	t, err := a.entityType(ctx, entityID)
	if err != nil {
		return err
	}
	if err := a.session.Reconciler.Discard(ctx, t, entityID); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "discarded local change to", entityID)
	return nil
}
