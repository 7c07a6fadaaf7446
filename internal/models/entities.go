package models

import "time"

// Profile is a user's own account data.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Household groups users who share dishes and meal plans.
type Household struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Member links a user to a household.
type Member struct {
	ID          string    `json:"id"`
	HouseholdID string    `json:"household_id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Dish is a meal the household knows how to cook.
type Dish struct {
	ID           string     `json:"id"`
	HouseholdID  string     `json:"household_id"`
	Name         string     `json:"name"`
	Tags         []string   `json:"tags,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	LastCookedAt *time.Time `json:"last_cooked_at,omitempty"`
}

// MealSlot names a meal of the day within a plan.
type MealSlot string

const (
	MealBreakfast MealSlot = "breakfast"
	MealLunch     MealSlot = "lunch"
	MealDinner    MealSlot = "dinner"
)

// DayAssignment pins a dish to a meal slot on a calendar day.
type DayAssignment struct {
	Date   string   `json:"date"` // YYYY-MM-DD
	Meal   MealSlot `json:"meal"`
	DishID string   `json:"dish_id"`
}

// MealPlan is a household's plan for a week, plus its edit-lock fields.
// An empty LockedBy means the plan is unlocked.
type MealPlan struct {
	ID          string          `json:"id"`
	HouseholdID string          `json:"household_id"`
	WeekStart   string          `json:"week_start"` // YYYY-MM-DD, Monday
	Days        []DayAssignment `json:"days,omitempty"`
	LockedBy    string          `json:"locked_by,omitempty"`
	LockedAt    *time.Time      `json:"locked_at,omitempty"`
}

// Lock returns the plan's lock fields as a LockState.
func (p *MealPlan) Lock() LockState {
	return LockState{LockedBy: p.LockedBy, LockedAt: p.LockedAt}
}

// SetLock replaces the plan's lock fields.
func (p *MealPlan) SetLock(l LockState) {
	p.LockedBy = l.LockedBy
	p.LockedAt = l.LockedAt
}

// LockState is the wire/storage form of a meal-plan lock. A zero value means
// unlocked.
type LockState struct {
	LockedBy string     `json:"locked_by,omitempty"`
	LockedAt *time.Time `json:"locked_at,omitempty"`
}

// Held reports whether anyone currently holds the lock.
func (l LockState) Held() bool {
	return l.LockedBy != "" && l.LockedAt != nil
}

// StaleAt reports whether the lock is stale at the given instant, using the
// supplied timeout. The comparison is strict: age exactly equal to the
// timeout is stale, one tick under is not.
func (l LockState) StaleAt(now time.Time, timeout time.Duration) bool {
	if !l.Held() {
		return false
	}
	return now.Sub(*l.LockedAt) >= timeout
}
