package views

import (
	"context"
	"errors"
	"strings"

	"github.com/claude/fitfam/internal/backend"
	"github.com/claude/fitfam/internal/models"
)

// Dashboard greets the user and summarises the current week.
type Dashboard struct {
	lifetime
	deps Deps

	User          *models.User
	Loading       bool
	Err           string
	WeekWorkouts  int
	CompletedSets int
	Favorites     []models.Workout
	Partners      int
}

func NewDashboard(d Deps) *Dashboard { return &Dashboard{deps: d} }

func (v *Dashboard) Mount(ctx context.Context) {
	ctx = v.begin(ctx)
	v.commit(ctx, func() {
		v.Loading = true
		if v.deps.Session != nil {
			v.User = v.deps.Session.User()
		}
	})

	tok := v.deps.token()
	workouts, werr := v.deps.Backend.GetCurrentWeekWorkouts(ctx, tok)
	var (
		partners []models.Partner
		perr     error
	)
	if werr == nil {
		partners, perr = v.deps.Backend.ListPartners(ctx, tok)
	}

	v.commit(ctx, func() {
		v.Loading = false
		if err := errors.Join(werr, perr); err != nil {
			v.deps.rejected(err)
			v.deps.logger().Error("loading dashboard", "error", err)
			v.Err = describe(err, "Failed to load dashboard")
			return
		}
		v.WeekWorkouts = len(workouts)
		v.CompletedSets = 0
		v.Favorites = v.Favorites[:0]
		for _, w := range workouts {
			v.CompletedSets += w.CompletedSets()
			if w.IsFavorite {
				v.Favorites = append(v.Favorites, w)
			}
		}
		v.Partners = len(partners)
	})
}

// WorkoutDetails shows one workout with per-set completion toggles.
type WorkoutDetails struct {
	lifetime
	deps Deps

	ID       string
	Workout  *models.Workout
	Loading  bool
	Err      string
	NotFound bool
}

// Messages shown by the workout details view.
const (
	SetFailedMessage         = "Failed to update set"
	WorkoutNotFoundMessage   = "Workout not found"
	WorkoutLoadFailedMessage = "Failed to load workout"
)

func NewWorkoutDetails(d Deps, id string) *WorkoutDetails {
	return &WorkoutDetails{deps: d, ID: id}
}

func (v *WorkoutDetails) Mount(ctx context.Context) {
	ctx = v.begin(ctx)
	v.commit(ctx, func() { v.Loading = true })

	w, err := v.deps.Backend.GetWorkout(ctx, v.deps.token(), v.ID)

	v.commit(ctx, func() {
		v.Loading = false
		switch {
		case errors.Is(err, backend.ErrNotFound):
			v.NotFound = true
			v.Err = WorkoutNotFoundMessage
		case err != nil:
			v.deps.rejected(err)
			v.deps.logger().Error("loading workout", "workout", v.ID, "error", err)
			v.Err = describe(err, WorkoutLoadFailedMessage)
		default:
			v.Workout = w
		}
	})
}

// ToggleSet flips one set's completion remotely and applies it locally only
// after the backend accepted it.
func (v *WorkoutDetails) ToggleSet(ctx context.Context, exerciseID, setID string) bool {
	if v.Workout == nil {
		return false
	}
	set, ok := v.Workout.FindSet(exerciseID, setID)
	if !ok {
		v.deps.alert(SetFailedMessage)
		return false
	}
	want := !set.Completed
	if err := v.deps.Backend.SetExerciseSetCompleted(ctx, v.deps.token(), v.ID, setID, want); err != nil {
		v.deps.rejected(err)
		v.deps.logger().Error("failed to update set", "workout", v.ID, "set", setID, "error", err)
		v.deps.alert(SetFailedMessage)
		return false
	}
	set.Completed = want
	return true
}

// Partners lists the user's training partners.
type Partners struct {
	lifetime
	deps Deps

	Loading  bool
	Err      string
	Partners []models.Partner
}

func NewPartners(d Deps) *Partners { return &Partners{deps: d} }

func (v *Partners) Mount(ctx context.Context) {
	ctx = v.begin(ctx)
	v.commit(ctx, func() { v.Loading = true })

	partners, err := v.deps.Backend.ListPartners(ctx, v.deps.token())

	v.commit(ctx, func() {
		v.Loading = false
		if err != nil {
			v.deps.rejected(err)
			v.deps.logger().Error("loading partners", "error", err)
			v.Err = describe(err, "Failed to load partners")
			return
		}
		v.Partners = partners
	})
}

// PartnerComparison puts the user's week next to a partner's.
type PartnerComparison struct {
	lifetime
	deps Deps

	PartnerID  string
	Loading    bool
	Err        string
	Comparison *models.Comparison
}

func NewPartnerComparison(d Deps, partnerID string) *PartnerComparison {
	return &PartnerComparison{deps: d, PartnerID: partnerID}
}

func (v *PartnerComparison) Mount(ctx context.Context) {
	ctx = v.begin(ctx)
	v.commit(ctx, func() { v.Loading = true })

	cmp, err := v.deps.Backend.ComparePartner(ctx, v.deps.token(), v.PartnerID)

	v.commit(ctx, func() {
		v.Loading = false
		if err != nil {
			v.deps.rejected(err)
			v.deps.logger().Error("loading comparison", "partner", v.PartnerID, "error", err)
			v.Err = describe(err, "Failed to load comparison")
			return
		}
		v.Comparison = cmp
	})
}

// Profile shows and edits the signed-in user's profile.
type Profile struct {
	deps Deps

	User  *models.User
	Saved bool
	Err   string
}

func NewProfile(d Deps) *Profile { return &Profile{deps: d} }

func (v *Profile) Mount(context.Context) {
	if v.deps.Session != nil {
		v.User = v.deps.Session.User()
	}
}

// Save sends the edits and, on success, replaces the session's user.
func (v *Profile) Save(ctx context.Context, upd models.ProfileUpdate) error {
	upd.DisplayName = strings.TrimSpace(upd.DisplayName)
	upd.Username = strings.TrimSpace(upd.Username)
	upd.FitnessGoal = strings.TrimSpace(upd.FitnessGoal)
	if upd.DisplayName == "" && upd.Username == "" {
		err := inputError("Enter a display name or a username.")
		v.Err = err.Error()
		return err
	}

	u, err := v.deps.Backend.UpdateProfile(ctx, v.deps.token(), upd)
	if err != nil {
		v.deps.rejected(err)
		v.deps.logger().Error("updating profile", "error", err)
		v.Err = describe(err, "Failed to update profile")
		return err
	}
	if v.deps.Session != nil {
		v.deps.Session.UpdateUser(u)
	}
	v.User = u
	v.Saved = true
	v.Err = ""
	return nil
}
