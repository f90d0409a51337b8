package views

import (
	"context"
	"strings"
	"sync"

	"github.com/claude/fitfam/internal/models"
)

// Messages shown by the workout controls.
const (
	ConfirmDeleteMessage  = "Are you sure you want to delete this workout?"
	DeleteFailedMessage   = "Failed to delete workout"
	FavoriteFailedMessage = "Failed to update favorite status"
)

// WorkoutsPage is the /workouts view: the current week's list plus the
// generator overlay. Refresh remounts the list in place for callers that
// keep the page alive. Over HTTP each request builds a fresh page, so the
// handlers point Card.OnDelete and Generator.OnClose at a redirect to
// /workouts instead, and that load is the refetch.
type WorkoutsPage struct {
	deps Deps

	// RefreshKey counts list remounts caused by child actions.
	RefreshKey int
	List       *List
	Generator  *Generator
}

func NewWorkoutsPage(d Deps) *WorkoutsPage {
	p := &WorkoutsPage{deps: d}
	p.List = p.newList()
	p.Generator = &Generator{deps: d, OnClose: p.Refresh}
	return p
}

func (p *WorkoutsPage) newList() *List {
	return &List{deps: p.deps, OnChange: p.Refresh}
}

func (p *WorkoutsPage) Mount(ctx context.Context) { p.List.Mount(ctx) }

func (p *WorkoutsPage) Unmount() { p.List.Unmount() }

// Refresh throws the list away and mounts a new one, refetching everything.
func (p *WorkoutsPage) Refresh(ctx context.Context) {
	p.RefreshKey++
	p.List.Unmount()
	p.List = p.newList()
	p.List.Mount(ctx)
}

// List shows one Card per workout of the current week.
type List struct {
	lifetime
	deps Deps

	Loading bool
	Err     string
	Cards   []*Card

	// OnChange is called after a card changed the collection.
	OnChange func(ctx context.Context)
}

// Mount fetches the current week's workouts once.
func (l *List) Mount(ctx context.Context) {
	ctx = l.begin(ctx)
	l.commit(ctx, func() {
		l.Loading = true
		l.Err = ""
	})

	workouts, err := l.deps.Backend.GetCurrentWeekWorkouts(ctx, l.deps.token())

	l.commit(ctx, func() {
		l.Loading = false
		if err != nil {
			l.deps.rejected(err)
			l.deps.logger().Error("loading workouts", "error", err)
			l.Err = describe(err, "Failed to load workouts")
			return
		}
		l.Cards = make([]*Card, 0, len(workouts))
		for _, w := range workouts {
			c := NewCard(l.deps, w)
			c.OnDelete = l.OnChange
			l.Cards = append(l.Cards, c)
		}
	})
}

// Card is one workout tile with favorite and delete controls.
type Card struct {
	deps Deps

	mu       sync.Mutex
	Workout  models.Workout
	Favorite bool
	Deleting bool

	// OnDelete is called after a successful delete.
	OnDelete func(ctx context.Context)
}

func NewCard(d Deps, w models.Workout) *Card {
	return &Card{deps: d, Workout: w, Favorite: w.IsFavorite}
}

// IsFavorite returns the displayed favorite state.
func (c *Card) IsFavorite() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Favorite
}

// IsDeleting reports whether a delete is in flight.
func (c *Card) IsDeleting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Deleting
}

// Delete asks for confirmation, then deletes the workout remotely. It
// reports whether the workout was deleted.
func (c *Card) Delete(ctx context.Context) bool {
	if c.IsDeleting() {
		return false
	}
	if !c.deps.confirm(ConfirmDeleteMessage) {
		return false
	}

	c.mu.Lock()
	if c.Deleting {
		c.mu.Unlock()
		return false
	}
	c.Deleting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.Deleting = false
		c.mu.Unlock()
	}()

	// Another card for the same workout in this session may be deleting it.
	release, ok := c.deps.claim("delete/" + c.Workout.ID)
	if !ok {
		return false
	}
	defer release()

	if err := c.deps.Backend.DeleteWorkout(ctx, c.deps.token(), c.Workout.ID); err != nil {
		c.deps.rejected(err)
		c.deps.logger().Error("failed to delete workout", "workout", c.Workout.ID, "error", err)
		c.deps.alert(DeleteFailedMessage)
		return false
	}
	if c.OnDelete != nil {
		c.OnDelete(ctx)
	}
	return true
}

// ToggleFavorite flips the favorite flag remotely and, only once that
// succeeds, on the card.
func (c *Card) ToggleFavorite(ctx context.Context) bool {
	want := !c.IsFavorite()
	if err := c.deps.Backend.ToggleFavorite(ctx, c.deps.token(), c.Workout.ID, want); err != nil {
		c.deps.rejected(err)
		c.deps.logger().Error("failed to toggle favorite", "workout", c.Workout.ID, "error", err)
		c.deps.alert(FavoriteFailedMessage)
		return false
	}
	c.mu.Lock()
	c.Favorite = want
	c.mu.Unlock()
	return true
}

// Generator is the overlay that asks the backend for a new workout.
type Generator struct {
	deps Deps

	IsOpen     bool
	Generating bool
	Err        string
	Result     *models.Workout

	// OnClose runs every time the overlay closes.
	OnClose func(ctx context.Context)
}

// NewGenerator returns a closed generator; onClose may be nil.
func NewGenerator(d Deps, onClose func(ctx context.Context)) *Generator {
	return &Generator{deps: d, OnClose: onClose}
}

func (g *Generator) Open() {
	g.IsOpen = true
	g.Err = ""
	g.Result = nil
}

// ValidateGenerateRequest normalizes req and checks it can be sent.
func ValidateGenerateRequest(req *models.GenerateRequest) error {
	req.Focus = strings.TrimSpace(req.Focus)
	switch {
	case req.Focus == "":
		return inputError("Please choose a focus.")
	case !req.Difficulty.Valid():
		return inputError("Please choose a difficulty.")
	case req.DurationMin <= 0:
		return inputError("Duration must be a positive number of minutes.")
	}
	return nil
}

// Generate requests a new workout. A failure is kept in Err for the overlay.
func (g *Generator) Generate(ctx context.Context, req models.GenerateRequest) (*models.Workout, error) {
	if err := ValidateGenerateRequest(&req); err != nil {
		g.Err = err.Error()
		return nil, err
	}

	g.Generating = true
	defer func() { g.Generating = false }()

	w, err := g.deps.Backend.GenerateWorkout(ctx, g.deps.token(), req)
	if err != nil {
		g.deps.rejected(err)
		g.deps.logger().Error("generating workout", "error", err)
		g.Err = describe(err, "Failed to generate workout")
		return nil, err
	}
	g.Err = ""
	g.Result = w
	return w, nil
}

// Close hides the overlay and always notifies OnClose so the list refetches.
func (g *Generator) Close(ctx context.Context) {
	g.IsOpen = false
	if g.OnClose != nil {
		g.OnClose(ctx)
	}
}
