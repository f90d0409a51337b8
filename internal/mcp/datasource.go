package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/claude/fitfam/internal/backend"
	"github.com/claude/fitfam/internal/models"
	"golang.org/x/oauth2"
)

// DataSource abstracts the fitness data the MCP tools read and change. An
// Account bound to the remote API satisfies it.
type DataSource interface {
	GetCurrentUser(ctx context.Context) (*models.User, error)
	GetCurrentWeekWorkouts(ctx context.Context) ([]models.Workout, error)
	GetWorkout(ctx context.Context, id string) (*models.Workout, error)
	ToggleFavorite(ctx context.Context, id string, favorite bool) error
	GenerateWorkout(ctx context.Context, req models.GenerateRequest) (*models.Workout, error)
	SetExerciseSetCompleted(ctx context.Context, workoutID, setID string, completed bool) error
	ListPartners(ctx context.Context) ([]models.Partner, error)
	ComparePartner(ctx context.Context, partnerID string) (*models.Comparison, error)
}

// API is the part of the remote client an Account needs.
type API interface {
	SignIn(ctx context.Context, email, password string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	GetCurrentUser(ctx context.Context, tok *oauth2.Token) (*models.User, error)
	GetCurrentWeekWorkouts(ctx context.Context, tok *oauth2.Token) ([]models.Workout, error)
	GetWorkout(ctx context.Context, tok *oauth2.Token, id string) (*models.Workout, error)
	ToggleFavorite(ctx context.Context, tok *oauth2.Token, id string, favorite bool) error
	GenerateWorkout(ctx context.Context, tok *oauth2.Token, req models.GenerateRequest) (*models.Workout, error)
	SetExerciseSetCompleted(ctx context.Context, tok *oauth2.Token, workoutID, setID string, completed bool) error
	ListPartners(ctx context.Context, tok *oauth2.Token) ([]models.Partner, error)
	ComparePartner(ctx context.Context, tok *oauth2.Token, partnerID string) (*models.Comparison, error)
}

// Compile-time check: the remote client satisfies API.
var _ API = (*backend.HTTPClient)(nil)

// Account is a signed-in user's view of the remote API. It is used by the
// stdio MCP binary, which runs outside a browser session. A call rejected as
// unauthorized is retried once after refreshing the token.
type Account struct {
	api API

	mu  sync.Mutex
	tok *oauth2.Token
}

// Compile-time check: Account satisfies DataSource.
var _ DataSource = (*Account)(nil)

// SignIn authenticates with the password grant and returns a bound Account.
func SignIn(ctx context.Context, api API, email, password string) (*Account, error) {
	tok, err := api.SignIn(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}
	return &Account{api: api, tok: tok}, nil
}

func (a *Account) token() *oauth2.Token {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tok
}

// call runs fn with the current token, refreshing it once on 401.
func (a *Account) call(ctx context.Context, fn func(tok *oauth2.Token) error) error {
	tok := a.token()
	err := fn(tok)
	if !errors.Is(err, backend.ErrUnauthorized) || tok == nil || tok.RefreshToken == "" {
		return err
	}
	fresh, rerr := a.api.Refresh(ctx, tok.RefreshToken)
	if rerr != nil {
		return errors.Join(err, rerr)
	}
	a.mu.Lock()
	a.tok = fresh
	a.mu.Unlock()
	return fn(fresh)
}

func (a *Account) GetCurrentUser(ctx context.Context) (*models.User, error) {
	var u *models.User
	err := a.call(ctx, func(tok *oauth2.Token) (err error) {
		u, err = a.api.GetCurrentUser(ctx, tok)
		return err
	})
	return u, err
}

func (a *Account) GetCurrentWeekWorkouts(ctx context.Context) ([]models.Workout, error) {
	var ws []models.Workout
	err := a.call(ctx, func(tok *oauth2.Token) (err error) {
		ws, err = a.api.GetCurrentWeekWorkouts(ctx, tok)
		return err
	})
	return ws, err
}

func (a *Account) GetWorkout(ctx context.Context, id string) (*models.Workout, error) {
	var w *models.Workout
	err := a.call(ctx, func(tok *oauth2.Token) (err error) {
		w, err = a.api.GetWorkout(ctx, tok, id)
		return err
	})
	return w, err
}

func (a *Account) ToggleFavorite(ctx context.Context, id string, favorite bool) error {
	return a.call(ctx, func(tok *oauth2.Token) error {
		return a.api.ToggleFavorite(ctx, tok, id, favorite)
	})
}

func (a *Account) GenerateWorkout(ctx context.Context, req models.GenerateRequest) (*models.Workout, error) {
	var w *models.Workout
	err := a.call(ctx, func(tok *oauth2.Token) (err error) {
		w, err = a.api.GenerateWorkout(ctx, tok, req)
		return err
	})
	return w, err
}

func (a *Account) SetExerciseSetCompleted(ctx context.Context, workoutID, setID string, completed bool) error {
	return a.call(ctx, func(tok *oauth2.Token) error {
		return a.api.SetExerciseSetCompleted(ctx, tok, workoutID, setID, completed)
	})
}

func (a *Account) ListPartners(ctx context.Context) ([]models.Partner, error) {
	var ps []models.Partner
	err := a.call(ctx, func(tok *oauth2.Token) (err error) {
		ps, err = a.api.ListPartners(ctx, tok)
		return err
	})
	return ps, err
}

func (a *Account) ComparePartner(ctx context.Context, partnerID string) (*models.Comparison, error) {
	var c *models.Comparison
	err := a.call(ctx, func(tok *oauth2.Token) (err error) {
		c, err = a.api.ComparePartner(ctx, tok, partnerID)
		return err
	})
	return c, err
}
