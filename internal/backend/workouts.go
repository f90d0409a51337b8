package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/claude/fitfam/internal/models"
	"golang.org/x/oauth2"
)

// GetCurrentWeekWorkouts lists the workouts planned for the current week.
func (c *HTTPClient) GetCurrentWeekWorkouts(ctx context.Context, tok *oauth2.Token) ([]models.Workout, error) {
	var workouts []models.Workout
	if err := c.do(ctx, tok, http.MethodGet, "/api/v1/workouts/week", nil, &workouts); err != nil {
		return nil, err
	}
	return workouts, nil
}

// GetWorkout fetches one workout with its exercises and sets.
func (c *HTTPClient) GetWorkout(ctx context.Context, tok *oauth2.Token, id string) (*models.Workout, error) {
	var w models.Workout
	if err := c.do(ctx, tok, http.MethodGet, "/api/v1/workouts/"+url.PathEscape(id), nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// DeleteWorkout removes a workout.
func (c *HTTPClient) DeleteWorkout(ctx context.Context, tok *oauth2.Token, id string) error {
	return c.do(ctx, tok, http.MethodDelete, "/api/v1/workouts/"+url.PathEscape(id), nil, nil)
}

// ToggleFavorite sets the favorite flag of a workout to favorite.
func (c *HTTPClient) ToggleFavorite(ctx context.Context, tok *oauth2.Token, id string, favorite bool) error {
	body := map[string]bool{"is_favorite": favorite}
	return c.do(ctx, tok, http.MethodPut, "/api/v1/workouts/"+url.PathEscape(id)+"/favorite", body, nil)
}

// GenerateWorkout asks the backend to build and store a new workout.
func (c *HTTPClient) GenerateWorkout(ctx context.Context, tok *oauth2.Token, req models.GenerateRequest) (*models.Workout, error) {
	var w models.Workout
	if err := c.do(ctx, tok, http.MethodPost, "/api/v1/workouts/generate", req, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// SetExerciseSetCompleted records whether a tracked set has been done.
func (c *HTTPClient) SetExerciseSetCompleted(ctx context.Context, tok *oauth2.Token, workoutID, setID string, completed bool) error {
	path := "/api/v1/workouts/" + url.PathEscape(workoutID) + "/sets/" + url.PathEscape(setID)
	return c.do(ctx, tok, http.MethodPut, path, map[string]bool{"completed": completed}, nil)
}

// ListPartners returns the user's training partners.
func (c *HTTPClient) ListPartners(ctx context.Context, tok *oauth2.Token) ([]models.Partner, error) {
	var partners []models.Partner
	if err := c.do(ctx, tok, http.MethodGet, "/api/v1/partners", nil, &partners); err != nil {
		return nil, err
	}
	return partners, nil
}

// ComparePartner returns this week's stats for the user and a partner.
func (c *HTTPClient) ComparePartner(ctx context.Context, tok *oauth2.Token, partnerID string) (*models.Comparison, error) {
	var cmp models.Comparison
	path := "/api/v1/partners/" + url.PathEscape(partnerID) + "/comparison"
	if err := c.do(ctx, tok, http.MethodGet, path, nil, &cmp); err != nil {
		return nil, err
	}
	return &cmp, nil
}

// UpdateProfile saves profile edits and returns the stored user.
func (c *HTTPClient) UpdateProfile(ctx context.Context, tok *oauth2.Token, upd models.ProfileUpdate) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, tok, http.MethodPatch, "/api/v1/profile", upd, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
