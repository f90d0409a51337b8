package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/claude/fitfam/internal/backend"
	"github.com/claude/fitfam/internal/models"
	"github.com/claude/fitfam/internal/views"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- Tool definitions ---

var toolListWeekWorkouts = mcp.NewTool("list_week_workouts",
	mcp.WithDescription("List the workouts scheduled for the current week with their exercises, sets, difficulty and favorite flag."),
	mcp.WithBoolean("favorites_only", mcp.Description("Only return workouts marked as favorite.")),
)

var toolGetWorkout = mcp.NewTool("get_workout",
	mcp.WithDescription("Get one workout with every exercise and set, including which sets are completed."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout ID")),
)

var toolSetFavorite = mcp.NewTool("set_favorite",
	mcp.WithDescription("Mark or unmark a workout as favorite."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout ID")),
	mcp.WithBoolean("favorite", mcp.Required(), mcp.Description("true to mark as favorite, false to unmark")),
)

var toolCompleteSet = mcp.NewTool("complete_set",
	mcp.WithDescription("Record whether a set of an exercise has been completed."),
	mcp.WithString("workout_id", mcp.Required(), mcp.Description("Workout ID")),
	mcp.WithString("set_id", mcp.Required(), mcp.Description("Exercise set ID")),
	mcp.WithBoolean("completed", mcp.Description("Completion state. Defaults to true.")),
)

var toolGenerateWorkout = mcp.NewTool("generate_workout",
	mcp.WithDescription("Generate a new workout for the current week."),
	mcp.WithString("focus", mcp.Required(), mcp.Description("Training focus (e.g. 'upper body', 'legs', 'full body')")),
	mcp.WithString("difficulty", mcp.Required(), mcp.Description("Difficulty"), mcp.Enum("easy", "medium", "hard")),
	mcp.WithNumber("duration_min", mcp.Required(), mcp.Description("Duration in minutes")),
	mcp.WithString("equipment", mcp.Description("Comma-separated list of available equipment")),
)

var toolListPartners = mcp.NewTool("list_partners",
	mcp.WithDescription("List training partners and how many workouts are shared with each."),
)

var toolComparePartner = mcp.NewTool("compare_partner",
	mcp.WithDescription("Compare this week's completed workouts, sets and volume with a training partner."),
	mcp.WithString("partner_id", mcp.Required(), mcp.Description("Partner ID")),
)

// --- Tool handlers ---

func (h *handlers) listWeekWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workouts, err := h.ds.GetCurrentWeekWorkouts(ctx)
	if err != nil {
		h.log.Error("mcp list_week_workouts", "error", err)
		return failure("query failed", err), nil
	}

	if req.GetBool("favorites_only", false) {
		favs := make([]models.Workout, 0, len(workouts))
		for _, w := range workouts {
			if w.IsFavorite {
				favs = append(favs, w)
			}
		}
		workouts = favs
	}
	if workouts == nil {
		workouts = []models.Workout{}
	}

	result, err := mcp.NewToolResultJSON(workouts)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	w, err := h.ds.GetWorkout(ctx, id)
	if err != nil {
		h.log.Error("mcp get_workout", "workout", id, "error", err)
		return failure("query failed", err), nil
	}

	result, err := mcp.NewToolResultJSON(w)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) setFavorite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	favorite, err := req.RequireBool("favorite")
	if err != nil {
		return mcp.NewToolResultError("favorite parameter is required"), nil
	}

	if err := h.ds.ToggleFavorite(ctx, id, favorite); err != nil {
		h.log.Error("mcp set_favorite", "workout", id, "error", err)
		return failure(views.FavoriteFailedMessage, err), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{"id": id, "is_favorite": favorite})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) completeSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workoutID, err := req.RequireString("workout_id")
	if err != nil {
		return mcp.NewToolResultError("workout_id parameter is required"), nil
	}
	setID, err := req.RequireString("set_id")
	if err != nil {
		return mcp.NewToolResultError("set_id parameter is required"), nil
	}
	completed := req.GetBool("completed", true)

	if err := h.ds.SetExerciseSetCompleted(ctx, workoutID, setID, completed); err != nil {
		h.log.Error("mcp complete_set", "workout", workoutID, "set", setID, "error", err)
		return failure(views.SetFailedMessage, err), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{"workout_id": workoutID, "set_id": setID, "completed": completed})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) generateWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gen := models.GenerateRequest{
		Focus:       req.GetString("focus", ""),
		Difficulty:  models.Difficulty(req.GetString("difficulty", "")),
		DurationMin: int(req.GetFloat("duration_min", 0)),
	}
	for _, e := range strings.Split(req.GetString("equipment", ""), ",") {
		if e = strings.TrimSpace(e); e != "" {
			gen.Equipment = append(gen.Equipment, e)
		}
	}
	if err := views.ValidateGenerateRequest(&gen); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	w, err := h.ds.GenerateWorkout(ctx, gen)
	if err != nil {
		h.log.Error("mcp generate_workout", "error", err)
		return failure("generation failed", err), nil
	}

	result, err := mcp.NewToolResultJSON(w)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listPartners(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	partners, err := h.ds.ListPartners(ctx)
	if err != nil {
		h.log.Error("mcp list_partners", "error", err)
		return failure("query failed", err), nil
	}
	if partners == nil {
		partners = []models.Partner{}
	}

	result, err := mcp.NewToolResultJSON(partners)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) comparePartner(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	partnerID, err := req.RequireString("partner_id")
	if err != nil {
		return mcp.NewToolResultError("partner_id parameter is required"), nil
	}

	cmp, err := h.ds.ComparePartner(ctx, partnerID)
	if err != nil {
		h.log.Error("mcp compare_partner", "partner", partnerID, "error", err)
		return failure("query failed", err), nil
	}

	result, err := mcp.NewToolResultJSON(cmp)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// failure turns a data source error into a tool error the model can act on.
func failure(msg string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return mcp.NewToolResultError("not found")
	case errors.Is(err, backend.ErrUnauthorized):
		return mcp.NewToolResultError("not signed in or session expired")
	case errors.Is(err, backend.ErrUnavailable):
		return mcp.NewToolResultError("the FitFam server is unreachable")
	}
	return mcp.NewToolResultError(msg + ": " + err.Error())
}
