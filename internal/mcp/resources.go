package mcp

import (
	"context"
	"encoding/json"

	"github.com/claude/fitfam/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// WeekSummary is the payload of the week_summary resource.
type WeekSummary struct {
	Workouts      int      `json:"workouts"`
	CompletedSets int      `json:"completed_sets"`
	Favorites     []string `json:"favorites"`
	Partners      int      `json:"partners"`
}

func summarize(workouts []models.Workout, partners []models.Partner) WeekSummary {
	s := WeekSummary{Workouts: len(workouts), Favorites: []string{}, Partners: len(partners)}
	for _, w := range workouts {
		s.CompletedSets += w.CompletedSets()
		if w.IsFavorite {
			s.Favorites = append(s.Favorites, w.Title)
		}
	}
	return s
}

func (h *handlers) weekSummary(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	workouts, err := h.ds.GetCurrentWeekWorkouts(ctx)
	if err != nil {
		return nil, err
	}

	partners, err := h.ds.ListPartners(ctx)
	if err != nil {
		h.log.Warn("week_summary: partner query failed", "error", err)
	}

	return jsonContents(req.Params.URI, summarize(workouts, partners))
}

func (h *handlers) profile(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	u, err := h.ds.GetCurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, u)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
