package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("FitFam", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("FitFam training server. Read this week's workouts, track completed sets, mark favorites, generate new workouts, and compare progress with training partners. All data belongs to the signed-in account."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListWeekWorkouts, Handler: h.listWeekWorkouts},
		server.ServerTool{Tool: toolGetWorkout, Handler: h.getWorkout},
		server.ServerTool{Tool: toolSetFavorite, Handler: h.setFavorite},
		server.ServerTool{Tool: toolCompleteSet, Handler: h.completeSet},
		server.ServerTool{Tool: toolGenerateWorkout, Handler: h.generateWorkout},
		server.ServerTool{Tool: toolListPartners, Handler: h.listPartners},
		server.ServerTool{Tool: toolComparePartner, Handler: h.comparePartner},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resWeekSummary, Handler: h.weekSummary},
		server.ServerResource{Resource: resProfile, Handler: h.profile},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resWeekSummary = mcp.NewResource(
	"fitfam://week_summary",
	"Week Summary",
	mcp.WithResourceDescription("This week's workout count, completed sets, favorites and partner count"),
	mcp.WithMIMEType("application/json"),
)

var resProfile = mcp.NewResource(
	"fitfam://profile",
	"Profile",
	mcp.WithResourceDescription("The signed-in user's profile"),
	mcp.WithMIMEType("application/json"),
)
