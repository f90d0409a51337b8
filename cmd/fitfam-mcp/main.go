package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/claude/fitfam/internal/backend"
	fitmcp "github.com/claude/fitfam/internal/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	baseURL := flag.String("backend", os.Getenv("FITFAM_BACKEND_URL"), "backend API base URL")
	apiKey := flag.String("api-key", os.Getenv("FITFAM_BACKEND_API_KEY"), "backend API key")
	email := flag.String("email", os.Getenv("FITFAM_EMAIL"), "account email")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("fitfam-mcp", Version)
		return
	}

	// stdout carries the MCP protocol, so logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	password := os.Getenv("FITFAM_PASSWORD")
	if *baseURL == "" || *apiKey == "" || *email == "" || password == "" {
		fmt.Fprintf(os.Stderr, "Usage: FITFAM_PASSWORD=... fitfam-mcp -backend <URL> -api-key <key> -email <email>\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	api := backend.NewHTTPClient(backend.Options{
		BaseURL:  *baseURL,
		APIKey:   *apiKey,
		ClientID: "fitfam-mcp",
		Timeout:  30 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	acct, err := fitmcp.SignIn(ctx, api, *email, password)
	cancel()
	if err != nil {
		log.Error("sign in failed", "email", *email, "error", err)
		os.Exit(1)
	}
	log.Info("signed in", "email", *email)

	s := fitmcp.New(acct, Version, log)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
