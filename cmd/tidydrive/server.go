package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/tidydrive/tidydrive/internal/ai"
	"github.com/tidydrive/tidydrive/internal/api"
	"github.com/tidydrive/tidydrive/internal/cache"
	"github.com/tidydrive/tidydrive/internal/config"
	"github.com/tidydrive/tidydrive/internal/configstore"
	"github.com/tidydrive/tidydrive/internal/decision"
	"github.com/tidydrive/tidydrive/internal/drive"
	"github.com/tidydrive/tidydrive/internal/organizer"
	"github.com/tidydrive/tidydrive/internal/resolver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tidydrive server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running tidydrive server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tidydrive engine status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "tidydrive.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "tidydrive version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Write PID file. Check if a server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("tidydrive is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("tidydrive is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the configuration document store.
	var store configstore.Store
	switch cfg.ConfigStore.Backend {
	case "http":
		store = configstore.NewHTTPStore(cfg.ConfigStore.BaseURL, cfg.ConfigStore.Token)
		slog.Info("using remote config store", "base_url", cfg.ConfigStore.BaseURL)
	default:
		sqlStore, err := configstore.OpenSQLite(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening config store: %w", err)
		}
		defer func() {
			if err := sqlStore.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: closing config store: %v\n", err)
			}
		}()
		store = sqlStore
	}

	// Build the decision stack: drive client, AI resolver, orchestrator.
	driveClient := drive.NewClient(cfg.Drive.BaseURL, cfg.Drive.Token)
	aiClient := ai.NewClientWithBaseURL(cfg.AI.APIKey, cfg.AI.BaseURL)
	res := resolver.New(aiClient, resolver.Options{
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		Snippet:     organizer.DriveSnippet(driveClient, slog.Default()),
	})

	engine := organizer.New(organizer.Options{
		Store:   store,
		Drive:   driveClient,
		Decider: decision.New(res),
		Cache:   cache.New("local"),
		Logger:  slog.Default(),
	})

	// Build HTTP handler and server.
	handler := api.NewHandler(engine, cfg.Server.Token)
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(engine)
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "tidydrive listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("tidydrive is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop tidydrive (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to tidydrive (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &apiClient{
		baseURL:    serverURL,
		token:      cfg.Server.Token,
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}

	ctx := context.Background()
	running := false
	if resp, err := client.get(ctx, "/health"); err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Config store", "%s", cfg.ConfigStore.Backend)
	printStatus("AI model", "%s", cfg.AI.Model)

	// Show document counts if the server is running.
	if running {
		resp, err := client.get(ctx, "/status")
		if err == nil {
			var stats struct {
				Categories    int  `json:"categories"`
				Rules         int  `json:"rules"`
				Assignments   int  `json:"assignments"`
				PendingReview int  `json:"pendingReview"`
				Onboarded     bool `json:"onboarded"`
			}
			if json.NewDecoder(resp.Body).Decode(&stats) == nil {
				printStatus("Categories", "%d", stats.Categories)
				printStatus("Rules", "%d", stats.Rules)
				printStatus("Assignments", "%d", stats.Assignments)
				printStatus("Pending review", "%d", stats.PendingReview)
				printStatus("Onboarded", "%t", stats.Onboarded)
			}
			resp.Body.Close()
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
