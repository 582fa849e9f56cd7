package main

import (
	"context"
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

	"github.com/kalambet/wordsync/internal/ankiconnect"
	"github.com/kalambet/wordsync/internal/api"
	"github.com/kalambet/wordsync/internal/autosync"
	"github.com/kalambet/wordsync/internal/bootstrap"
	"github.com/kalambet/wordsync/internal/config"
	"github.com/kalambet/wordsync/internal/notebook"
	"github.com/kalambet/wordsync/internal/schema"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the host capability API and MCP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running wordsync server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server, AnkiConnect and notebook status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", true, "serve MCP over stdio alongside HTTP")
}

// pidFile records the PID of the foreground `serve` process for `stop`.
type pidFile string

func pidFilePath(dataDir string) pidFile {
	return pidFile(filepath.Join(dataDir, "wordsync.pid"))
}

func (p pidFile) write() error {
	if err := os.MkdirAll(filepath.Dir(string(p)), 0o755); err != nil {
		return err
	}
	return os.WriteFile(string(p), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func (p pidFile) read() (int, error) {
	raw, err := os.ReadFile(string(p))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(raw)))
}

func (p pidFile) remove() {
	_ = os.Remove(string(p))
}

// alreadyRunning reports an error when something answers /health on port.
func alreadyRunning(port int, pids pidFile) error {
	hc := &http.Client{Timeout: 2 * time.Second}
	resp, err := hc.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	if err != nil {
		return nil
	}
	resp.Body.Close()
	if pid, err := pids.read(); err == nil {
		return fmt.Errorf("wordsync is already running (PID %d)", pid)
	}
	return fmt.Errorf("port %d is already serving wordsync", port)
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "wordsync version %s\n", version)

	a, err := loadApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing notebook: %v\n", err)
		}
	}()
	cfg := a.cfg

	apiToken, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	pids := pidFilePath(cfg.Storage.DataDir)
	if err := alreadyRunning(cfg.Server.Port, pids); err != nil {
		return err
	}
	if err := pids.write(); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer pids.remove()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Anki is often started after wordsync, so a failed bootstrap only warns.
	if err := a.boot.Run(ctx, cfg.Anki.Deck, cfg.Anki.NoteType, cfg.Sync.Bootstrap); err != nil {
		reportPrecondition(err)
	}

	deps := api.Deps{
		Syncer:   a.syncer,
		Words:    a.store,
		Enricher: a.enricher,
		Fetcher:  a.fetcher,
		Token:    apiToken,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
	}

	if cfg.Sync.Auto {
		interval, _ := time.ParseDuration(cfg.Sync.Interval)
		worker := autosync.NewWorker(a.store, a.syncer, interval)
		if err := worker.Start(ctx); err != nil {
			return err
		}
		go worker.Run(ctx)
		slog.Info("auto sync enabled", "interval", interval)
	}

	if withMCP {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(deps, version))
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "wordsync listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pids := pidFilePath(cfg.Storage.DataDir)
	pid, err := pids.read()
	if err != nil {
		return fmt.Errorf("wordsync is not running (no PID file): %w", err)
	}

	proc, err := os.FindProcess(pid)
	if err == nil {
		err = proc.Signal(syscall.SIGTERM)
	}
	if err != nil {
		// The process is gone; the PID file is stale.
		pids.remove()
		return fmt.Errorf("stopping wordsync (PID %d): %w", pid, err)
	}
	printSuccess("Sent stop signal to wordsync (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	httpClient := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := httpClient.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	anki := ankiconnect.New(cfg.Anki.Host, cfg.Anki.Port, cfg.Anki.Key)
	boot := bootstrap.New(anki, schema.NewSession(cfg.Anki.NoteType, anki), nil)
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = boot.Check(checkCtx, cfg.Anki.Deck, cfg.Anki.NoteType)
	var pe *bootstrap.PreconditionError
	switch {
	case err == nil:
		printStatus("AnkiConnect", "ready at %s:%d", cfg.Anki.Host, cfg.Anki.Port)
	case errors.As(err, &pe) && pe.Kind == bootstrap.ServerDown:
		printStatus("AnkiConnect", "not reachable at %s:%d", cfg.Anki.Host, cfg.Anki.Port)
	default:
		printStatus("AnkiConnect", "%v", err)
	}

	printStatus("Deck", "%s", cfg.Anki.Deck)
	printStatus("Note type", "%s", cfg.Anki.NoteType)

	if running {
		if c, err := newAPIClient(); err == nil {
			showNotebookStatus(ctx, c)
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func showNotebookStatus(ctx context.Context, c *apiClient) {
	if resp, err := c.get(ctx, "/words?limit=100"); err == nil {
		var words []notebook.Word
		if decodeJSON(resp, &words) == nil {
			printStatus("Words", "%s", countLabel(len(words), 100))
		}
	}
	if resp, err := c.get(ctx, "/sync/runs?limit=1"); err == nil {
		var runs []notebook.SyncRun
		if decodeJSON(resp, &runs) == nil && len(runs) > 0 {
			r := runs[0]
			printStatus("Last sync", "%s (%d created, %d failed)", r.FinishedAt.Local().Format(time.DateTime), r.Created, r.Failed)
		}
	}
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}

// reportPrecondition prints err with a remedy when it is a failed precondition.
func reportPrecondition(err error) {
	printError("%v", err)
	var pe *bootstrap.PreconditionError
	if errors.As(err, &pe) {
		if hint := pe.Hint(); hint != "" {
			printWarning("%s", hint)
		}
	}
}
