// Command doodle serves the doodle canvas page and the generative edit
// proxy (POST /edit, POST /edit2, MCP tool canvas_edit on /mcp).
package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/doodle/dbopen"
	"github.com/hazyhaar/doodle/editproxy"
	"github.com/hazyhaar/doodle/imagegen"
	"github.com/hazyhaar/doodle/internal/config"
	"github.com/hazyhaar/doodle/observability"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	// Logging.
	lvl, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.APIKey == "" {
		slog.Warn("GEMINI_API_KEY is empty, edit requests will fail until it is set")
	}

	// Optional audit trail.
	var (
		auditDB     *sql.DB
		auditLogger *observability.AuditLogger
	)
	if cfg.AuditDB != "" {
		opts := append(cfg.AuditDBOptions(), dbopen.WithSchema(observability.Schema))
		auditDB, err = dbopen.Open(cfg.AuditDB, opts...)
		if err != nil {
			slog.Error("open audit db", "path", cfg.AuditDB, "error", err)
			os.Exit(1)
		}
		defer auditDB.Close()
		auditLogger = observability.NewAuditLogger(auditDB, cfg.AuditBuffer)
		defer auditLogger.Close()
		slog.Info("audit trail enabled", "path", cfg.AuditDB)
	}

	// Model clients, built once and shared by every request.
	editModel := cfg.EditModel
	editModel.Logger = logger
	edit2Model := cfg.Edit2Model
	edit2Model.Logger = logger

	svcCfg := editproxy.Config{
		SaveDir:      cfg.SaveDir,
		SanitizeText: cfg.SanitizeText,
		Logger:       logger,
	}
	if auditLogger != nil {
		svcCfg.Audit = auditLogger
	}
	editCfg := svcCfg
	editCfg.Generator = imagegen.New(ctx, editModel)
	edit2Cfg := svcCfg
	edit2Cfg.Generator = imagegen.New(ctx, edit2Model)

	app := &app{
		edit:    editproxy.New(editCfg),
		edit2:   editproxy.New(edit2Cfg),
		audit:   auditLogger,
		maxBody: cfg.MaxBodyBytes(),
	}
	if cfg.MCP {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "doodle", Version: "1.0.0"}, nil)
		app.edit2.RegisterMCP(mcpSrv, editproxy.VariantEdit2)
		app.mcp = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil)
	}

	// HTTP server.
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           app.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Listen,
			"edit_model", editModel.Model, "edit2_model", edit2Model.Model, "save_dir", cfg.SaveDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}
