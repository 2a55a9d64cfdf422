// Command timetables serves the Mykonos bus timetables as JSON.
//
// Usage:
//
//	timetables                         # HTTP server, configured from env
//	timetables -config timetables.yaml # same, with a YAML file under env
//	timetables -dump                   # run one pass, print JSON, exit
//	timetables -panels                 # render once, print panels as Markdown
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/mykonosbus/api"
	"github.com/hazyhaar/mykonosbus/catalog"
	"github.com/hazyhaar/mykonosbus/config"
	"github.com/hazyhaar/mykonosbus/observability"
	"github.com/hazyhaar/mykonosbus/render"
	"github.com/hazyhaar/mykonosbus/timetable"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file (env CONFIG_FILE)")
	dump := flag.Bool("dump", false, "run one extraction pass, print the schedule set and exit")
	panels := flag.Bool("panels", false, "render the page once, print every located panel as Markdown and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level, _ := observability.ParseLevel(cfg.LogLevel)
	// One-shot modes keep stdout for their output.
	out := os.Stdout
	if *dump || *panels {
		out = os.Stderr
	}
	logger := observability.NewLogger(out, level, "timetables")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, *dump, *panels); err != nil {
		logger.Error("timetables: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, dump, panels bool) error {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	provider, closeProvider := buildProvider(cfg, logger)
	defer closeProvider()

	switch {
	case panels:
		return runPanels(ctx, cat, provider, logger)
	case dump:
		return runDump(ctx, cat, provider, cfg, logger)
	}
	return runServer(ctx, cat, provider, cfg, logger)
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogFile != "" {
		cat, err := catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		return cat, nil
	}
	return catalog.DefaultWithImageBase(cfg.ImageBaseURL), nil
}

// buildProvider assembles the rendered-HTML provider chain for the
// configured mode. The returned func releases the browser, if any.
func buildProvider(cfg *config.Config, logger *slog.Logger) (render.Provider, func()) {
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = -1
	}
	guard := func(name string, p render.Provider) render.Provider {
		return render.NewGuard(p, render.GuardConfig{
			Name:             name,
			MaxRetries:       retries,
			BreakerThreshold: cfg.BreakerThreshold,
			BreakerReset:     cfg.BreakerReset,
			Logger:           logger,
		})
	}
	plain := func(strict bool) render.Provider {
		return render.NewHTTP(cfg.TimetableURL,
			render.WithUserAgent(cfg.UserAgent),
			render.WithLogger(logger),
			render.WithStrict(strict))
	}

	switch cfg.RenderMode {
	case config.ModeFile:
		return render.File{Path: cfg.HTMLFile}, func() {}
	case config.ModeHTTP:
		return guard("http", plain(false)), func() {}
	}

	mgr := render.NewManager(render.ManagerConfig{RemoteURL: cfg.ChromeURL, Logger: logger})
	browser := render.NewBrowser(mgr, render.BrowserConfig{
		URL:         cfg.TimetableURL,
		UserAgent:   cfg.UserAgent,
		NavTimeout:  cfg.NavTimeout,
		SettleDelay: cfg.SettleDelay,
		Logger:      logger,
	})
	closeMgr := func() {
		if err := mgr.Close(); err != nil {
			logger.Warn("timetables: browser close", "error", err)
		}
	}
	if cfg.RenderMode == config.ModeAuto {
		return guard("auto", render.Fallback(plain(true), browser, logger)), closeMgr
	}
	return guard("browser", browser), closeMgr
}

func newService(cat *catalog.Catalog, provider render.Provider, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*timetable.Service, error) {
	return timetable.New(timetable.Config{
		Catalog:       cat,
		Renderer:      provider,
		TTL:           cfg.CacheTTL,
		PassTimeout:   cfg.PassTimeout,
		SnapshotPath:  cfg.SnapshotDB,
		KeepSnapshots: cfg.KeepSnapshots,
		Metrics:       metrics,
		Logger:        logger,
	})
}

func runServer(ctx context.Context, cat *catalog.Catalog, provider render.Provider, cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()
	svc, err := newService(cat, provider, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Restore(ctx); err != nil {
		logger.Warn("timetables: snapshot restore failed", "error", err)
	}
	go svc.RunRefresher(ctx, cfg.RefreshInterval, cfg.RefreshLead)

	var mcpHandler http.Handler
	if cfg.MCPEnabled {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "timetables", Version: version}, nil)
		svc.RegisterMCP(mcpSrv)
		mcpHandler = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil)
	}

	if cfg.RefreshSecret == "" {
		logger.Warn("timetables: REFRESH_SECRET not set, /api/refresh is disabled")
	}

	handler := api.New(api.Config{
		Service:       svc,
		RefreshSecret: cfg.RefreshSecret,
		Origins:       cfg.AllowedOrigins,
		RatePerMinute: cfg.RateLimit,
		Metrics:       metrics,
		MCP:           mcpHandler,
		Logger:        logger,
	})
	defer handler.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.PassTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("timetables: listening",
			"addr", srv.Addr, "render_mode", cfg.RenderMode, "routes", cat.Len(), "mcp", cfg.MCPEnabled)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("timetables: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runDump(ctx context.Context, cat *catalog.Catalog, provider render.Provider, cfg *config.Config, logger *slog.Logger) error {
	svc, err := newService(cat, provider, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	v, err := svc.Timetables(ctx)
	if err != nil {
		return fmt.Errorf("pass: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v.Set)
}

func runPanels(ctx context.Context, cat *catalog.Catalog, provider render.Provider, logger *slog.Logger) error {
	page, err := provider.Render(ctx)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	seq, err := timetable.Locate(page, cat, timetable.LogDiagnostics(logger))
	if err != nil {
		return err
	}
	n := 0
	for p := range seq {
		md, err := timetable.PanelMarkdown(p)
		if err != nil {
			logger.Warn("timetables: panel markdown", "external_id", p.ExternalID, "error", err)
			continue
		}
		fmt.Fprintln(os.Stdout, md)
		n++
	}
	logger.Info("timetables: panels printed", "count", n, "page_bytes", len(page))
	return nil
}
