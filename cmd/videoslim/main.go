package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mainite/videoslim"
	"github.com/mainite/videoslim/internal/api"
	"github.com/mainite/videoslim/internal/browse"
	"github.com/mainite/videoslim/internal/bus"
	"github.com/mainite/videoslim/internal/config"
	"github.com/mainite/videoslim/internal/encoder"
	"github.com/mainite/videoslim/internal/jobs"
	"github.com/mainite/videoslim/internal/logger"
	"github.com/mainite/videoslim/internal/profile"
	"github.com/mainite/videoslim/internal/store"
	"github.com/mainite/videoslim/internal/update"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./config/videoslim.yaml)")
	port := flag.Int("port", 8080, "Port to listen on")
	profileName := flag.String("profile", profile.DefaultName, "Profile used in console mode")
	deleteAudio := flag.Bool("delete-audio", false, "Drop the audio track (console mode)")
	deleteSource := flag.Bool("delete-source", false, "Delete each source after a successful encode (console mode)")
	recursive := flag.Bool("recursive", false, "Expand directory targets recursively (console mode)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [targets...]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintln(flag.CommandLine.Output(), "With targets, compresses them and exits. Without, serves the HTTP API.")
		fmt.Fprintln(flag.CommandLine.Output())
		flag.PrintDefaults()
	}
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		if envPath := os.Getenv("VIDEOSLIM_CONFIG"); envPath != "" {
			cfgPath = envPath
		} else {
			cfgPath = "config/videoslim.yaml"
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Init("info")
		logger.Warn("Could not load config", "path", cfgPath, "error", err)
		cfg = config.DefaultConfig()
	}

	if err := logger.InitFile(cfg.LogLevel, cfg.LogFile); err != nil {
		logger.Warn("Could not open log file", "path", cfg.LogFile, "error", err)
	}
	defer logger.Close()

	if envTemp := os.Getenv("VIDEOSLIM_TEMP"); envTemp != "" {
		cfg.TempDir = envTemp
	}
	if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
		logger.Warn("Could not create temp directory", "path", cfg.TempDir, "error", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		logger.Warn("Could not create database directory", "error", err)
	}

	// Initialize SQLite store (imports the legacy settings file if needed)
	historyStore, err := store.InitStore(cfg.DatabasePath, cfg.LegacyStorePath)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer historyStore.Close()

	messages := bus.New()
	registry := profile.NewRegistry(cfg.ProfilesPath)
	messages.Send(bus.ProfilesLoaded{Names: registry.Names()})

	prober := encoder.NewProber(cfg.Tools.FFprobe)
	builder := encoder.Builder{
		Tools: encoder.Tools{
			FFmpeg:  cfg.Tools.FFmpeg,
			X264:    cfg.Tools.X264,
			NeroAAC: cfg.Tools.NeroAAC,
			MP4Box:  cfg.Tools.MP4Box,
		},
		Temp: encoder.NewTempFiles(cfg.TempDir),
	}

	browseRoot := cfg.BrowseRoot
	if browseRoot == "" {
		if home, err := os.UserHomeDir(); err == nil {
			browseRoot = home
		} else {
			browseRoot = "."
		}
	}
	browser := browse.NewBrowser(prober, browseRoot, cfg.SupportedExtensions)

	orchestrator := jobs.NewOrchestrator(prober, encoder.NewExecutor(), registry, messages, jobs.Options{
		Builder:         builder,
		ProbeTimeout:    cfg.ProbeTimeout,
		Recorder:        historyStore,
		InvalidateCache: browser.InvalidateCache,
	})

	if flag.NArg() > 0 {
		opts := jobs.TaskOptions{
			Targets:      flag.Args(),
			Profile:      *profileName,
			DeleteAudio:  *deleteAudio,
			DeleteSource: *deleteSource,
			Recursive:    *recursive,
		}
		code := runConsole(orchestrator, messages, jobs.NewTask(opts, cfg.SupportedExtensions), cfg.PollInterval)
		shutdown(messages, registry, orchestrator, builder.Temp)
		historyStore.Close()
		logger.Close()
		os.Exit(code) //nolint:gocritic // store and logger closed explicitly above
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                         VIDEOSLIM                         ║")
	fmt.Println("║            Batch x264 compression for your videos         ║")
	versionLine := videoslim.Version
	padding := 59 - len(versionLine)
	fmt.Printf("║%*s%s%*s║\n", padding/2, "", versionLine, (padding+1)/2, "")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Config:       %s\n", cfgPath)
	fmt.Printf("  Profiles:     %s\n", registry.Path())
	fmt.Printf("  Database:     %s\n", historyStore.Path())
	fmt.Printf("  Temp path:    %s\n", cfg.TempDir)
	fmt.Printf("  Browse root:  %s\n", browser.Root())
	fmt.Printf("  FFmpeg:       %s\n", cfg.Tools.FFmpeg)
	fmt.Printf("  x264:         %s\n", cfg.Tools.X264)
	fmt.Printf("  NeroAAC:      %s\n", cfg.Tools.NeroAAC)
	fmt.Printf("  MP4Box:       %s\n", cfg.Tools.MP4Box)
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	presenter := api.NewPresenter(messages, cfg.PollInterval)
	go presenter.Run(ctx)

	if cfg.Update.Enabled {
		checker := update.NewChecker(cfg.Update.URL, videoslim.Version, cfg.Update.Timeout)
		go checker.Run(ctx, messages)
	}

	handler := api.NewHandler(browser, registry, orchestrator, messages, presenter, cfg.SupportedExtensions)
	handler.SetHistory(historyStore)
	router := api.NewRouter(handler)

	fmt.Printf("  Starting server on port %d\n", *port)
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	fmt.Println("─────────────────────────────────────────────────────────────")
	fmt.Printf("  Logging started (level: %s)\n", cfg.LogLevel)
	fmt.Println("─────────────────────────────────────────────────────────────")
	logger.Info("VideoSlim started", "version", videoslim.Version, "profiles", len(registry.Names()), "port", *port)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\n  Shutting down...")
		logger.Info("Shutdown signal received")
		server.Close()
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		shutdown(messages, registry, orchestrator, builder.Temp)
		presenter.Poll()
		historyStore.Close()
		logger.Close()
		os.Exit(1) //nolint:gocritic // store and logger closed explicitly above
	}

	shutdown(messages, registry, orchestrator, builder.Temp)
	presenter.Poll()
	cancel()

	logger.Info("Server stopped")
	fmt.Println("  Goodbye!")
}

// shutdown announces Exit, persists profiles and clears temp files unless a
// task still owns them.
func shutdown(messages *bus.Bus, registry *profile.Registry, orchestrator *jobs.Orchestrator, temp encoder.TempFiles) {
	messages.Send(bus.Exit{})

	if err := registry.Save(); err != nil {
		logger.Warn("Failed to save profiles", "path", registry.Path(), "error", err)
	}

	if orchestrator.Running() {
		logger.Warn("Task still running at shutdown, leaving temp files in place")
		return
	}
	encoder.CleanTempFiles(temp)
}
