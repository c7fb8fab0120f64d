package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/geofs-atc/internal/ai"
	"github.com/yegors/geofs-atc/internal/ai/gemini"
	"github.com/yegors/geofs-atc/internal/ai/openai"
	"github.com/yegors/geofs-atc/internal/airports"
	"github.com/yegors/geofs-atc/internal/api"
	"github.com/yegors/geofs-atc/internal/atcchat"
	"github.com/yegors/geofs-atc/internal/config"
	"github.com/yegors/geofs-atc/internal/controllers"
	"github.com/yegors/geofs-atc/internal/narration"
	"github.com/yegors/geofs-atc/internal/proximity"
	"github.com/yegors/geofs-atc/internal/storage/sqlite"
	"github.com/yegors/geofs-atc/internal/telemetry"
	"github.com/yegors/geofs-atc/internal/templating"
	"github.com/yegors/geofs-atc/internal/weather"
	"github.com/yegors/geofs-atc/internal/websocket"
	"github.com/yegors/geofs-atc/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	envPath := flag.String("env", ".env", "Path to a .env file with API keys (ignored when missing)")
	flag.Parse()

	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", *envPath, err)
		os.Exit(1)
	}

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting GeoFS ATC server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
		logger.String("provider", cfg.ATCChat.Provider),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Airports
	registry, err := airports.LoadFile(cfg.Airports.DBPath, cfg.Airports.MetadataPath, airports.LoadOptions{
		Types:    cfg.Airports.Types,
		ICAOOnly: cfg.Airports.ICAOOnly,
	})
	if err != nil {
		log.Error("Failed to load airports", logger.Error(err), logger.String("path", cfg.Airports.DBPath))
		os.Exit(1)
	}
	log.Info("Airport registry loaded", logger.Int("airports", registry.Len()))

	// Controllers
	personaClient := controllers.NewClient(controllers.ClientConfig{
		BaseURL:       cfg.Controllers.PersonaURL,
		Gender:        cfg.Controllers.Gender,
		Nationalities: cfg.Controllers.Nationalities,
		Timeout:       time.Duration(cfg.Controllers.RequestTimeoutSeconds) * time.Second,
	}, log)
	controllerRegistry := controllers.NewRegistry(
		personaClient,
		cfg.Controllers.CacheSize,
		time.Duration(cfg.Controllers.RetryCooldownSeconds)*time.Second,
		time.Duration(cfg.Controllers.RequestTimeoutSeconds)*time.Second,
		log,
	)

	// Chat provider
	provider, model, err := newChatProvider(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to create chat provider", logger.Error(err))
		os.Exit(1)
	}

	// WebSocket hub for the overlay
	wsServer := websocket.NewServer(log, cfg.Server.CORSAllowedOrigins)
	go wsServer.Run(ctx)

	// Narration, optionally archived to the radio log
	sinks := narration.Multi{narration.NewBroadcaster(wsServer, narration.Durations{
		ATC:    time.Duration(cfg.Narration.ATCBannerSeconds) * time.Second,
		Pilot:  time.Duration(cfg.Narration.PilotBannerSeconds) * time.Second,
		Notice: time.Duration(cfg.Narration.NoticeBannerSeconds) * time.Second,
	}, log)}

	var radioLog *sqlite.RadioLog
	if cfg.Storage.Enabled {
		var db *sql.DB
		db, radioLog, err = openRadioLog(cfg.Storage.SQLiteBasePath, log)
		if err != nil {
			log.Error("Failed to open radio log", logger.Error(err))
			os.Exit(1)
		}
		defer db.Close()
		sinks = append(sinks, narration.NewArchive(radioLog, log))
	}

	store := telemetry.NewStore(log)
	templates := templating.NewEngine(cfg.Templating.OverrideDir, cfg.Templating.ReloadTemplates, log)

	deps := atcchat.Deps{
		Airports:    registry,
		Telemetry:   store,
		Controllers: controllerRegistry,
		Prompts:     templates,
		Chat:        provider,
		Narration:   sinks,
	}
	var wxPurge api.Resetter
	if cfg.Weather.Enabled {
		wxCfg := weather.Config{
			APIBaseURL:            cfg.Weather.APIBaseURL,
			RequestTimeoutSeconds: cfg.Weather.RequestTimeoutSeconds,
			MaxRetries:            cfg.Weather.MaxRetries,
			CacheExpiryMinutes:    cfg.Weather.CacheExpiryMinutes,
			CacheSize:             cfg.Weather.CacheSize,
		}
		wx := weather.NewService(weather.NewClient(wxCfg, log), wxCfg, log)
		deps.METAR = wx
		wxPurge = api.ResetFunc(wx.Purge)
		log.Info("METAR reports enabled", logger.String("api", cfg.Weather.APIBaseURL))
	}

	chatService := atcchat.NewService(deps, atcchat.Options{
		Provider:    cfg.ATCChat.Provider,
		RangeKm:     cfg.ATCChat.RangeKm,
		Model:       model,
		Temperature: cfg.ATCChat.Temperature,
		MaxTokens:   cfg.ATCChat.MaxResponseTokens,
		Timeout:     time.Duration(cfg.ATCChat.TimeoutSeconds) * time.Second,
		MaxHistory:  cfg.ATCChat.MaxHistoryMessages,
		Guest: telemetry.Guest{
			Callsign: cfg.ATCChat.GuestCallsign,
			Name:     cfg.ATCChat.GuestName,
		},
	}, log)

	chatWS := atcchat.NewWebSocketHandler(ctx, chatService, log)
	wsServer.SetMessageHandler(websocket.HandlerMux{
		websocket.MessageTypeTelemetry:   telemetry.NewWebSocketHandler(store, log),
		websocket.MessageTypeTalk:        chatWS,
		websocket.MessageTypeTune:        chatWS,
		websocket.MessageTypeSpeechError: chatWS,
	})

	resetters := []api.Resetter{store, controllerRegistry, api.ResetFunc(templates.ClearCache)}

	if wxPurge != nil {
		resetters = append(resetters, wxPurge)
	}

	var poller *proximity.Poller
	if cfg.Proximity.Enabled {
		poller = proximity.NewPoller(proximity.Config{
			Telemetry:   store,
			Registry:    registry,
			Controllers: controllerRegistry,
			Frequency:   chatService,
			Sink:        sinks,
			Publisher:   wsServer,
			Interval:    time.Duration(cfg.Proximity.PollIntervalMs) * time.Millisecond,
		}, log)
		go poller.Run(ctx)
		resetters = append(resetters, poller)
	}

	handlerDeps := api.Deps{
		Chat:           chatService,
		Airports:       registry,
		Controllers:    controllerRegistry,
		Telemetry:      store,
		ResetOnSession: resetters,
		Clients:        wsServer.ClientCount,
	}
	if poller != nil {
		handlerDeps.Proximity = poller
	}
	if radioLog != nil {
		handlerDeps.RadioLog = radioLog
	}

	router := api.NewRouter(
		api.NewHandler(handlerDeps, log),
		wsServer.HandleConnection,
		cfg.Server.StaticFilesDir,
		cfg.Server.CORSAllowedOrigins,
		log,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", logger.String("addr", server.Addr), logger.Error(err))
			cancel()
		}
	}()

	// Wait for interrupt signal or a fatal server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}

// newChatProvider builds the configured chat backend and returns its model
func newChatProvider(ctx context.Context, cfg *config.Config, log *logger.Logger) (ai.ChatProvider, string, error) {
	switch cfg.ATCChat.Provider {
	case "openai":
		client := openai.NewClient(cfg.OpenAI.APIKey, log, cfg.OpenAI.BaseURL, cfg.OpenAI.MaxRetries)
		client.SetChatCompletionsPath(cfg.OpenAI.ChatCompletionsPath)
		return client, cfg.OpenAI.Model, nil
	case "gemini":
		client, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, log, gemini.Options{})
		if err != nil {
			return nil, "", err
		}
		return client, cfg.Gemini.Model, nil
	default:
		return nil, "", fmt.Errorf("unsupported provider: %s", cfg.ATCChat.Provider)
	}
}

// openRadioLog opens today's database file under basePath
func openRadioLog(basePath string, log *logger.Logger) (*sql.DB, *sqlite.RadioLog, error) {
	dbPath := sqlite.DailyPath(basePath, time.Now())
	log.Info("Using daily database", logger.String("path", dbPath))

	db, err := sqlite.Open(dbPath, log)
	if err != nil {
		return nil, nil, err
	}
	radioLog, err := sqlite.NewRadioLog(db, log)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, radioLog, nil
}
