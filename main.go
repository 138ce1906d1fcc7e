package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"streamwise/api"
	"streamwise/config"
	"streamwise/handlers"
	"streamwise/internal/docstore"
	"streamwise/services/advisor"
	"streamwise/services/appstate"
	"streamwise/services/sessions"
	"streamwise/services/users"
	"streamwise/services/watchmode"
	"streamwise/utils"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("🚀 StreamWise Backend Starting...")

	// Optional .env file for local development (WATCHMODE_API_KEY etc.)
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	// Determine config path (env or default)
	configPath := os.Getenv("STREAMWISE_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("data", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			multiWriter := io.MultiWriter(os.Stdout, fileWriter)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	apiKey := settings.Watchmode.APIKey
	if envKey := os.Getenv("WATCHMODE_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		log.Println("Warning: no Watchmode API key configured, title search will fail")
	}

	// Document store
	store, err := docstore.Open(settings.Store.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open document store: %v", err)
	}
	fmt.Println("📚 Document store ready")

	// Profiles and sessions
	usersSvc, err := users.NewService(settings.Store.DataDir)
	if err != nil {
		log.Fatalf("failed to init users service: %v", err)
	}
	sessionsSvc, err := sessions.NewService(settings.Store.DataDir, time.Duration(settings.Sessions.DurationHours)*time.Hour)
	if err != nil {
		log.Fatalf("failed to init sessions service: %v", err)
	}

	// Search upstream and per-user state
	searchClient := watchmode.NewClient(apiKey)
	stateManager := appstate.NewManager(store, searchClient)
	stateManager.SetTuning(appstate.Tuning{
		Debounce:         time.Duration(settings.Search.DebounceMs) * time.Millisecond,
		MinTermLength:    settings.Search.MinTermLength,
		MaxSourceFetches: settings.Search.MaxSourceFetches,
		UsageWindow:      time.Duration(settings.Usage.WindowDays) * 24 * time.Hour,
	})

	advisorSvc := advisor.NewService()

	// Handlers
	usersHandler := handlers.NewUsersHandler(usersSvc)
	authHandler := handlers.NewAuthHandler(usersSvc, sessionsSvc, stateManager.Release)
	stateHandler := handlers.NewStateHandler(stateManager)
	catalogHandler := handlers.NewCatalogHandler()
	advisorHandler := handlers.NewAdvisorHandler(stateManager, advisorSvc)
	imageHandler := handlers.NewImageHandler(settings.Store.DataDir)

	settingsHandler := handlers.NewSettingsHandler(cfgManager)
	settingsHandler.OnUpdate = func(s config.Settings) {
		// The env var keeps precedence over the persisted key.
		if os.Getenv("WATCHMODE_API_KEY") == "" {
			searchClient.SetAPIKey(s.Watchmode.APIKey)
		}
		stateManager.SetTuning(appstate.Tuning{
			Debounce:         time.Duration(s.Search.DebounceMs) * time.Millisecond,
			MinTermLength:    s.Search.MinTermLength,
			MaxSourceFetches: s.Search.MaxSourceFetches,
			UsageWindow:      time.Duration(s.Usage.WindowDays) * 24 * time.Hour,
		})
	}

	// Router
	r := utils.NewRouter()
	api.Register(r, authHandler, usersHandler, stateHandler, catalogHandler, advisorHandler, imageHandler, settingsHandler, sessionsSvc)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Printf("🌐 Listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("🛑 Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Tear down per-user controllers before the store goes away.
	stateManager.Close()
	if err := store.Close(); err != nil {
		log.Printf("Store close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
