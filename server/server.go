package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"compconv/cache"
	"compconv/config"
	"compconv/core/audioload"
	"compconv/core/auth"
	"compconv/core/generator"
	"compconv/core/library"
	"compconv/core/preset"
	"compconv/core/quality"
	"compconv/logger"
	"compconv/storage"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Redis backs the generation response cache; the service runs without it.
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, generation cache disabled", logger.ErrorField(err))
	} else {
		defer cache.CloseRedis()
		logger.Info("connected to Redis")
	}

	// MinIO serves the canned sample audio; optional as well.
	if err := storage.InitMinio(cfg); err != nil {
		logger.Warn("MinIO unavailable, sample serving disabled", logger.ErrorField(err))
	}

	// Pick the real generation service or the built-in sample mode.
	var gen generator.Generator
	var synth generator.Synthesizer
	if cfg.GenerationAPIURL != "" {
		client := generator.NewClient(cfg.GenerationAPIURL, cfg.GenerationAPIKey)
		gen, synth = client, client
		logger.Info("using generation API", logger.String("url", cfg.GenerationAPIURL))
	} else {
		mock := generator.NewMock(cfg.SampleBaseURL, 0)
		gen, synth = mock, mock
		logger.Info("no generation API configured, using sample generator")
	}

	var verifier quality.Verifier
	if cfg.VerifierAPIURL != "" {
		verifier = quality.NewClient(cfg.VerifierAPIURL)
	} else {
		verifier = quality.MockVerifier{}
	}

	lib := library.New(gen, library.Options{
		TTL:             cfg.LibraryTTL,
		BatchSize:       cfg.LibraryBatch,
		RemixHistoryLen: cfg.RemixHistoryLen,
		DefaultLimit:    cfg.DefaultLimit,
	})
	gate := quality.NewGate(lib, verifier, gen)

	loader := audioload.NewLoader(audioload.NewHTTPBackend(), audioload.Config{
		RetryDelay:   cfg.LoaderRetryDelay,
		MaxFallbacks: cfg.MaxFallbackURLs,
	})
	defer loader.Cleanup()

	presets := preset.NewStore(cfg.PresetDir)
	if err := presets.Load(); err != nil {
		logger.Warn("failed to load presets", logger.ErrorField(err))
	}
	if err := presets.Watch(); err != nil {
		logger.Warn("preset hot reload disabled", logger.ErrorField(err))
	} else {
		defer presets.Close()
	}

	demoHash, err := auth.HashPassword(cfg.DemoPassword)
	if err != nil {
		logger.Fatal("failed to hash demo password", logger.ErrorField(err))
	}
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)

	events := NewEventHub()
	defer events.Close()

	apiHandler := NewAPIHandler(lib, gate, loader, synth, presets, issuer, events, cfg, demoHash)

	router := mux.NewRouter()

	// CORS middleware
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Library and track endpoints
	router.HandleFunc("/api/library", apiHandler.GetLibraryHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/library/remixes", apiHandler.GetRemixHistoryHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", apiHandler.GetTrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}/verify", apiHandler.VerifyTrackHandler).Methods(http.MethodGet)

	// Generation proxies
	router.HandleFunc("/api/generate/remix", apiHandler.AuthMiddleware(apiHandler.RemixHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/generate/speech", apiHandler.AuthMiddleware(apiHandler.SpeechHandler)).Methods(http.MethodPost)

	// Player endpoints
	router.HandleFunc("/api/player/preload", apiHandler.AuthMiddleware(apiHandler.PreloadHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/{id}/play", apiHandler.AuthMiddleware(apiHandler.PlayHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/{id}/pause", apiHandler.AuthMiddleware(apiHandler.PauseHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/{id}/download", apiHandler.AuthMiddleware(apiHandler.DownloadHandler)).Methods(http.MethodGet)

	// Presets and auth
	router.HandleFunc("/api/presets", apiHandler.GetPresetsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)

	// Loader event stream
	router.HandleFunc("/ws/loader", events.HandleWS).Methods(http.MethodGet)

	// Canned sample audio from MinIO
	router.PathPrefix("/samples/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		objectPath := strings.TrimPrefix(r.URL.Path, "/samples/")
		if storage.GetClient() == nil {
			http.Error(w, "Sample storage not available", http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		object, err := storage.GetSample(ctx, objectPath)
		if err != nil {
			http.Error(w, "Sample not found", http.StatusNotFound)
			return
		}
		defer object.Close()

		w.Header().Set("Content-Type", storage.ContentTypeFor(objectPath))
		w.Header().Set("Cache-Control", "public, max-age=86400")
		if _, err := io.Copy(w, object); err != nil {
			logger.Warn("error serving sample", logger.String("object", objectPath), logger.ErrorField(err))
		}
	})

	server.Handler = router

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}
