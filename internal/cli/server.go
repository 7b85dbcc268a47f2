package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizzler-live/internal/app"
	"quizzler-live/internal/config"
	"quizzler-live/internal/infra/memory"
	infrapg "quizzler-live/internal/infra/postgres"
	infraredis "quizzler-live/internal/infra/redis"
	transport "quizzler-live/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 6*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	// Results archive: postgres when configured, in-process otherwise. The
	// read path goes through a Redis cache when one is available.
	memStore := memory.NewResultsStore()
	var archive app.Archiver = memStore
	var loader transport.ScoreboardLoader = memStore
	if pool != nil {
		pgArchive := infrapg.NewResultsArchive(pool)
		archive = pgArchive
		loader = pgArchive
	}
	if redisClient != nil {
		resultsTTL := config.TTLDuration(cfg.Live.ResultsTTL, 10*time.Minute)
		loader = infraredis.NewResultsRepository(redisClient, loader, resultsTTL)
	}

	var liveness app.Liveness
	if redisClient != nil {
		liveness = infraredis.NewLiveness(redisClient, redisTTL)
	}

	settings := app.Settings{
		BasePoints: cfg.Live.BasePoints,
		MinPoints:  cfg.Live.MinPoints,
		IdleTTL:    config.TTLDuration(cfg.Live.IdleTTL, 0),
	}
	directory := app.NewDirectory(settings, liveness, archive)

	heartbeat := config.TTLDuration(cfg.Live.Heartbeat, 25*time.Second)
	clientTimeout := config.TTLDuration(cfg.Live.ClientTimeout, 60*time.Second)
	handler := transport.NewHandler(directory, loader, heartbeat, clientTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws/host", handler.ServeHost)
	mux.HandleFunc("/ws/play", handler.ServePlay)
	mux.HandleFunc("GET /api/rooms/{code}", handler.RoomStatus)
	mux.HandleFunc("GET /api/rooms/{code}/results", handler.RoomResults)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	if settings.IdleTTL > 0 {
		go func() {
			ticker := time.NewTicker(settings.IdleTTL / 2)
			defer ticker.Stop()
			for range ticker.C {
				if count := directory.CloseIdle(); count > 0 {
					log.Printf("closed %d idle rooms", count)
				}
			}
		}()
	}

	go func() {
		log.Printf("starting quizzler-live on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
