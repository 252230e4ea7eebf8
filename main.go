package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"openstream/auth"
	"openstream/authz"
	"openstream/cache"
	"openstream/config"
	"openstream/db"
	"openstream/logging"
	"openstream/mediaprobe"
	"openstream/storage"
	"openstream/supervisor"
	"openstream/worker"
	"openstream/youtube"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	for _, w := range cfg.Warnings() {
		logging.Warn().Msg(w)
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = ephemeralSecret()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialect, _ := db.ParseDialect(cfg.Database.Driver)
	database, err := db.Open(ctx, dialect, cfg.DSN())
	if err != nil {
		logging.Fatal().Err(err).Str("driver", string(dialect)).Msg("failed to open database")
	}
	defer database.Close()

	objects, err := storage.NewMinIO(cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey,
		cfg.Storage.UseSSL, cfg.Storage.PublicURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to configure object storage")
	}
	if err := objects.EnsureBuckets(ctx); err != nil {
		logging.Warn().Err(err).Msg("object storage unavailable; uploads will fail until it is reachable")
	}

	redisCache := cache.New(ctx, cfg.Redis.URL)
	defer redisCache.Close()

	var fetcher youtube.Fetcher
	if cfg.YouTube.APIKey != "" {
		f, err := youtube.NewAPIFetcher(ctx, cfg.YouTube.APIKey)
		if err != nil {
			logging.Warn().Err(err).Msg("youtube client unavailable")
		} else {
			fetcher = f
		}
	}
	yt := youtube.NewClient(fetcher, redisCache, cfg.YouTube.Timeout)

	var mailer auth.Mailer = auth.LogMailer{}
	if cfg.SMTP.Host != "" {
		mailer = auth.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	}

	enforcer, err := authz.NewEnforcer()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load authorization policy")
	}

	app := &App{
		Config:   cfg,
		DB:       database,
		Objects:  objects,
		Cache:    redisCache,
		YouTube:  yt,
		Prober:   mediaprobe.NewFFprobe(cfg.Probe.FFprobePath, cfg.Probe.Timeout),
		Mailer:   mailer,
		Enforcer: enforcer,
	}

	tree := supervisor.NewTree(supervisor.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout})
	tree.AddAPIService(&supervisor.HTTPService{
		Server:          &http.Server{Addr: cfg.Addr(), Handler: newRouter(app)},
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddJobService(&worker.DurationBackfill{
		Videos:  app.videoStore(),
		YouTube: yt,
		Every:   cfg.Server.BackfillEvery,
	})

	logging.Info().Str("addr", cfg.Addr()).Str("database", string(dialect)).Msg("OpenStream API listening")
	if err := tree.Serve(ctx); err != nil {
		logging.Error().Err(err).Msg("supervisor stopped")
		os.Exit(1)
	}
	logging.Info().Msg("server shut down")
}

func ephemeralSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		logging.Fatal().Err(err).Msg("failed to generate JWT secret")
	}
	return hex.EncodeToString(b)
}
