package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"openstream/admin"
	"openstream/auth"
	"openstream/authz"
	"openstream/cache"
	"openstream/config"
	"openstream/db"
	"openstream/feed"
	"openstream/httputil"
	"openstream/logging"
	"openstream/mediaprobe"
	"openstream/metrics"
	"openstream/moderation"
	"openstream/pages"
	"openstream/profile"
	"openstream/publicapi"
	"openstream/ratelimit"
	"openstream/storage"
	"openstream/videos"
	"openstream/youtube"
)

// App holds the constructed dependencies shared by every handler.
type App struct {
	Config   *config.Config
	DB       *db.CompatDB
	Objects  storage.ObjectStore
	Cache    *cache.Cache
	YouTube  *youtube.Client
	Prober   mediaprobe.Prober
	Mailer   auth.Mailer
	Enforcer *authz.Enforcer
}

func (a *App) videoStore() *videos.Store { return &videos.Store{DB: a.DB} }

func newRouter(app *App) http.Handler {
	cfg := app.Config
	videoStore := app.videoStore()

	authH := &auth.Handler{
		DB:        app.DB,
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  cfg.Auth.TokenTTL,
		CodeTTL:   cfg.Auth.CodeTTL,
		Mailer:    app.Mailer,
	}
	videoH := &videos.Handler{
		Store: videoStore,
		Uploader: &videos.Uploader{
			Records: videoStore,
			Objects: app.Objects,
			Prober:  app.Prober,
			YouTube: app.YouTube,
		},
		Objects: app.Objects,
	}
	feedH := &feed.Handler{
		Store:       videoStore,
		Recommender: &feed.Recommender{Store: videoStore},
		YouTube:     app.YouTube,
	}
	modH := &moderation.Handler{Store: &moderation.Store{DB: app.DB}, Videos: videoStore}
	profileH := &profile.Handler{DB: app.DB, Videos: videoStore, Objects: app.Objects}
	adminH := &admin.Handler{DB: app.DB, Cache: app.Cache, YouTube: app.YouTube}
	publicH := &publicapi.Handler{Videos: videoStore}
	guard := &authz.Middleware{Enforcer: app.Enforcer, DB: app.DB}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(metrics.Middleware)

	limit := func(n int) func(http.Handler) http.Handler {
		if cfg.RateLimit.Disabled {
			return func(next http.Handler) http.Handler { return next }
		}
		return ratelimit.Middleware(n, cfg.RateLimit.Window)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := app.DB.PingContext(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(limit(cfg.RateLimit.AuthRequests))
		r.Post("/register", authH.HandleRegister)
		r.Post("/login", authH.HandleLogin)
		r.Post("/otp", authH.HandleRequestCode)
		r.Post("/otp/verify", authH.HandleVerifyCode)
		r.Group(func(r chi.Router) {
			r.Use(authH.AuthMiddleware)
			r.Put("/password", authH.HandleChangePassword)
			r.Get("/session", authH.HandleSession)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(limit(cfg.RateLimit.Requests))

		// Method checks live in the handlers so that non-GET requests get 405 with Allow.
		r.HandleFunc("/api/v1", publicH.HandleIndex)
		r.HandleFunc("/api/v1/videos", publicH.HandleVideos)

		r.Group(func(r chi.Router) {
			r.Use(authH.OptionalAuth)
			r.Get("/api/feed", feedH.HandleFeed)
			r.Get("/api/videos/{id}", videoH.HandleGet)
		})
		r.Get("/api/videos/{id}/similar", feedH.HandleSimilar)
		r.Get("/api/users/{id}/videos", videoH.HandleUserVideos)
		r.Get("/api/categories", videoH.HandleCategories)
		r.Get("/api/themes/suggest", videoH.HandleSuggestThemes)

		r.Group(func(r chi.Router) {
			r.Use(authH.AuthMiddleware)

			r.Post("/api/videos", videoH.HandleUpload)
			r.Patch("/api/videos/{id}", videoH.HandleEdit)
			r.Delete("/api/videos/{id}", videoH.HandleDelete)
			r.Put("/api/videos/{id}/rating", videoH.HandleRate)

			r.Get("/api/me", profileH.HandleGet)
			r.Put("/api/me", profileH.HandleUpdate)
			r.Post("/api/me/avatar", profileH.HandleAvatar)
			r.Post("/api/me/banner", profileH.HandleBanner)
			r.Get("/api/me/videos", videoH.HandleMyVideos)
			r.Get("/api/me/themes", profileH.HandleListThemes)
			r.Post("/api/me/themes", profileH.HandleLikeThemes)
			r.Delete("/api/me/themes/{theme}", profileH.HandleUnlikeTheme)

			r.Route("/api/moderation", func(r chi.Router) {
				r.Use(guard.Require(authz.ObjVideos, authz.ActModerate))
				r.Get("/queue", modH.HandleQueue)
				r.Post("/videos/{id}/approve", modH.HandleApprove)
				r.Post("/videos/{id}/refuse", modH.HandleRefuse)
			})

			r.Route("/api/admin", func(r chi.Router) {
				r.With(guard.Require(authz.ObjStatus, authz.ActRead)).Get("/status", adminH.HandleStatus)
				r.With(guard.Require(authz.ObjSettings, authz.ActRead)).Get("/settings", adminH.HandleListSettings)
				r.With(guard.Require(authz.ObjSettings, authz.ActWrite)).Put("/settings/{name}", adminH.HandleUpdateSetting)
				r.With(guard.Require(authz.ObjUsers, authz.ActManage)).Put("/users/{id}/roles", adminH.HandleUpdateRoles)
			})
		})
	})

	(&pages.Handler{Dir: cfg.Server.StaticDir}).Mount(r)

	return r
}
