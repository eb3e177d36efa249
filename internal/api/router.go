package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/oplai/backend/internal/api/handlers"
	"github.com/oplai/backend/internal/api/middleware"
	"github.com/oplai/backend/internal/apiexport"
	"github.com/oplai/backend/internal/assistant"
	"github.com/oplai/backend/internal/audit"
	"github.com/oplai/backend/internal/auth"
	"github.com/oplai/backend/internal/cache"
	"github.com/oplai/backend/internal/config"
	"github.com/oplai/backend/internal/drive"
	"github.com/oplai/backend/internal/generation"
	"github.com/oplai/backend/internal/llm"
	"github.com/oplai/backend/internal/playbook"
	"github.com/oplai/backend/internal/presence"
	"github.com/oplai/backend/internal/prompt"
	"github.com/oplai/backend/internal/queue"
	"github.com/oplai/backend/internal/sharing"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	jwt   *auth.JWTMiddleware
	llmGW llm.Gateway
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	profiles := auth.NewProfileService(db, cache.NewCache(rdb))
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		jwt:   auth.NewJWTMiddleware(cfg.Auth.JWTSecret, profiles),
		llmGW: llm.NewGateway(cfg.LLM),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Services
	auditSvc := audit.NewService(rt.db)
	playbookSvc := playbook.NewService(playbook.NewPGStore(rt.db))
	sharingSvc := sharing.NewService(sharing.NewPGStore(rt.db), auditSvc)
	exportSvc := apiexport.NewService(apiexport.NewPGStore(rt.db))
	promptSvc := prompt.NewService(rt.db)
	generateSvc := generation.NewFacade(rt.llmGW, promptSvc, auditSvc, rt.cfg.LLM.DefaultModel)
	assistantSvc := assistant.NewService(rt.db, rt.llmGW, auditSvc, rt.cfg.LLM.DefaultModel)
	driveSvc := drive.NewService(rt.db, rt.cfg.Google)
	queueClient := queue.NewClient(rt.cfg.Redis)
	presenceWS := presence.NewHandler(presence.NewChannel(rt.redis))

	// Public capability URL: anyone holding the endpoint ID may read it.
	endpointH := handlers.NewEndpointHandler(exportSvc)
	r.Get("/public/api-endpoints/{id}", endpointH.Serve)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		playbookH := handlers.NewPlaybookHandler(playbookSvc)
		sharingH := handlers.NewSharingHandler(sharingSvc)
		presenceH := handlers.NewPresenceHandler(playbookSvc, presenceWS)
		r.Route("/playbooks", func(r chi.Router) {
			r.Get("/", playbookH.List)
			r.Post("/", playbookH.Create)
			r.Get("/{id}", playbookH.Get)
			r.Put("/{id}", playbookH.Update)
			r.Delete("/{id}", playbookH.Delete)
			r.Put("/{id}/questions", playbookH.SyncQuestions)
			r.Get("/{id}/presence", presenceH.Connect)
			r.Post("/{id}/share", sharingH.IssueToken)
			r.Get("/{id}/collaborators", sharingH.ListCollaborators)
			r.Post("/{id}/collaborators", sharingH.Invite)
			r.Delete("/{id}/collaborators/{userID}", sharingH.Remove)
		})

		r.Post("/join", sharingH.Join)
		r.Delete("/share/{token}", sharingH.DeactivateToken)

		syncH := handlers.NewSyncHandler(queueClient)
		r.Route("/sync", func(r chi.Router) {
			r.Post("/reconcile", syncH.Reconcile)
			r.Post("/session", syncH.Session)
		})

		generateH := handlers.NewGenerateHandler(generateSvc)
		r.Route("/generate", func(r chi.Router) {
			r.Post("/questions", generateH.Questions)
			r.Post("/answer", generateH.Answer)
		})

		assistantH := handlers.NewAssistantHandler(assistantSvc)
		r.Post("/assistant/chat", assistantH.Chat)

		promptH := handlers.NewPromptHandler(promptSvc)
		r.Route("/prompts", func(r chi.Router) {
			r.Post("/", promptH.Create)
			r.Get("/", promptH.List)
			r.Get("/{id}", promptH.Get)
			r.Delete("/{id}", promptH.Delete)
			r.Post("/{id}/versions", promptH.CreateVersion)
			r.Post("/{id}/activate", promptH.Activate)
			r.Post("/{id}/render", promptH.RenderPrompt)
		})

		r.Route("/endpoints", func(r chi.Router) {
			r.Post("/", endpointH.Create)
			r.Get("/", endpointH.List)
			r.Put("/{id}", endpointH.Update)
			r.Delete("/{id}", endpointH.Delete)
		})

		driveH := handlers.NewDriveHandler(driveSvc, queueClient)
		r.Route("/drive", func(r chi.Router) {
			r.Post("/oauth", driveH.OAuth)
			r.Post("/sync", driveH.Sync)
		})

		r.Get("/monitor/stats", playbookH.MonitorStats)
	})

	return r
}
