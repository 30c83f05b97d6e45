package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"fieldsync/internal/auth"
	"fieldsync/internal/authflow"
	"fieldsync/internal/httpserver/handlers"
	"fieldsync/internal/syncengine"
)

// NewRouter wires the HTTP surface (C9) exactly per spec §6's route
// table: auth endpoints, a sync/resolve-conflict pair per entity kind,
// read-only down-sync GETs, and the bearer-protected smoke-test route.
func NewRouter(docs handlers.DocReader, engine *syncengine.Engine, flow *authflow.Service, lg *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)

	r.Post("/api/register", handlers.Register(flow, lg))
	r.Post("/api/login", handlers.Login(flow, lg))
	r.Post("/api/forgot-password", handlers.ForgotPassword(flow, lg))
	r.Post("/api/verify-otp", handlers.VerifyOTP(flow, lg))
	r.Post("/api/reset-password", handlers.ResetPassword(flow, lg))

	for _, entity := range syncengine.KnownEntities() {
		entity := entity
		r.Post("/api/sync/"+entity, handlers.Sync(engine, entity, lg))
		r.Post("/api/sync/"+entity+"/resolve-conflict", handlers.ResolveConflict(engine, entity, lg))
		r.Get("/api/down-sync/"+entity, handlers.DownSync(docs, entity, lg))
	}

	r.Group(func(protected chi.Router) {
		protected.Use(auth.JWTAuth())
		protected.Get("/api/test-protected", handlers.TestProtected())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
