package routes

import (
	"net/http"

	"github.com/zatekoja/clearlink/backend/internal/api/handlers"
	"github.com/zatekoja/clearlink/backend/internal/api/middleware"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	transportRequestHandler *handlers.TransportRequestHandler
	dispatchHandler         *handlers.DispatchHandler
	dashboardHandler        *handlers.DashboardHandler
	auditHandler            *handlers.AuditHandler
	sseHandler              *handlers.SSEHandler

	identity       *middleware.IdentityResolver
	loaders        func(http.Handler) http.Handler
	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router. sseHandler may be nil when streams are served elsewhere.
func NewRouter(
	transportRequestHandler *handlers.TransportRequestHandler,
	dispatchHandler *handlers.DispatchHandler,
	dashboardHandler *handlers.DashboardHandler,
	auditHandler *handlers.AuditHandler,
	sseHandler *handlers.SSEHandler,
	identity *middleware.IdentityResolver,
	loaders func(http.Handler) http.Handler,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                     http.NewServeMux(),
		transportRequestHandler: transportRequestHandler,
		dispatchHandler:         dispatchHandler,
		dashboardHandler:        dashboardHandler,
		auditHandler:            auditHandler,
		sseHandler:              sseHandler,
		identity:                identity,
		loaders:                 loaders,
		allowedOrigins:          allowedOrigins,
		metrics:                 metrics,
	}
}

// authed resolves the caller before the handler runs
func (r *Router) authed(h http.HandlerFunc) http.Handler {
	var handler http.Handler = h
	if r.loaders != nil {
		handler = r.loaders(handler)
	}
	return r.identity.Middleware(handler)
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Reference data
	r.mux.HandleFunc("GET /api/zones", r.dashboardHandler.Zones)

	// Staff
	r.mux.Handle("POST /api/staff/transport-requests", r.authed(r.transportRequestHandler.CreateTransportRequest))
	r.mux.Handle("GET /api/staff/queue", r.authed(r.dashboardHandler.StaffQueue))
	r.mux.Handle("POST /api/staff/assign/auto", r.authed(r.dispatchHandler.AutoAssign))
	r.mux.Handle("GET /api/staff/tasks/{id}/candidates", r.authed(r.dashboardHandler.Candidates))
	r.mux.Handle("POST /api/staff/tasks/{id}/assign", r.authed(r.dispatchHandler.ManualAssign))
	r.mux.Handle("POST /api/staff/tasks/{id}/escalate", r.authed(r.dispatchHandler.Escalate))
	r.mux.Handle("POST /api/staff/tasks/{id}/reschedule", r.authed(r.dispatchHandler.Reschedule))
	r.mux.Handle("PATCH /api/staff/resources/{id}", r.authed(r.dispatchHandler.SetResourceAvailability))
	r.mux.Handle("GET /api/staff/audit", r.authed(r.auditHandler.Recent))

	// Driver
	r.mux.Handle("GET /api/driver/tasks", r.authed(r.dashboardHandler.DriverTasks))
	r.mux.Handle("POST /api/driver/tasks/{id}/accept", r.authed(r.dispatchHandler.Accept))
	r.mux.Handle("POST /api/driver/tasks/{id}/decline", r.authed(r.dispatchHandler.Decline))

	if r.sseHandler != nil {
		RegisterStreams(r.mux, r.sseHandler, r.identity)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}

// RegisterStreams mounts the event stream endpoints on mux
func RegisterStreams(mux *http.ServeMux, sseHandler *handlers.SSEHandler, identity *middleware.IdentityResolver) {
	mux.Handle("GET /api/staff/queue/stream", identity.Middleware(http.HandlerFunc(sseHandler.StreamQueue)))
	mux.Handle("GET /api/driver/tasks/stream", identity.Middleware(http.HandlerFunc(sseHandler.StreamDriverTasks)))
}
