/*
Package api exposes the posting engine over HTTP.

SURFACE:
  Documents:   POST /api/estimates | /api/daily-reports | /api/timesheets
               GET  same paths (list)
               GET/DELETE /api/documents/{type}/{id}
               POST /api/documents/{type}/{id}/post | /unpost
  Balances:    GET /api/estimates/{id}/work-balance
               GET /api/payroll/summary?period=YYYY-MM
  Registers:   GET /api/registers/work-execution?recorder_type=&recorder_id=
               GET /api/registers/payroll?recorder_type=&recorder_id=
  Catalogs:    POST/GET /api/catalog/works | /employees | /objects
  Dev:         POST /api/seed, GET /health

{type} and recorder_type take the recorder type values: estimate,
daily_report, timesheet.
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sitebook/posting-engine/posting"
	"github.com/sitebook/posting-engine/register"
	"github.com/sitebook/posting-engine/store/sqlite"
)

// Server wires the store, the posting engine and the balance queries to
// an HTTP router.
type Server struct {
	store    *sqlite.Store
	engine   *posting.Engine
	balances *register.BalanceService
	logger   *zap.Logger
}

func NewServer(store *sqlite.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:    store,
		engine:   posting.NewEngine(store, store, logger),
		balances: register.NewBalanceService(store),
		logger:   logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/estimates", s.handleCreateEstimate)
		r.Get("/estimates", s.handleListDocuments(register.RecorderEstimate))
		r.Get("/estimates/{id}/work-balance", s.handleWorkBalance)

		r.Post("/daily-reports", s.handleCreateDailyReport)
		r.Get("/daily-reports", s.handleListDocuments(register.RecorderDailyReport))

		r.Post("/timesheets", s.handleCreateTimesheet)
		r.Get("/timesheets", s.handleListDocuments(register.RecorderTimesheet))

		r.Route("/documents/{type}/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetDocument)
			r.Delete("/", s.handleDeleteDocument)
			r.Post("/post", s.handlePost)
			r.Post("/unpost", s.handleUnpost)
		})

		r.Get("/payroll/summary", s.handlePayrollSummary)

		r.Get("/registers/work-execution", s.handleWorkExecutionRows)
		r.Get("/registers/payroll", s.handlePayrollRows)

		r.Route("/catalog", func(r chi.Router) {
			r.Post("/works", s.handleCreateWork)
			r.Get("/works", s.handleListWorks)
			r.Post("/employees", s.handleCreateEmployee)
			r.Get("/employees", s.handleListEmployees)
			r.Post("/objects", s.handleCreateObject)
			r.Get("/objects", s.handleListObjects)
		})

		r.Post("/seed", s.handleSeed)
	})

	return r
}
