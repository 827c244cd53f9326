package http

import (
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/hris-payroll-go/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

type RouterOptions struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	Metrics        http.Handler
}

func NewRouter(opts RouterOptions, payrollHandler PayrollHandler) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(chiMiddleware.RequestID)
	if opts.Logger != nil {
		r.Use(httplog.RequestLogger(opts.Logger, &httplog.Options{
			Level:  slog.LevelDebug,
			Schema: httplog.SchemaECS,
		}))
	}

	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/healthz"))

	r.NotFound(response.RouteNotFound)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w)
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/payroll", func(r chi.Router) {
			r.Get("/preview", payrollHandler.PreviewQuery)
			r.Post("/preview", payrollHandler.Preview)
			r.Get("/rules", payrollHandler.GetRules)
			r.Get("/summary", payrollHandler.GetPayrollSummary)

			r.Route("/records", func(r chi.Router) {
				r.Get("/", payrollHandler.ListPayrollRecords)
				r.Post("/", payrollHandler.CreatePayrollRecord)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", payrollHandler.GetPayrollRecord)
					r.Put("/", payrollHandler.UpdatePayrollRecord)
					r.Delete("/", payrollHandler.DeletePayrollRecord)
					r.Post("/pay", payrollHandler.MarkPayrollRecordPaid)
				})
			})
		})
	})
	return r
}
