package httpadapter

import (
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/oapi-codegen/runtime"
	httpSwagger "github.com/swaggo/http-swagger"

	"uzimasmart/internal/domain"
	"uzimasmart/internal/ports"
)

//go:embed openapi.yaml
var openapiYAML []byte

const maxBodyBytes = 1 << 20

// Services are the use cases the HTTP surface exposes.
type Services struct {
	Reports       ports.Reports
	Interactions  ports.Interactions
	Alerts        ports.Alerts
	Analytics     ports.Analytics
	Counties      ports.Counties
	Subscriptions ports.Subscriptions
}

type Server struct {
	svc         Services
	log         *log.Logger
	corsOrigins []string
}

func New(svc Services, logger *log.Logger, corsOrigins []string) *Server {
	return &Server{svc: svc, log: logger, corsOrigins: corsOrigins}
}

// Routes returns the router with middleware and every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(openapiYAML)
	})
	r.Mount("/swagger", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	r.Route("/reports", func(rr chi.Router) {
		rr.Post("/", s.handleSubmitReport)
		rr.Get("/", s.handleListReports)
		rr.Get("/{id}", s.handleGetReport)
		rr.Post("/{id}/interact", s.handleInteract)
		rr.Get("/{id}/interact", s.handleListInteractions)
	})
	r.Get("/counties", s.handleCounties)
	r.Get("/alerts", s.handleAlerts)
	r.Get("/analytics", s.handleAnalytics)
	r.Post("/subscriptions", s.handleSubscribe)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var in domain.Submission
	if !s.decode(w, r, &in) {
		return
	}
	res, err := s.svc.Reports.Submit(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubmit(res))
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	var p struct {
		County, EventType, Status *string
		Limit, Offset             *int
	}
	err := bindQuery(r.URL.Query(), []queryParam{
		{"county", &p.County},
		{"eventType", &p.EventType},
		{"status", &p.Status},
		{"limit", &p.Limit},
		{"offset", &p.Offset},
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := s.svc.Reports.List(r.Context(), ports.ReportQuery{
		County:    deref(p.County),
		EventType: deref(p.EventType),
		Status:    deref(p.Status),
		Limit:     deref(p.Limit),
		Offset:    deref(p.Offset),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reportListResponse{
		Reports: toReports(page.Reports),
		Pagination: pagination{
			Total:   page.Total,
			Limit:   page.Limit,
			Offset:  page.Offset,
			HasMore: page.HasMore(),
		},
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Reports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReport(rep))
}

func (s *Server) handleInteract(w http.ResponseWriter, r *http.Request) {
	var in domain.InteractionInput
	if !s.decode(w, r, &in) {
		return
	}
	in.ReportID = chi.URLParam(r, "id")
	it, rep, err := s.svc.Interactions.Record(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, interactResponse{Interaction: toInteraction(it), Report: toReport(rep)})
}

func (s *Server) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Interactions.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInteractionList(sum))
}

func (s *Server) handleCounties(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Counties.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]countyJSON, 0, len(list))
	for _, c := range list {
		out = append(out, toCounty(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"counties": out})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	var p struct {
		County *string
		Active *bool
		Limit  *int
	}
	err := bindQuery(r.URL.Query(), []queryParam{
		{"county", &p.County},
		{"active", &p.Active},
		{"limit", &p.Limit},
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.svc.Alerts.List(r.Context(), ports.AlertQuery{
		County:     deref(p.County),
		ActiveOnly: deref(p.Active),
		Limit:      deref(p.Limit),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]alertJSON, 0, len(list))
	for _, a := range list {
		out = append(out, toAlert(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": out})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	var p struct {
		County, EventType *string
		Days              *int
	}
	err := bindQuery(r.URL.Query(), []queryParam{
		{"county", &p.County},
		{"eventType", &p.EventType},
		{"days", &p.Days},
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rows, err := s.svc.Analytics.Daily(r.Context(), ports.AnalyticsQuery{
		County:    deref(p.County),
		EventType: deref(p.EventType),
		Days:      deref(p.Days),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]analyticsJSON, 0, len(rows))
	for _, a := range rows {
		out = append(out, toAnalytics(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"analytics": out})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var in domain.SubscriptionInput
	if !s.decode(w, r, &in) {
		return
	}
	sub, err := s.svc.Subscriptions.Upsert(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscription(sub))
}

// decode reads a JSON body into dst, answering 400 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid JSON body"})
		return false
	}
	return true
}

// writeError maps the error taxonomy onto status codes. Store and unexpected
// failures are logged and answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: ve.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorJSON{Error: err.Error()})
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type queryParam struct {
	name string
	dest any
}

func bindQuery(q url.Values, params []queryParam) error {
	for _, p := range params {
		if err := runtime.BindQueryParameter("form", true, false, p.name, q, p.dest); err != nil {
			return domain.Invalid(p.name, "invalid value %q", q.Get(p.name))
		}
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
