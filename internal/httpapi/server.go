package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"threesisters/members-service/internal/membership"

	"github.com/shopspring/decimal"
)

const maxWebhookBody = 1 << 20

type CountReader interface {
	Current(ctx context.Context) (decimal.Decimal, error)
}

// SignatureVerifier reports whether a webhook body was signed by the
// payment processor. A nil verifier accepts everything.
type SignatureVerifier func(r *http.Request, body []byte) bool

type Server struct {
	processor *membership.Processor
	counts    CountReader
	verify    SignatureVerifier
	logger    *slog.Logger
	mux       *http.ServeMux
}

func NewServer(processor *membership.Processor, counts CountReader, verify SignatureVerifier, logger *slog.Logger) *Server {
	s := &Server{
		processor: processor,
		counts:    counts,
		verify:    verify,
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/webhooks/square", s.squareWebhook)
	s.mux.HandleFunc("GET /members/count", s.memberCount)
	s.mux.HandleFunc("GET /healthz", s.health)
}

func (s *Server) HandleFunc(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) squareWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if s.verify != nil && !s.verify(r, body) {
		s.logger.Warn("webhook signature rejected", "remote", r.RemoteAddr)
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	res, err := s.processor.Handle(r.Context(), body)
	if err != nil {
		s.webhookFailure(w, res, err)
		return
	}

	log := s.logger.With("event_type", res.Event.Type, "reference_id", res.Event.ReferenceID())
	switch res.Outcome {
	case membership.OutcomeIgnored:
		log.Debug("webhook ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	case membership.OutcomeNoMembership:
		log.Info("no membership in webhook")
		writeJSON(w, http.StatusOK, map[string]string{"status": "no valid membership found"})
	case membership.OutcomeDuplicate:
		log.Info("duplicate installment ignored", "customer_id", res.Event.CustomerID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate ignored"})
	default:
		log.Info("member count updated", "kind", res.Decision.Kind, "increment", res.Decision.Amount, "total", res.Total)
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "member count updated",
			"increment": res.Decision.Amount.String(),
			"total":     res.Total.String(),
		})
	}
}

func (s *Server) webhookFailure(w http.ResponseWriter, res membership.Result, err error) {
	switch {
	case errors.Is(err, membership.ErrMalformedPayload):
		s.logger.Warn("malformed webhook", "err", err)
		writeError(w, http.StatusBadRequest, "invalid payload")
	case errors.Is(err, membership.ErrUpstreamFetch):
		s.logger.Error("webhook upstream fetch", "order_id", res.Event.OrderID, "err", err)
		writeError(w, http.StatusInternalServerError, "upstream fetch failed")
	default:
		s.logger.Error("webhook database update", "reference_id", res.Event.ReferenceID(), "err", err)
		writeError(w, http.StatusInternalServerError, "database update failed")
	}
}

func (s *Server) memberCount(w http.ResponseWriter, r *http.Request) {
	total, err := s.counts.Current(r.Context())
	if err != nil {
		s.logger.Error("read member count", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"total": total.String()})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
