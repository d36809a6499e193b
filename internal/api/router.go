package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter wires the full HTTP surface. Everything under /api/v1 except auth
// requires a bearer token.
func NewRouter(h *Handler, verifier TokenVerifier, log *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(Instrument(log))

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	apiV1.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)

	authed := apiV1.NewRoute().Subrouter()
	authed.Use(RequireAuth(verifier))
	authed.HandleFunc("/accounts", h.ListAccounts).Methods(http.MethodGet)
	authed.HandleFunc("/accounts/{id}", h.GetAccount).Methods(http.MethodGet)
	authed.HandleFunc("/payees", h.AddPayee).Methods(http.MethodPost)
	authed.HandleFunc("/payees", h.ListPayees).Methods(http.MethodGet)
	authed.HandleFunc("/payees/{id}", h.DisablePayee).Methods(http.MethodDelete)
	authed.HandleFunc("/transfers", h.CreateTransfer).Methods(http.MethodPost)
	authed.HandleFunc("/transfers", h.ListTransfers).Methods(http.MethodGet)

	return r
}
