package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/corebanking/digibank/internal/domain"
	"github.com/corebanking/digibank/internal/service"
)

const idempotencyKeyHeader = "Idempotency-Key"

type Handler struct {
	auth      *service.AuthService
	accounts  *service.AccountService
	payees    *service.PayeeService
	transfers *service.TransferService
}

func NewHandler(auth *service.AuthService, accounts *service.AccountService, payees *service.PayeeService, transfers *service.TransferService) *Handler {
	return &Handler{auth: auth, accounts: accounts, payees: payees, transfers: transfers}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	result, err := h.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	uid, ok := ActorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	accounts, err := h.accounts.List(r.Context(), uid)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	respondWithJSON(w, http.StatusOK, accounts)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	uid, ok := ActorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	account, err := h.accounts.Get(r.Context(), uid, id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, account)
}

type addPayeeRequest struct {
	Email string `json:"email"`
	Label string `json:"label"`
}

func (h *Handler) AddPayee(w http.ResponseWriter, r *http.Request) {
	uid, ok := ActorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	var req addPayeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	payee, err := h.payees.Add(r.Context(), uid, req.Email, req.Label)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, payee)
}

func (h *Handler) ListPayees(w http.ResponseWriter, r *http.Request) {
	uid, ok := ActorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	payees, err := h.payees.List(r.Context(), uid)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if payees == nil {
		payees = []domain.Payee{}
	}
	respondWithJSON(w, http.StatusOK, payees)
}

func (h *Handler) DisablePayee(w http.ResponseWriter, r *http.Request) {
	uid, ok := ActorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid payee id")
		return
	}

	payee, err := h.payees.Disable(r.Context(), uid, id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, payee)
}

type createTransferRequest struct {
	FromAccountID int64  `json:"from_account_id"`
	PayeeID       int64  `json:"payee_id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
}

func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	uid, ok := ActorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	idempotencyKey := r.Header.Get(idempotencyKeyHeader)
	if idempotencyKey == "" {
		respondWithError(w, http.StatusBadRequest, "missing Idempotency-Key header")
		return
	}

	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	view, fresh, err := h.transfers.Create(r.Context(), service.CreateTransferInput{
		ActorUserID:    uid,
		IdempotencyKey: idempotencyKey,
		FromAccountID:  req.FromAccountID,
		PayeeID:        req.PayeeID,
		AmountCents:    req.AmountCents,
		Currency:       req.Currency,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	if fresh {
		w.Header().Set("Location", fmt.Sprintf("/api/v1/transfers/%d", view.ID))
		respondWithJSON(w, http.StatusCreated, view)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	uid, ok := ActorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	page, err := h.transfers.List(r.Context(), uid, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

// respondServiceError maps the domain error taxonomy onto HTTP statuses.
// Conflict messages stay intentionally vague.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidCursor):
		respondWithError(w, http.StatusBadRequest, "invalid cursor")
	case errors.Is(err, domain.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInsufficientFunds):
		respondWithError(w, http.StatusUnprocessableEntity, "insufficient funds")
	case errors.Is(err, domain.ErrConflictingReplay):
		respondWithError(w, http.StatusConflict, "Idempotency-Key was already used with a different request")
	case errors.Is(err, domain.ErrKeyAlreadyUsed):
		respondWithError(w, http.StatusConflict, "Idempotency-Key was already used")
	case errors.Is(err, domain.ErrEmailTaken), errors.Is(err, domain.ErrDuplicate):
		respondWithError(w, http.StatusConflict, "conflict")
	case errors.Is(err, domain.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
