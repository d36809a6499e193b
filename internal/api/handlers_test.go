package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/corebanking/digibank/internal/api"
	"github.com/corebanking/digibank/internal/domain"
	"github.com/corebanking/digibank/internal/service"
	"github.com/corebanking/digibank/internal/store/memory"
)

type testServer struct {
	t     *testing.T
	srv   *httptest.Server
	store *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st := memory.New()
	log := zap.NewNop()

	auth := service.NewAuthService(st, "0123456789abcdef0123456789abcdef", "digibank", time.Hour, "CAD", log)
	payees := service.NewPayeeService(st, log)
	transfers := service.NewTransferService(st, payees, log)
	accounts := service.NewAccountService(st)

	h := api.NewHandler(auth, accounts, payees, transfers)
	srv := httptest.NewServer(api.NewRouter(h, auth, log))
	t.Cleanup(srv.Close)

	return &testServer{t: t, srv: srv, store: st}
}

func (ts *testServer) do(method, path, token string, body any, headers map[string]string) (*http.Response, []byte) {
	ts.t.Helper()

	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.t, err)
		buf = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, buf)
	require.NoError(ts.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(ts.t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	resp.Body.Close()
	return resp, raw
}

// signup registers a user, funds their account and returns a bearer token
// along with the new account id.
func (ts *testServer) signup(email string, fundCents int64) (token string, accountID int64) {
	ts.t.Helper()

	creds := map[string]string{"email": email, "password": "hunter2hunter2"}
	resp, raw := ts.do(http.MethodPost, "/api/v1/auth/register", "", creds, nil)
	require.Equal(ts.t, http.StatusCreated, resp.StatusCode, string(raw))

	var reg struct {
		AccountID int64 `json:"account_id"`
	}
	require.NoError(ts.t, json.Unmarshal(raw, &reg))

	if fundCents > 0 {
		err := ts.store.WithinTx(context.Background(), func(tx service.Tx) error {
			return tx.AddToBalance(context.Background(), reg.AccountID, fundCents)
		})
		require.NoError(ts.t, err)
	}

	resp, raw = ts.do(http.MethodPost, "/api/v1/auth/login", "", creds, nil)
	require.Equal(ts.t, http.StatusOK, resp.StatusCode, string(raw))

	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(ts.t, json.Unmarshal(raw, &login))
	return login.AccessToken, reg.AccountID
}

func (ts *testServer) addPayee(token, email string) int64 {
	ts.t.Helper()

	resp, raw := ts.do(http.MethodPost, "/api/v1/payees", token, map[string]string{"email": email}, nil)
	require.Equal(ts.t, http.StatusCreated, resp.StatusCode, string(raw))

	var p struct {
		ID int64 `json:"id"`
	}
	require.NoError(ts.t, json.Unmarshal(raw, &p))
	return p.ID
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, raw := ts.do(http.MethodGet, "/health", "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, string(raw))
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(http.MethodGet, "/api/v1/accounts", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(http.MethodGet, "/api/v1/accounts", "garbage-token", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterConflictAndLoginFailure(t *testing.T) {
	ts := newTestServer(t)

	creds := map[string]string{"email": "dana@example.com", "password": "hunter2hunter2"}
	resp, _ := ts.do(http.MethodPost, "/api/v1/auth/register", "", creds, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = ts.do(http.MethodPost, "/api/v1/auth/register", "", creds, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	bad := map[string]string{"email": "dana@example.com", "password": "wrong-password"}
	resp, _ = ts.do(http.MethodPost, "/api/v1/auth/login", "", bad, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListAccounts(t *testing.T) {
	ts := newTestServer(t)
	token, accountID := ts.signup("dana@example.com", 5_000)

	resp, raw := ts.do(http.MethodGet, "/api/v1/accounts", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var accounts []domain.Account
	require.NoError(t, json.Unmarshal(raw, &accounts))
	require.Len(t, accounts, 1)
	require.Equal(t, accountID, accounts[0].ID)
	require.Equal(t, int64(5_000), accounts[0].BalanceCents)
}

func TestGetAccount_Foreign(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.signup("dana@example.com", 0)
	_, otherAcct := ts.signup("evan@example.com", 0)

	resp, _ := ts.do(http.MethodGet, "/api/v1/accounts/"+strconv.FormatInt(otherAcct, 10), token, nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateTransferFlow(t *testing.T) {
	ts := newTestServer(t)
	sender, senderAcct := ts.signup("dana@example.com", 10_000)
	_, receiverAcct := ts.signup("evan@example.com", 0)
	payeeID := ts.addPayee(sender, "evan@example.com")

	body := map[string]any{
		"from_account_id": senderAcct,
		"payee_id":        payeeID,
		"amount_cents":    1_500,
	}
	key := map[string]string{"Idempotency-Key": "txn-001"}

	// Fresh write.
	resp, raw := ts.do(http.MethodPost, "/api/v1/transfers", sender, body, key)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	require.NotEmpty(t, resp.Header.Get("Location"))

	var view domain.TransferView
	require.NoError(t, json.Unmarshal(raw, &view))
	require.Equal(t, senderAcct, view.FromAccountID)
	require.Equal(t, receiverAcct, view.ToAccountID)
	require.Equal(t, domain.ViewSent, view.Direction)
	require.Equal(t, "evan@example.com", view.CounterpartyEmail)

	// Replay of the same request returns the original row.
	resp, raw = ts.do(http.MethodPost, "/api/v1/transfers", sender, body, key)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var replay domain.TransferView
	require.NoError(t, json.Unmarshal(raw, &replay))
	require.Equal(t, view.ID, replay.ID)

	// Same key, different amount.
	body["amount_cents"] = 9_999
	resp, _ = ts.do(http.MethodPost, "/api/v1/transfers", sender, body, key)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateTransfer_Errors(t *testing.T) {
	ts := newTestServer(t)
	sender, senderAcct := ts.signup("dana@example.com", 1_000)
	ts.signup("evan@example.com", 0)
	payeeID := ts.addPayee(sender, "evan@example.com")

	base := map[string]any{
		"from_account_id": senderAcct,
		"payee_id":        payeeID,
		"amount_cents":    100,
	}

	// Missing Idempotency-Key header.
	resp, _ := ts.do(http.MethodPost, "/api/v1/transfers", sender, base, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Insufficient funds.
	broke := map[string]any{"from_account_id": senderAcct, "payee_id": payeeID, "amount_cents": 1_001}
	resp, _ = ts.do(http.MethodPost, "/api/v1/transfers", sender, broke, map[string]string{"Idempotency-Key": "txn-broke"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Unknown payee.
	missing := map[string]any{"from_account_id": senderAcct, "payee_id": 9999, "amount_cents": 100}
	resp, _ = ts.do(http.MethodPost, "/api/v1/transfers", sender, missing, map[string]string{"Idempotency-Key": "txn-missing"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Malformed amount.
	bad := map[string]any{"from_account_id": senderAcct, "payee_id": payeeID, "amount_cents": -1}
	resp, _ = ts.do(http.MethodPost, "/api/v1/transfers", sender, bad, map[string]string{"Idempotency-Key": "txn-bad"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListTransfersEndpoint(t *testing.T) {
	ts := newTestServer(t)
	sender, senderAcct := ts.signup("dana@example.com", 10_000)
	_, _ = ts.signup("evan@example.com", 0)
	payeeID := ts.addPayee(sender, "evan@example.com")

	for _, key := range []string{"txn-1", "txn-2", "txn-3"} {
		body := map[string]any{"from_account_id": senderAcct, "payee_id": payeeID, "amount_cents": 100}
		resp, raw := ts.do(http.MethodPost, "/api/v1/transfers", sender, body, map[string]string{"Idempotency-Key": key})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	}

	resp, raw := ts.do(http.MethodGet, "/api/v1/transfers?limit=2", sender, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page struct {
		Items      []domain.TransferView `json:"items"`
		NextCursor string                `json:"next_cursor"`
	}
	require.NoError(t, json.Unmarshal(raw, &page))
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	resp, raw = ts.do(http.MethodGet, "/api/v1/transfers?limit=2&cursor="+page.NextCursor, sender, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &page))
	require.Len(t, page.Items, 1)
	require.Empty(t, page.NextCursor)

	// Cursor and limit abuse.
	resp, _ = ts.do(http.MethodGet, "/api/v1/transfers?cursor=!!!", sender, nil, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(http.MethodGet, "/api/v1/transfers?limit=abc", sender, nil, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDisablePayeeEndpoint(t *testing.T) {
	ts := newTestServer(t)
	sender, _ := ts.signup("dana@example.com", 0)
	ts.signup("evan@example.com", 0)
	payeeID := ts.addPayee(sender, "evan@example.com")

	resp, raw := ts.do(http.MethodDelete, "/api/v1/payees/"+strconv.FormatInt(payeeID, 10), sender, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var p domain.Payee
	require.NoError(t, json.Unmarshal(raw, &p))
	require.Equal(t, domain.PayeeDisabled, p.Status)

	resp, raw = ts.do(http.MethodGet, "/api/v1/payees", sender, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `[]`, string(raw))
}

