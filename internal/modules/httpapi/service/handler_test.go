package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"trade_gateway/internal/models"
	authsvc "trade_gateway/internal/modules/auth/service"
	tradingsvc "trade_gateway/internal/modules/trading/service"
	venues "trade_gateway/internal/modules/venues/service"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeRecommender struct {
	got []string
}

func (f *fakeRecommender) Generate(_ context.Context, symbols []string) []models.Suggestion {
	f.got = symbols
	return []models.Suggestion{
		{ID: "trade_a", Venue: models.VenuePrediction, Symbol: "M1", Side: models.SideYes, Amount: 100, Price: 0.8, Confidence: 0.6},
		{ID: "trade_b", Venue: models.VenueSpot, Symbol: "BTC/USD", Side: models.SideBuy, Amount: 0.002, Price: 50000, Confidence: 0.5},
	}
}

type fakeVenue struct {
	name  models.Venue
	calls atomic.Int32
}

func (f *fakeVenue) Name() models.Venue { return f.name }
func (f *fakeVenue) Instruments(context.Context, []string) ([]models.Instrument, error) {
	return nil, nil
}
func (f *fakeVenue) Balance(context.Context) (map[string]any, error) {
	return map[string]any{"balance": 10.5}, nil
}
func (f *fakeVenue) PlaceOrder(context.Context, models.Suggestion) (models.OrderResult, error) {
	f.calls.Add(1)
	return models.OrderResult{OrderID: "ord-1"}, nil
}

type fakeBalances struct{}

func (fakeBalances) Balances(context.Context) map[models.Venue]map[string]any {
	return map[models.Venue]map[string]any{
		models.VenuePrediction: {"balance": 10.5},
		models.VenueSpot:       {},
	}
}

type apiFixture struct {
	router   *gin.Engine
	sessions *authsvc.Sessions
	manager  *tradingsvc.Manager
	kalshi   *fakeVenue
	rec      *fakeRecommender
	hub      *Hub
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	sessions := authsvc.NewSessions(authsvc.NewBcryptVerifier(map[string]string{"admin": string(h)}))

	kalshi := &fakeVenue{name: models.VenuePrediction}
	reg := venues.NewRegistry()
	reg.Register(models.VenuePrediction, kalshi, nil)

	settings := tradingsvc.NewSettings(models.TradingSettings{TradeSize: 100, ConfirmTrades: true, Enabled: true})
	hub := NewHub()
	manager := tradingsvc.NewManager(reg, settings, time.Second, hub)
	rec := &fakeRecommender{}

	r := gin.New()
	r.Use(Recovery(), CORS())
	NewHandler(sessions, rec, manager, settings, fakeBalances{}, hub).Register(r)

	return &apiFixture{router: r, sessions: sessions, manager: manager, kalshi: kalshi, rec: rec, hub: hub}
}

func (f *apiFixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) login(t *testing.T) string {
	t.Helper()
	w := f.do(http.MethodPost, "/api/auth/login", "", `{"username":"admin","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "admin", body["user"])
	return body["token"].(string)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAPI(t)

	w := f.do(http.MethodPost, "/api/auth/login", "", `{"username":"admin","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode(t, w)
	assert.NotContains(t, body, "token")

	w = f.do(http.MethodGet, "/api/trading/config", "never-issued", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthorized", decode(t, w)["error"])
}

func TestLoginInvalidJSON(t *testing.T) {
	f := newAPI(t)
	w := f.do(http.MethodPost, "/api/auth/login", "", `{"username":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid JSON", decode(t, w)["error"])
}

func TestVerify(t *testing.T) {
	f := newAPI(t)

	w := f.do(http.MethodGet, "/api/auth/verify", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["authenticated"])

	token := f.login(t)
	w = f.do(http.MethodGet, "/api/auth/verify", token, "")
	body := decode(t, w)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "admin", body["user"])
}

func TestRecommendations(t *testing.T) {
	f := newAPI(t)
	token := f.login(t)

	w := f.do(http.MethodGet, "/api/trading/recommendations?symbols=btc/usd,%20eth/usd", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 2, body["count"])
	assert.NotEmpty(t, body["timestamp"])
	list := body["suggestions"].([]any)
	first := list[0].(map[string]any)
	assert.Equal(t, "prediction-market", first["venue"])
	assert.Equal(t, "yes", first["side"])
	assert.Equal(t, []string{"BTC/USD", "ETH/USD"}, f.rec.got)
}

func TestBalances(t *testing.T) {
	f := newAPI(t)
	token := f.login(t)

	w := f.do(http.MethodGet, "/api/trading/balances", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	bal := decode(t, w)["balances"].(map[string]any)
	assert.Contains(t, bal, "prediction-market")
	assert.Contains(t, bal, "spot-exchange")
}

func TestConfigUpdate(t *testing.T) {
	f := newAPI(t)
	token := f.login(t)

	w := f.do(http.MethodPost, "/api/trading/config", token, `{"trade_size":250,"confirm_trades":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "updated", body["status"])
	cfg := body["config"].(map[string]any)
	assert.EqualValues(t, 250, cfg["trade_size"])
	assert.Equal(t, false, cfg["confirm_trades"])
	assert.Equal(t, true, cfg["enabled"])

	w = f.do(http.MethodPost, "/api/trading/config", token, `{"trade_size":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/trading/config", token, `{"leverage":10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/trading/config", token, `{"enabled":"yes"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/api/trading/config", token, "")
	cfg = decode(t, w)["config"].(map[string]any)
	assert.EqualValues(t, 250, cfg["trade_size"])
}

func TestExecutePendingThenConfirm(t *testing.T) {
	f := newAPI(t)
	token := f.login(t)

	w := f.do(http.MethodPost, "/api/trading/execute", token,
		`{"suggestion":{"market":"kalshi","symbol":"M1","side":"yes","amount":10,"id":"client-chosen"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "pending", body["status"])
	id := body["trade_id"].(string)
	assert.True(t, strings.HasPrefix(id, "trade_"))
	assert.Zero(t, f.kalshi.calls.Load())

	w = f.do(http.MethodGet, "/api/trading/pending", token, "")
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = f.do(http.MethodPost, "/api/trading/confirm", token, fmt.Sprintf(`{"trade_id":%q}`, id))
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, "executed", body["status"])
	assert.Equal(t, id, body["trade_id"])
	assert.Equal(t, "ord-1", body["order_id"])
	assert.EqualValues(t, 1, f.kalshi.calls.Load())

	w = f.do(http.MethodPost, "/api/trading/confirm", token, fmt.Sprintf(`{"trade_id":%q}`, id))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Trade not found", decode(t, w)["error"])

	w = f.do(http.MethodGet, "/api/trading/history", token, "")
	assert.EqualValues(t, 1, decode(t, w)["count"])
}

func TestExecuteValidation(t *testing.T) {
	f := newAPI(t)
	token := f.login(t)

	cases := []string{
		`{"suggestion":{"side":"yes"}}`,
		`{"suggestion":{"venue":"kraken","symbol":"BTC/USD","side":"yes"}}`,
		`{"suggestion":{"venue":"nasdaq","symbol":"AAPL","side":"buy"}}`,
		`{"suggestion":{"symbol":"M1","amount":-1}}`,
		`{"suggestion":{"symbol":"M1","confidence":1.5}}`,
	}
	for _, body := range cases {
		w := f.do(http.MethodPost, "/api/trading/execute", token, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Empty(t, f.manager.PendingList())
}

func TestCancel(t *testing.T) {
	f := newAPI(t)
	token := f.login(t)

	w := f.do(http.MethodPost, "/api/trading/execute", token, `{"suggestion":{"symbol":"M1"}}`)
	id := decode(t, w)["trade_id"].(string)

	w = f.do(http.MethodPost, "/api/trading/cancel", token, fmt.Sprintf(`{"trade_id":%q}`, id))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", decode(t, w)["status"])

	w = f.do(http.MethodPost, "/api/trading/cancel", token, fmt.Sprintf(`{"trade_id":%q}`, id))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodPost, "/api/trading/confirm", token, `{"trade_id":"trade_never"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodPost, "/api/trading/cancel", token, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSAndNotFound(t *testing.T) {
	f := newAPI(t)

	w := f.do(http.MethodOptions, "/api/trading/execute", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))

	w = f.do(http.MethodOptions, "/whatever", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/api/unknown", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not found", decode(t, w)["error"])
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStreamDeliversEvents(t *testing.T) {
	f := newAPI(t)
	token := f.login(t)

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/trading/stream?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	w := f.do(http.MethodPost, "/api/trading/execute", token, `{"suggestion":{"symbol":"M1"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev models.TradeEvent
	require.NoError(t, sonic.Unmarshal(msg, &ev))
	assert.Equal(t, models.StatusPending, ev.Status)
	assert.Equal(t, "M1", ev.Suggestion.Symbol)
}

func TestStreamRequiresToken(t *testing.T) {
	f := newAPI(t)
	w := f.do(http.MethodGet, "/api/trading/stream", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
