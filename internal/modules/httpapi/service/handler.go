package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"trade_gateway/internal/models"
	authsvc "trade_gateway/internal/modules/auth/service"
	"trade_gateway/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Sessions interface {
	Login(username, password string) (string, error)
	User(token string) (string, error)
}

type Recommender interface {
	Generate(ctx context.Context, symbols []string) []models.Suggestion
}

type Lifecycle interface {
	Submit(ctx context.Context, s models.Suggestion) (models.ExecutedTrade, error)
	Confirm(ctx context.Context, id string) (models.ExecutedTrade, error)
	Cancel(ctx context.Context, id string) error
	PendingList() []models.Suggestion
	Executed() []models.ExecutedTrade
}

type SettingsStore interface {
	Settings() models.TradingSettings
	Update(p models.TradingSettingsPatch) (models.TradingSettings, error)
}

type BalanceSource interface {
	Balances(ctx context.Context) map[models.Venue]map[string]any
}

// Handler serves the /api surface.
type Handler struct {
	sessions    Sessions
	recommender Recommender
	lifecycle   Lifecycle
	settings    SettingsStore
	balances    BalanceSource
	hub         *Hub
}

func NewHandler(
	sessions Sessions,
	recommender Recommender,
	lifecycle Lifecycle,
	settings SettingsStore,
	balances BalanceSource,
	hub *Hub,
) *Handler {
	return &Handler{
		sessions:    sessions,
		recommender: recommender,
		lifecycle:   lifecycle,
		settings:    settings,
		balances:    balances,
		hub:         hub,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	r.POST("/api/auth/login", h.login)
	r.GET("/api/auth/verify", h.verify)

	api := r.Group("/api/trading", RequireAuth(h.sessions, false))
	api.GET("/recommendations", h.recommendations)
	api.GET("/balances", h.getBalances)
	api.GET("/config", h.getConfig)
	api.POST("/config", h.updateConfig)
	api.POST("/execute", h.execute)
	api.POST("/confirm", h.confirm)
	api.POST("/cancel", h.cancel)
	api.GET("/pending", h.pending)
	api.GET("/history", h.history)

	r.GET("/api/trading/stream", RequireAuth(h.sessions, true), h.stream)

	r.NoRoute(func(c *gin.Context) {
		respond(c, http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

func timestamp() string { return time.Now().Format(time.RFC3339) }

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		fail(c, err)
		return
	}
	token, err := h.sessions.Login(req.Username, req.Password)
	if err != nil {
		respond(c, http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	respond(c, http.StatusOK, gin.H{"status": "success", "token": token, "user": req.Username})
}

func (h *Handler) verify(c *gin.Context) {
	user, err := h.sessions.User(authsvc.BearerToken(c.GetHeader("Authorization")))
	if err != nil {
		respond(c, http.StatusOK, gin.H{"authenticated": false})
		return
	}
	respond(c, http.StatusOK, gin.H{"authenticated": true, "user": user})
}

func (h *Handler) recommendations(c *gin.Context) {
	var symbols []string
	if raw := c.Query("symbols"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, strings.ToUpper(s))
			}
		}
	}

	suggestions := h.recommender.Generate(c.Request.Context(), symbols)
	respond(c, http.StatusOK, gin.H{
		"suggestions": suggestions,
		"count":       len(suggestions),
		"timestamp":   timestamp(),
	})
}

func (h *Handler) getBalances(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"balances": h.balances.Balances(c.Request.Context())})
}

func (h *Handler) getConfig(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"config": h.settings.Settings()})
}

var configKeys = map[string]bool{"trade_size": true, "confirm_trades": true, "enabled": true}

func (h *Handler) updateConfig(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		fail(c, errInvalidJSON)
		return
	}
	var keys map[string]any
	if len(raw) > 0 {
		if err := unmarshal(raw, &keys); err != nil {
			fail(c, err)
			return
		}
	}
	for k := range keys {
		if !configKeys[k] {
			fail(c, fmt.Errorf("%w: unknown config key %q", models.ErrInvalidInput, k))
			return
		}
	}

	var patch models.TradingSettingsPatch
	if len(raw) > 0 {
		if err := unmarshal(raw, &patch); err != nil {
			fail(c, fmt.Errorf("%w: bad config value", models.ErrInvalidInput))
			return
		}
	}
	cfg, err := h.settings.Update(patch)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"status": "updated", "config": cfg})
}

// suggestionInput mirrors Suggestion with optional fields; "market" is the
// legacy name of "venue".
type suggestionInput struct {
	Venue      string   `json:"venue"`
	Market     string   `json:"market"`
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	Amount     *float64 `json:"amount"`
	Price      *float64 `json:"price"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

type executeRequest struct {
	Suggestion suggestionInput `json:"suggestion"`
}

// toSuggestion fills defaults and always assigns a fresh id.
func (in suggestionInput) toSuggestion(tradeSize float64) (models.Suggestion, error) {
	rawVenue := in.Venue
	if rawVenue == "" {
		rawVenue = in.Market
	}
	venue := models.VenuePrediction
	if rawVenue != "" {
		v, ok := models.ParseVenue(rawVenue)
		if !ok {
			return models.Suggestion{}, fmt.Errorf("%w: unknown venue %q", models.ErrInvalidInput, rawVenue)
		}
		venue = v
	}

	side := models.Side(strings.ToLower(in.Side))
	if side == "" && venue == models.VenuePrediction {
		side = models.SideYes
	}

	s := models.Suggestion{
		ID:         models.NewSuggestionID(),
		Venue:      venue,
		Symbol:     strings.TrimSpace(in.Symbol),
		Side:       side,
		Amount:     tradeSize,
		Price:      0.5,
		Confidence: 0.5,
		Reasoning:  in.Reasoning,
		CreatedAt:  time.Now(),
	}
	if in.Amount != nil {
		s.Amount = *in.Amount
	}
	if in.Price != nil {
		s.Price = *in.Price
	}
	if in.Confidence != nil {
		s.Confidence = *in.Confidence
	}
	return s, s.Validate()
}

func (h *Handler) execute(c *gin.Context) {
	var req executeRequest
	if err := bind(c, &req); err != nil {
		fail(c, err)
		return
	}
	s, err := req.Suggestion.toSuggestion(h.settings.Settings().TradeSize)
	if err != nil {
		fail(c, err)
		return
	}

	res, err := h.lifecycle.Submit(c.Request.Context(), s)
	if err != nil {
		fail(c, err)
		return
	}
	body := tradeBody(s.ID, res)
	if res.Status == models.StatusPending {
		body["message"] = "Trade pending confirmation"
	}
	logger.Info("user %s submitted %s: %s", c.GetString(userKey), s.ID, res.Status)
	respond(c, http.StatusOK, body)
}

type tradeRequest struct {
	TradeID string `json:"trade_id"`
}

func (r tradeRequest) validate() error {
	if r.TradeID == "" {
		return fmt.Errorf("%w: trade_id is required", models.ErrInvalidInput)
	}
	return nil
}

func (h *Handler) confirm(c *gin.Context) {
	var req tradeRequest
	if err := bind(c, &req); err != nil {
		fail(c, err)
		return
	}
	if err := req.validate(); err != nil {
		fail(c, err)
		return
	}
	res, err := h.lifecycle.Confirm(c.Request.Context(), req.TradeID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, tradeBody(req.TradeID, res))
}

func (h *Handler) cancel(c *gin.Context) {
	var req tradeRequest
	if err := bind(c, &req); err != nil {
		fail(c, err)
		return
	}
	if err := req.validate(); err != nil {
		fail(c, err)
		return
	}
	if err := h.lifecycle.Cancel(c.Request.Context(), req.TradeID); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"status": models.StatusCancelled, "trade_id": req.TradeID})
}

func tradeBody(id string, res models.ExecutedTrade) gin.H {
	body := gin.H{"status": res.Status, "trade_id": id}
	if res.OrderID != "" {
		body["order_id"] = res.OrderID
	}
	if res.Error != "" {
		body["error"] = res.Error
	}
	return body
}

func (h *Handler) pending(c *gin.Context) {
	trades := h.lifecycle.PendingList()
	respond(c, http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (h *Handler) history(c *gin.Context) {
	trades := h.lifecycle.Executed()
	respond(c, http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (h *Handler) stream(c *gin.Context) {
	if err := h.hub.Serve(c.Writer, c.Request); err != nil {
		logger.Warn("stream upgrade: %v", err)
	}
}
