package service

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"os"
	"strconv"
	"time"

	"trade_gateway/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Kalshi лимит на одну страницу /markets.
const kalshiPageLimit = 100

// Kalshi is the binary-outcome prediction market adapter.
type Kalshi struct {
	http  *resty.Client
	keyID string
	key   *rsa.PrivateKey
}

type KalshiConfig struct {
	BaseURL        string
	KeyID          string
	PrivateKeyPath string
	Timeout        time.Duration
}

func NewKalshi(cfg KalshiConfig) (*Kalshi, error) {
	if cfg.KeyID == "" || cfg.PrivateKeyPath == "" {
		return nil, errors.New("missing credentials")
	}
	pemBytes, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, errors.Wrap(err, "read private key")
	}
	key, err := parseRSAPrivateKey(pemBytes)
	if err != nil {
		return nil, err
	}
	return newKalshi(cfg, key), nil
}

func newKalshi(cfg KalshiConfig, key *rsa.PrivateKey) *Kalshi {
	k := &Kalshi{
		http:  newRestClient(cfg.BaseURL, cfg.Timeout),
		keyID: cfg.KeyID,
		key:   key,
	}
	k.http.SetPreRequestHook(k.sign)
	return k
}

func (k *Kalshi) Name() models.Venue { return models.VenuePrediction }

// sign: base64(RSA-PSS(sha256(ts + METHOD + path))), path без query.
func (k *Kalshi) sign(_ *resty.Client, req *http.Request) error {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	msg := ts + req.Method + req.URL.Path
	digest := sha256.Sum256([]byte(msg))
	sig, err := rsa.SignPSS(rand.Reader, k.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return errors.Wrap(err, "kalshi sign")
	}
	req.Header.Set("KALSHI-ACCESS-KEY", k.keyID)
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", base64.StdEncoding.EncodeToString(sig))
	return nil
}

type kalshiMarket struct {
	Ticker    string  `json:"ticker"`
	Title     string  `json:"title"`
	Status    string  `json:"status"`
	LastPrice float64 `json:"last_price"` // cents
	YesBid    float64 `json:"yes_bid"`
	YesAsk    float64 `json:"yes_ask"`
	Volume    float64 `json:"volume"`
	Volume24h float64 `json:"volume_24h"`
}

type kalshiMarketsResp struct {
	Markets []kalshiMarket `json:"markets"`
	Cursor  string         `json:"cursor"`
}

// Instruments lists open markets in venue order.
func (k *Kalshi) Instruments(ctx context.Context, _ []string) ([]models.Instrument, error) {
	var out kalshiMarketsResp
	resp, err := k.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"status": "open",
			"limit":  strconv.Itoa(kalshiPageLimit),
		}).
		SetResult(&out).
		Get("/markets")
	if err != nil {
		return nil, errors.Wrap(err, "kalshi markets")
	}
	if resp.IsError() {
		return nil, errors.Errorf("kalshi markets: http %d: %s", resp.StatusCode(), resp.String())
	}

	res := make([]models.Instrument, 0, len(out.Markets))
	for _, m := range out.Markets {
		res = append(res, models.Instrument{
			Symbol: m.Ticker,
			Title:  m.Title,
			Price:  m.probability(),
			Volume: m.Volume,
		})
	}
	return res, nil
}

// probability переводит цену в центах в [0,1]; без сделок берём середину спреда.
func (m kalshiMarket) probability() float64 {
	switch {
	case m.LastPrice > 0:
		return m.LastPrice / 100
	case m.YesBid > 0 && m.YesAsk > 0:
		return (m.YesBid + m.YesAsk) / 200
	default:
		return 0.5
	}
}

func (k *Kalshi) Balance(ctx context.Context) (map[string]any, error) {
	var out struct {
		Balance        int64 `json:"balance"` // cents
		PortfolioValue int64 `json:"portfolio_value"`
	}
	resp, err := k.http.R().SetContext(ctx).SetResult(&out).Get("/portfolio/balance")
	if err != nil {
		return nil, errors.Wrap(err, "kalshi balance")
	}
	if resp.IsError() {
		return nil, errors.Errorf("kalshi balance: http %d: %s", resp.StatusCode(), resp.String())
	}
	return map[string]any{
		"currency":        "USD",
		"balance":         decimal.New(out.Balance, -2).InexactFloat64(),
		"portfolio_value": decimal.New(out.PortfolioValue, -2).InexactFloat64(),
	}, nil
}

type kalshiOrderReq struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Action        string `json:"action"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Count         int64  `json:"count"`
	BuyMaxCost    int64  `json:"buy_max_cost,omitempty"`
}

// PlaceOrder buys amount contracts of the suggested side at market.
func (k *Kalshi) PlaceOrder(ctx context.Context, s models.Suggestion) (models.OrderResult, error) {
	if !s.Side.ValidFor(models.VenuePrediction) {
		return models.OrderResult{}, errors.Errorf("kalshi: unsupported side %q", s.Side)
	}
	count := decimal.NewFromFloat(s.Amount).Floor().IntPart()
	if count < 1 {
		return models.OrderResult{}, errors.Errorf("kalshi: amount %v is less than one contract", s.Amount)
	}

	body := kalshiOrderReq{
		Ticker:        s.Symbol,
		ClientOrderID: uuid.NewString(),
		Action:        "buy",
		Side:          string(s.Side),
		Type:          "market",
		Count:         count,
		// верхняя граница: 100 центов за контракт
		BuyMaxCost: count * 100,
	}

	var out struct {
		Order struct {
			OrderID string `json:"order_id"`
			Status  string `json:"status"`
		} `json:"order"`
	}
	resp, err := k.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/portfolio/orders")
	if err != nil {
		return models.OrderResult{}, errors.Wrap(err, "kalshi order")
	}
	if resp.IsError() {
		return models.OrderResult{}, errors.Errorf("kalshi order: http %d: %s", resp.StatusCode(), resp.String())
	}
	return models.OrderResult{
		OrderID: out.Order.OrderID,
		Raw:     map[string]any{"status": out.Order.Status, "count": count},
	}, nil
}

func parseRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("private key: no PEM block")
	}
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return k, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "private key")
	}
	k, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key: not RSA")
	}
	return k, nil
}
