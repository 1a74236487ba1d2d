package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"trade_gateway/internal/models"
	"trade_gateway/pkg/logger"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Kraken is the spot exchange adapter.
type Kraken struct {
	http      *resty.Client
	apiKey    string
	apiSecret []byte
	nonce     atomic.Int64
}

type KrakenConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string // base64, как выдаёт Kraken
	Timeout   time.Duration
}

func NewKraken(cfg KrakenConfig) (*Kraken, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("missing credentials")
	}
	secret, err := base64.StdEncoding.DecodeString(cfg.APISecret)
	if err != nil {
		return nil, errors.Wrap(err, "decode api secret")
	}
	k := &Kraken{
		http:      newRestClient(cfg.BaseURL, cfg.Timeout),
		apiKey:    cfg.APIKey,
		apiSecret: secret,
	}
	k.nonce.Store(time.Now().UnixMilli())
	return k, nil
}

func (k *Kraken) Name() models.Venue { return models.VenueSpot }

// krakenPair: "BTC/USD" -> "XBTUSD".
func krakenPair(symbol string) string {
	base, quote, ok := strings.Cut(strings.ToUpper(symbol), "/")
	if !ok {
		return strings.ToUpper(symbol)
	}
	if base == "BTC" {
		base = "XBT"
	}
	return base + quote
}

type krakenEnvelope[T any] struct {
	Error  []string `json:"error"`
	Result T        `json:"result"`
}

func (e krakenEnvelope[T]) err() error {
	if len(e.Error) == 0 {
		return nil
	}
	return errors.New(strings.Join(e.Error, "; "))
}

// krakenTicker: c = [last, lot], v = [today, 24h], o = today's open.
type krakenTicker struct {
	C []string `json:"c"`
	V []string `json:"v"`
	O string   `json:"o"`
}

// Quote fetches one ticker and derives the 24h change from the daily open.
func (k *Kraken) Quote(ctx context.Context, symbol string) (models.Instrument, error) {
	var out krakenEnvelope[map[string]krakenTicker]
	resp, err := k.http.R().
		SetContext(ctx).
		SetQueryParam("pair", krakenPair(symbol)).
		SetResult(&out).
		Get("/0/public/Ticker")
	if err != nil {
		return models.Instrument{}, errors.Wrapf(err, "kraken ticker %s", symbol)
	}
	if resp.IsError() {
		return models.Instrument{}, errors.Errorf("kraken ticker %s: http %d", symbol, resp.StatusCode())
	}
	if err := out.err(); err != nil {
		return models.Instrument{}, errors.Wrapf(err, "kraken ticker %s", symbol)
	}

	// запрашиваем одну пару, но ключ в ответе может быть в другом написании (XXBTZUSD)
	for _, t := range out.Result {
		if len(t.C) == 0 || len(t.V) < 2 {
			break
		}
		last, err1 := strconv.ParseFloat(t.C[0], 64)
		vol, err2 := strconv.ParseFloat(t.V[1], 64)
		open, err3 := strconv.ParseFloat(t.O, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return models.Instrument{}, errors.Errorf("kraken ticker %s: bad number", symbol)
		}
		change := 0.0
		if open > 0 {
			change = (last - open) / open * 100
		}
		return models.Instrument{
			Symbol: symbol,
			Title:  symbol,
			Price:  last,
			Change: change,
			Volume: vol,
		}, nil
	}
	return models.Instrument{}, errors.Errorf("kraken ticker %s: empty result", symbol)
}

// Instruments quotes every symbol; a symbol without a quote is logged and skipped.
func (k *Kraken) Instruments(ctx context.Context, symbols []string) ([]models.Instrument, error) {
	res := make([]models.Instrument, 0, len(symbols))
	for _, s := range symbols {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		q, err := k.Quote(ctx, s)
		if err != nil {
			logger.Warn("kraken quote unavailable: %v", err)
			continue
		}
		res = append(res, q)
	}
	return res, nil
}

func (k *Kraken) Balance(ctx context.Context) (map[string]any, error) {
	var out krakenEnvelope[map[string]string]
	if err := k.private(ctx, "/0/private/Balance", url.Values{}, &out); err != nil {
		return nil, errors.Wrap(err, "kraken balance")
	}
	if err := out.err(); err != nil {
		return nil, errors.Wrap(err, "kraken balance")
	}
	bal := make(map[string]any, len(out.Result))
	for asset, v := range out.Result {
		d, err := decimal.NewFromString(v)
		if err != nil {
			continue
		}
		bal[asset] = d.InexactFloat64()
	}
	return bal, nil
}

// PlaceOrder sends a market order for amount units of the base currency.
func (k *Kraken) PlaceOrder(ctx context.Context, s models.Suggestion) (models.OrderResult, error) {
	if !s.Side.ValidFor(models.VenueSpot) {
		return models.OrderResult{}, errors.Errorf("kraken: unsupported side %q", s.Side)
	}
	vol := decimal.NewFromFloat(s.Amount).Round(8)
	if !vol.IsPositive() {
		return models.OrderResult{}, errors.Errorf("kraken: bad volume %v", s.Amount)
	}

	form := url.Values{}
	form.Set("ordertype", "market")
	form.Set("type", string(s.Side))
	form.Set("volume", vol.String())
	form.Set("pair", krakenPair(s.Symbol))

	var out krakenEnvelope[struct {
		TxID  []string `json:"txid"`
		Descr struct {
			Order string `json:"order"`
		} `json:"descr"`
	}]
	if err := k.private(ctx, "/0/private/AddOrder", form, &out); err != nil {
		return models.OrderResult{}, errors.Wrap(err, "kraken order")
	}
	if err := out.err(); err != nil {
		return models.OrderResult{}, errors.Wrap(err, "kraken order")
	}
	res := models.OrderResult{Raw: map[string]any{"descr": out.Result.Descr.Order}}
	if len(out.Result.TxID) > 0 {
		res.OrderID = out.Result.TxID[0]
	}
	return res, nil
}

func (k *Kraken) private(ctx context.Context, path string, form url.Values, result any) error {
	nonce := strconv.FormatInt(k.nonce.Add(1), 10)
	form.Set("nonce", nonce)
	body := form.Encode()

	resp, err := k.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetHeader("API-Key", k.apiKey).
		SetHeader("API-Sign", k.sign(path, nonce, body)).
		SetBody(body).
		SetResult(result).
		Post(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return errors.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// sign: base64(HMAC-SHA512(path + SHA256(nonce + body), secret)).
func (k *Kraken) sign(path, nonce, body string) string {
	sha := sha256.Sum256([]byte(nonce + body))
	mac := hmac.New(sha512.New, k.apiSecret)
	mac.Write([]byte(path))
	mac.Write(sha[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
