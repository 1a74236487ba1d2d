package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"trade_gateway/internal/models"
	venues "trade_gateway/internal/modules/venues/service"
	"trade_gateway/pkg/logger"
	"trade_gateway/pkg/tracing"
)

const (
	predictionTopN      = 20
	predictionMinVolume = 1000.0

	spotMinVolume = 10.0
	spotMinChange = 2.0 // percent
	spotFullMove  = 10.0
)

// DefaultWatchList is used when the caller gives no symbols.
var DefaultWatchList = []string{"BTC/USD", "ETH/USD", "SOL/USD", "XRP/USD", "ADA/USD"}

type VenueSource interface {
	Get(name models.Venue) (venues.Venue, error)
}

type SettingsSource interface {
	Settings() models.TradingSettings
}

// Engine turns venue snapshots into suggestions.
type Engine struct {
	venues   VenueSource
	settings SettingsSource
	timeout  time.Duration
	now      func() time.Time
}

func NewEngine(v VenueSource, s SettingsSource, timeout time.Duration) *Engine {
	return &Engine{venues: v, settings: s, timeout: timeout, now: time.Now}
}

// Generate queries both venues concurrently and returns suggestions sorted by
// confidence, most confident first. Equal confidence keeps prediction-market
// results ahead and venue order inside a venue.
func (e *Engine) Generate(ctx context.Context, symbols []string) []models.Suggestion {
	span, ctx := tracing.StartSpan(ctx, "recommend.Generate")
	defer span.Finish()

	if len(symbols) == 0 {
		symbols = DefaultWatchList
	}
	tradeSize := e.settings.Settings().TradeSize

	var (
		wg         sync.WaitGroup
		prediction []models.Suggestion
		spot       []models.Suggestion
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		prediction = e.collect(ctx, models.VenuePrediction, nil, func(in models.Instrument) (models.Suggestion, bool) {
			return predictionSuggestion(in, tradeSize)
		}, predictionTopN)
	}()
	go func() {
		defer wg.Done()
		spot = e.collect(ctx, models.VenueSpot, symbols, func(in models.Instrument) (models.Suggestion, bool) {
			return spotSuggestion(in, tradeSize)
		}, 0)
	}()
	wg.Wait()

	out := make([]models.Suggestion, 0, len(prediction)+len(spot))
	out = append(out, prediction...)
	out = append(out, spot...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})

	span.SetTag("suggestions", len(out))
	return out
}

// collect fetches one venue under its own timeout; any failure gives an empty result.
func (e *Engine) collect(
	ctx context.Context,
	name models.Venue,
	symbols []string,
	build func(models.Instrument) (models.Suggestion, bool),
	limit int,
) []models.Suggestion {
	v, err := e.venues.Get(name)
	if err != nil {
		logger.Warn("recommendations: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	instruments, err := v.Instruments(ctx, symbols)
	if err != nil {
		logger.Error("Error getting %s recommendations: %v", name, err)
		return nil
	}
	if limit > 0 && len(instruments) > limit {
		instruments = instruments[:limit]
	}

	now := e.now()
	res := make([]models.Suggestion, 0, len(instruments))
	for _, in := range instruments {
		s, ok := build(in)
		if !ok {
			continue
		}
		s.ID = models.NewSuggestionID()
		s.CreatedAt = now
		res = append(res, s)
	}
	return res
}

func predictionSuggestion(in models.Instrument, tradeSize float64) (models.Suggestion, bool) {
	if in.Volume < predictionMinVolume {
		return models.Suggestion{}, false
	}
	side := models.SideNo
	if in.Price > 0.5 {
		side = models.SideYes
	}
	return models.Suggestion{
		Venue:      models.VenuePrediction,
		Symbol:     in.Symbol,
		Side:       side,
		Amount:     tradeSize,
		Price:      in.Price,
		Confidence: clamp01(math.Abs(in.Price-0.5) * 2),
		Reasoning:  fmt.Sprintf("Title: %s\nPrice: %.2f%%\nVolume: %v", in.Title, in.Price*100, in.Volume),
	}, true
}

func spotSuggestion(in models.Instrument, tradeSize float64) (models.Suggestion, bool) {
	// нулевая цена = котировки нет, иначе деление на ноль
	if in.Price <= 0 || in.Volume < spotMinVolume || math.Abs(in.Change) < spotMinChange {
		return models.Suggestion{}, false
	}
	side := models.SideSell
	if in.Change > 0 {
		side = models.SideBuy
	}
	return models.Suggestion{
		Venue:      models.VenueSpot,
		Symbol:     in.Symbol,
		Side:       side,
		Amount:     tradeSize / in.Price,
		Price:      in.Price,
		Confidence: math.Min(math.Abs(in.Change)/spotFullMove, 1),
		Reasoning: fmt.Sprintf("Symbol: %s\nPrice: $%.2f\n24h Change: %.2f%%\nVolume: %v",
			in.Symbol, in.Price, in.Change, in.Volume),
	}, true
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}
