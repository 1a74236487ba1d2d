package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"trade_gateway/internal/models"
	venues "trade_gateway/internal/modules/venues/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVenue struct {
	name        models.Venue
	instruments []models.Instrument
	err         error
	block       bool
	gotSymbols  []string
}

func (f *fakeVenue) Name() models.Venue { return f.name }

func (f *fakeVenue) Instruments(ctx context.Context, symbols []string) ([]models.Instrument, error) {
	f.gotSymbols = symbols
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.instruments, f.err
}

func (f *fakeVenue) Balance(context.Context) (map[string]any, error) { return nil, nil }

func (f *fakeVenue) PlaceOrder(context.Context, models.Suggestion) (models.OrderResult, error) {
	return models.OrderResult{}, nil
}

type fakeSource map[models.Venue]venues.Venue

func (f fakeSource) Get(name models.Venue) (venues.Venue, error) {
	if v, ok := f[name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%s: %w", name, models.ErrVenueUnavailable)
}

type fixedSettings float64

func (f fixedSettings) Settings() models.TradingSettings {
	return models.TradingSettings{TradeSize: float64(f), ConfirmTrades: true, Enabled: true}
}

func newEngine(src fakeSource) *Engine {
	return NewEngine(src, fixedSettings(100), time.Second)
}

func TestPredictionScenario(t *testing.T) {
	e := newEngine(fakeSource{
		models.VenuePrediction: &fakeVenue{name: models.VenuePrediction, instruments: []models.Instrument{
			{Symbol: "M1", Title: "X", Price: 0.8, Volume: 5000},
		}},
	})

	got := e.Generate(context.Background(), nil)
	require.Len(t, got, 1)
	s := got[0]
	assert.Equal(t, models.VenuePrediction, s.Venue)
	assert.Equal(t, "M1", s.Symbol)
	assert.Equal(t, models.SideYes, s.Side)
	assert.InDelta(t, 0.6, s.Confidence, 1e-9)
	assert.InDelta(t, 100, s.Amount, 1e-9)
	assert.Equal(t, "Title: X\nPrice: 80.00%\nVolume: 5000", s.Reasoning)
	assert.Contains(t, s.ID, "trade_")
	assert.False(t, s.CreatedAt.IsZero())
}

func TestSpotScenario(t *testing.T) {
	spot := &fakeVenue{name: models.VenueSpot, instruments: []models.Instrument{
		{Symbol: "BTC/USD", Price: 50000, Change: 5, Volume: 100},
	}}
	e := newEngine(fakeSource{models.VenueSpot: spot})

	got := e.Generate(context.Background(), nil)
	require.Len(t, got, 1)
	s := got[0]
	assert.Equal(t, models.SideBuy, s.Side)
	assert.InDelta(t, 0.002, s.Amount, 1e-12)
	assert.InDelta(t, 0.5, s.Confidence, 1e-9)
	assert.Equal(t, "Symbol: BTC/USD\nPrice: $50000.00\n24h Change: 5.00%\nVolume: 100", s.Reasoning)
	assert.Equal(t, DefaultWatchList, spot.gotSymbols)
}

func TestSymbolsOverride(t *testing.T) {
	spot := &fakeVenue{name: models.VenueSpot}
	e := newEngine(fakeSource{models.VenueSpot: spot})

	e.Generate(context.Background(), []string{"DOT/USD"})
	assert.Equal(t, []string{"DOT/USD"}, spot.gotSymbols)
}

func TestPredictionFilters(t *testing.T) {
	var many []models.Instrument
	// первые 20: объём ниже порога у всех, кроме одного
	for i := 0; i < 20; i++ {
		vol := 999.0
		if i == 3 {
			vol = 1000
		}
		many = append(many, models.Instrument{Symbol: fmt.Sprintf("M%d", i), Price: 0.1, Volume: vol})
	}
	// 21-й проходит фильтр, но обрезается лимитом
	many = append(many, models.Instrument{Symbol: "M20", Price: 0.99, Volume: 1e6})

	e := newEngine(fakeSource{
		models.VenuePrediction: &fakeVenue{name: models.VenuePrediction, instruments: many},
	})
	got := e.Generate(context.Background(), nil)
	require.Len(t, got, 1)
	assert.Equal(t, "M3", got[0].Symbol)
	assert.Equal(t, models.SideNo, got[0].Side)
	assert.InDelta(t, 0.8, got[0].Confidence, 1e-9)
}

func TestPriceAtHalfIsNo(t *testing.T) {
	s, ok := predictionSuggestion(models.Instrument{Symbol: "M", Price: 0.5, Volume: 1000}, 10)
	require.True(t, ok)
	assert.Equal(t, models.SideNo, s.Side)
	assert.Zero(t, s.Confidence)
}

func TestSpotFilters(t *testing.T) {
	cases := []struct {
		name string
		in   models.Instrument
		ok   bool
	}{
		{"small change", models.Instrument{Symbol: "A", Price: 10, Change: 1.99, Volume: 100}, false},
		{"negative small change", models.Instrument{Symbol: "A", Price: 10, Change: -1.5, Volume: 100}, false},
		{"low volume", models.Instrument{Symbol: "A", Price: 10, Change: 5, Volume: 9.9}, false},
		{"zero price", models.Instrument{Symbol: "A", Price: 0, Change: 5, Volume: 100}, false},
		{"edge", models.Instrument{Symbol: "A", Price: 10, Change: -2, Volume: 10}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := spotSuggestion(tc.in, 100)
			assert.Equal(t, tc.ok, ok)
		})
	}
}

func TestSpotSellAndSaturation(t *testing.T) {
	s, ok := spotSuggestion(models.Instrument{Symbol: "SOL/USD", Price: 20, Change: -25, Volume: 1000}, 100)
	require.True(t, ok)
	assert.Equal(t, models.SideSell, s.Side)
	assert.Equal(t, 1.0, s.Confidence)
	assert.InDelta(t, 5, s.Amount, 1e-9)
}

func TestGenerateSortedAndBounded(t *testing.T) {
	e := newEngine(fakeSource{
		models.VenuePrediction: &fakeVenue{name: models.VenuePrediction, instruments: []models.Instrument{
			{Symbol: "P1", Price: 0.6, Volume: 2000},  // 0.2
			{Symbol: "P2", Price: 0.05, Volume: 2000}, // 0.9
			{Symbol: "P3", Price: 0.75, Volume: 2000}, // 0.5
		}},
		models.VenueSpot: &fakeVenue{name: models.VenueSpot, instruments: []models.Instrument{
			{Symbol: "S1", Price: 1, Change: 5, Volume: 100},  // 0.5
			{Symbol: "S2", Price: 1, Change: -3, Volume: 100}, // 0.3
		}},
	})

	got := e.Generate(context.Background(), nil)
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Confidence, got[i].Confidence)
	}
	for _, s := range got {
		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
	}

	var order []string
	for _, s := range got {
		order = append(order, s.Symbol)
	}
	// равная уверенность: сначала prediction-market
	assert.Equal(t, []string{"P2", "P3", "S1", "S2", "P1"}, order)
}

func TestVenueFailureIsIsolated(t *testing.T) {
	e := newEngine(fakeSource{
		models.VenuePrediction: &fakeVenue{name: models.VenuePrediction, err: errors.New("boom")},
		models.VenueSpot: &fakeVenue{name: models.VenueSpot, instruments: []models.Instrument{
			{Symbol: "ETH/USD", Price: 3000, Change: 4, Volume: 50},
		}},
	})

	got := e.Generate(context.Background(), nil)
	require.Len(t, got, 1)
	assert.Equal(t, "ETH/USD", got[0].Symbol)
}

func TestUnavailableVenuesGiveEmptyResult(t *testing.T) {
	e := newEngine(fakeSource{})
	assert.Empty(t, e.Generate(context.Background(), nil))
}

func TestSlowVenueIsBoundedByTimeout(t *testing.T) {
	e := NewEngine(fakeSource{
		models.VenuePrediction: &fakeVenue{name: models.VenuePrediction, block: true},
		models.VenueSpot: &fakeVenue{name: models.VenueSpot, instruments: []models.Instrument{
			{Symbol: "BTC/USD", Price: 50000, Change: 5, Volume: 100},
		}},
	}, fixedSettings(100), 50*time.Millisecond)

	start := time.Now()
	got := e.Generate(context.Background(), nil)
	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, got, 1)
	assert.Equal(t, "BTC/USD", got[0].Symbol)
}
