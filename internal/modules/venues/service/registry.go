package service

import (
	"context"
	"fmt"
	"sync"

	"trade_gateway/internal/models"
	"trade_gateway/pkg/logger"
)

// Registry holds the configured venues. A venue that failed to initialise is
// remembered with its cause and reported as unavailable.
type Registry struct {
	venues   map[models.Venue]Venue
	initErrs map[models.Venue]error
}

func NewRegistry() *Registry {
	return &Registry{
		venues:   make(map[models.Venue]Venue),
		initErrs: make(map[models.Venue]error),
	}
}

// Register adds a venue; a non-nil err marks it unavailable instead.
func (r *Registry) Register(name models.Venue, v Venue, err error) {
	if err != nil {
		logger.Warn("%s venue not available: %v", name, err)
		r.initErrs[name] = err
		return
	}
	logger.Info("%s venue initialized", name)
	r.venues[name] = v
}

func (r *Registry) Get(name models.Venue) (Venue, error) {
	if v, ok := r.venues[name]; ok {
		return v, nil
	}
	if err, ok := r.initErrs[name]; ok {
		return nil, fmt.Errorf("%s: %w: %v", name, models.ErrVenueUnavailable, err)
	}
	return nil, fmt.Errorf("%s: %w: not configured", name, models.ErrVenueUnavailable)
}

// Available reports whether at least one venue can trade.
func (r *Registry) Available() bool { return len(r.venues) > 0 }

// Balances queries every venue in parallel; failures degrade to an empty map.
func (r *Registry) Balances(ctx context.Context) map[models.Venue]map[string]any {
	out := map[models.Venue]map[string]any{
		models.VenuePrediction: {},
		models.VenueSpot:       {},
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, v := range r.venues {
		wg.Add(1)
		go func(name models.Venue, v Venue) {
			defer wg.Done()
			bal, err := v.Balance(ctx)
			if err != nil {
				logger.Error("Error getting %s balance: %v", name, err)
				return
			}
			mu.Lock()
			out[name] = bal
			mu.Unlock()
		}(name, v)
	}
	wg.Wait()
	return out
}
