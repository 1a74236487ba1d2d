package service

import (
	"context"
	"sync"
	"time"

	"trade_gateway/internal/models"
	"trade_gateway/pkg/db"
	"trade_gateway/pkg/logger"

	"github.com/bytedance/sonic"
)

const (
	journalQueueSize = 256
	writeTimeout     = 5 * time.Second
)

const createTable = `
CREATE TABLE IF NOT EXISTS trade_events (
	id          BIGSERIAL PRIMARY KEY,
	trade_id    TEXT        NOT NULL,
	status      TEXT        NOT NULL,
	venue       TEXT        NOT NULL,
	symbol      TEXT        NOT NULL,
	order_id    TEXT        NOT NULL DEFAULT '',
	error       TEXT        NOT NULL DEFAULT '',
	payload     JSONB       NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
)`

const insertEvent = `
INSERT INTO trade_events (trade_id, status, venue, symbol, order_id, error, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Journal appends terminal trade events to Postgres. It is write-only:
// nothing in the gateway reads the table back.
type Journal struct {
	tx    db.TxManager
	queue chan models.TradeEvent

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewJournal with a nil tx manager gives a disabled journal.
func NewJournal(tx db.TxManager) *Journal {
	return &Journal{
		tx:    tx,
		queue: make(chan models.TradeEvent, journalQueueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (j *Journal) Enabled() bool { return j.tx != nil }

// Start creates the table and starts the writer.
func (j *Journal) Start(ctx context.Context) error {
	if !j.Enabled() {
		close(j.done)
		return nil
	}
	err := j.tx.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, createTable)
		return err
	})
	if err != nil {
		close(j.done)
		return err
	}
	go j.run()
	return nil
}

// Stop drains what is already queued and waits for the writer.
func (j *Journal) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
	<-j.done
}

// Publish enqueues executed, failed and cancelled events.
func (j *Journal) Publish(_ context.Context, ev models.TradeEvent) {
	if !j.Enabled() || ev.Status == models.StatusPending {
		return
	}
	select {
	case j.queue <- ev:
	default:
		logger.Warn("journal queue is full, dropping %s event for %s", ev.Status, ev.TradeID)
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for {
		select {
		case ev := <-j.queue:
			j.write(ev)
		case <-j.stop:
			for {
				select {
				case ev := <-j.queue:
					j.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) write(ev models.TradeEvent) {
	payload, err := sonic.Marshal(ev)
	if err != nil {
		logger.Error("journal: encode %s: %v", ev.TradeID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err = j.tx.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, insertEvent,
			ev.TradeID,
			string(ev.Status),
			string(ev.Suggestion.Venue),
			ev.Suggestion.Symbol,
			ev.OrderID,
			ev.Error,
			string(payload),
			ev.At,
		)
		return err
	})
	if err != nil {
		logger.Error("journal: write %s: %v", ev.TradeID, err)
	}
}
