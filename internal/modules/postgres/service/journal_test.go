package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"trade_gateway/internal/models"
	"trade_gateway/pkg/db"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type fakeTx struct {
	mu    sync.Mutex
	calls []execCall
	err   error
}

func (f *fakeTx) RunMaster(ctx context.Context, fn func(ctxTx context.Context, tx db.Transaction) error) error {
	return fn(ctx, f)
}

func (f *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *fakeTx) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (f *fakeTx) QueryRow(context.Context, string, ...interface{}) pgx.Row { return nil }

func (f *fakeTx) inserts() []execCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []execCall
	for _, c := range f.calls {
		if strings.Contains(c.sql, "INSERT INTO trade_events") {
			out = append(out, c)
		}
	}
	return out
}

func TestJournalWritesTerminalEvents(t *testing.T) {
	tx := &fakeTx{}
	j := NewJournal(tx)
	require.NoError(t, j.Start(context.Background()))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := models.Suggestion{ID: "trade_1", Venue: models.VenueSpot, Symbol: "BTC/USD", Side: models.SideBuy, Amount: 0.002}
	j.Publish(context.Background(), models.TradeEvent{TradeID: "trade_1", Status: models.StatusPending, Suggestion: s, At: at})
	j.Publish(context.Background(), models.TradeEvent{TradeID: "trade_1", Status: models.StatusExecuted, Suggestion: s, OrderID: "O1", At: at})
	j.Stop()

	require.True(t, strings.Contains(tx.calls[0].sql, "CREATE TABLE IF NOT EXISTS trade_events"))
	ins := tx.inserts()
	require.Len(t, ins, 1)
	args := ins[0].args
	assert.Equal(t, "trade_1", args[0])
	assert.Equal(t, "executed", args[1])
	assert.Equal(t, "spot-exchange", args[2])
	assert.Equal(t, "BTC/USD", args[3])
	assert.Equal(t, "O1", args[4])
	assert.Equal(t, at, args[7])

	var decoded models.TradeEvent
	require.NoError(t, sonic.UnmarshalString(args[6].(string), &decoded))
	assert.Equal(t, models.StatusExecuted, decoded.Status)
	assert.Equal(t, "BTC/USD", decoded.Suggestion.Symbol)
}

func TestJournalWriteErrorIsLogged(t *testing.T) {
	tx := &fakeTx{}
	j := NewJournal(tx)
	require.NoError(t, j.Start(context.Background()))
	tx.mu.Lock()
	tx.err = errors.New("connection reset")
	tx.mu.Unlock()

	j.Publish(context.Background(), models.TradeEvent{TradeID: "trade_2", Status: models.StatusFailed})
	j.Stop()

	assert.Len(t, tx.inserts(), 1)
}

func TestDisabledJournal(t *testing.T) {
	j := NewJournal(nil)
	assert.False(t, j.Enabled())
	require.NoError(t, j.Start(context.Background()))
	j.Publish(context.Background(), models.TradeEvent{TradeID: "trade_3", Status: models.StatusExecuted})
	j.Stop()
}

func TestJournalStartFailsOnSchemaError(t *testing.T) {
	j := NewJournal(&fakeTx{err: errors.New("permission denied")})
	require.Error(t, j.Start(context.Background()))
	j.Stop()
}
