package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"signalbot/internal/models"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archivedOrder(ticket string, status models.OrderStatus) models.TrackedOrder {
	at := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	return models.TrackedOrder{
		Ticket: models.Ticket(ticket),
		Status: status,
		Signal: models.TradeSignal{ID: "sig-" + ticket, Direction: models.DirectionSell},
		Resolved: models.ResolvedOrder{
			Symbol:     "XAUUSD",
			Direction:  models.DirectionSell,
			Kind:       models.OrderKindLimit,
			EntryPrice: decimal.RequireFromString("3645.5"),
			StopLoss:   decimal.RequireFromString("3647.5"),
			TakeProfit: decimal.RequireFromString("3640.5"),
			Volume:     decimal.RequireFromString("0.01"),
		},
		StopLoss:     decimal.RequireFromString("3646"),
		RegisteredAt: at,
		UpdatedAt:    at.Add(time.Hour),
	}
}

func TestJSONLRecorderAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "orders.jsonl")
	rec, err := NewJSONLRecorder(path)
	require.NoError(t, err)

	require.NoError(t, rec.Record(archivedOrder("1", models.OrderStatusFilled)))
	require.NoError(t, rec.Record(archivedOrder("2", models.OrderStatusCancelled)))
	require.NoError(t, rec.Close())
	assert.Error(t, rec.Record(archivedOrder("3", models.OrderStatusExpired)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var tickets []models.Ticket
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var order models.TrackedOrder
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &order))
		tickets = append(tickets, order.Ticket)
	}
	assert.Equal(t, []models.Ticket{"1", "2"}, tickets)
}

func TestSQLiteRecorderRoundTrip(t *testing.T) {
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer rec.Close()

	require.NoError(t, rec.Record(archivedOrder("1", models.OrderStatusFilled)))
	require.NoError(t, rec.Record(archivedOrder("2", models.OrderStatusExpired)))

	recent, err := rec.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, models.Ticket("2"), recent[0].Ticket)
	assert.Equal(t, models.OrderStatusExpired, recent[0].Status)
	assert.True(t, recent[1].StopLoss.Equal(decimal.RequireFromString("3646")))
	assert.Equal(t, "sig-1", recent[1].Signal.ID)

	one, err := rec.Recent(1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestNewByDriver(t *testing.T) {
	dir := t.TempDir()

	rec, err := New("none", "")
	require.NoError(t, err)
	assert.IsType(t, Nop{}, rec)
	assert.NoError(t, rec.Record(models.TrackedOrder{}))

	rec, err = New("jsonl", filepath.Join(dir, "a.jsonl"))
	require.NoError(t, err)
	assert.IsType(t, &JSONLRecorder{}, rec)
	require.NoError(t, rec.Close())

	rec, err = New("sqlite", filepath.Join(dir, "a.db"))
	require.NoError(t, err)
	_, ok := rec.(Reader)
	assert.True(t, ok)
	require.NoError(t, rec.Close())

	_, err = New("postgres", "")
	assert.Error(t, err)
}
