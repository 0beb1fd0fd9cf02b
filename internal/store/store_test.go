package store

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerbook/internal/book"
)

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "snapshots.db")

	s, err := Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	b := book.New("AAPL")
	_, _, err = b.SubmitLimit(book.Bid, 10, decimal.NewFromInt(100), "alice")
	require.NoError(t, err)

	snap := b.Snapshot()
	require.NoError(t, s.Save(snap))

	loaded, ok, err := s.Load("AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap.Ticker, loaded.Ticker)
	assert.Equal(t, snap.TotalBidSize, loaded.TotalBidSize)
}

func TestStore_LoadMissingTicker(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "snapshots.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Load("NONEXISTENT")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Tickers(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "snapshots.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(book.New("AAPL").Snapshot()))
	require.NoError(t, s.Save(book.New("MSFT").Snapshot()))

	tickers, err := s.Tickers()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, tickers)
}
