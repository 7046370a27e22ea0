package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedStop_SetOnAdd(t *testing.T) {
	limits := DefaultLimits()
	limits.StopPolicy = StopFixed
	limits.StopLossPct = 0.05
	m := newTestManager(t, limits)

	require.NoError(t, m.AddPosition(Position{Symbol: "AAPL", Quantity: 10, EntryPrice: 100, Side: SideLong}))
	require.NoError(t, m.AddPosition(Position{Symbol: "TSLA", Quantity: 10, EntryPrice: 200, Side: SideShort}))

	positions := m.OpenPositions()
	assert.InDelta(t, 95.0, positions[0].StopLoss, 1e-9)
	assert.InDelta(t, 210.0, positions[1].StopLoss, 1e-9)
}

func TestATRStop(t *testing.T) {
	limits := DefaultLimits()
	limits.StopPolicy = StopATR
	limits.StopATRMultiplier = 2.0
	m := newTestManager(t, limits)

	require.NoError(t, m.AddPosition(Position{Symbol: "AAPL", Quantity: 10, EntryPrice: 100, Side: SideLong}))
	m.SetStopLoss("AAPL", 3.0)

	positions := m.OpenPositions()
	assert.InDelta(t, 94.0, positions[0].StopLoss, 1e-9)
}

func TestTrailingStop_OnlyTightens(t *testing.T) {
	limits := DefaultLimits()
	limits.StopPolicy = StopTrailing
	limits.TrailingPct = 0.10
	m := newTestManager(t, limits)

	require.NoError(t, m.AddPosition(Position{Symbol: "AAPL", Quantity: 10, EntryPrice: 100, Side: SideLong}))

	// price runs up: stop ratchets to peak * 0.9
	m.UpdatePosition("AAPL", 120)
	stop := m.OpenPositions()[0].StopLoss
	assert.InDelta(t, 108.0, stop, 1e-9)

	// price falls back: the stop must not loosen
	m.UpdatePosition("AAPL", 110)
	assert.InDelta(t, 108.0, m.OpenPositions()[0].StopLoss, 1e-9)

	// new high: stop advances again
	m.UpdatePosition("AAPL", 130)
	assert.InDelta(t, 117.0, m.OpenPositions()[0].StopLoss, 1e-9)
}

func TestTrailingStop_ShortSide(t *testing.T) {
	limits := DefaultLimits()
	limits.StopPolicy = StopTrailing
	limits.TrailingPct = 0.10
	m := newTestManager(t, limits)

	require.NoError(t, m.AddPosition(Position{Symbol: "TSLA", Quantity: 10, EntryPrice: 200, Side: SideShort}))

	// favorable move for a short is down; stop follows from above
	m.UpdatePosition("TSLA", 180)
	assert.InDelta(t, 198.0, m.OpenPositions()[0].StopLoss, 1e-9)

	// adverse bounce must not loosen the stop
	m.UpdatePosition("TSLA", 190)
	assert.InDelta(t, 198.0, m.OpenPositions()[0].StopLoss, 1e-9)
}

func TestCheckStopLosses_ReportsCrossedSymbols(t *testing.T) {
	limits := DefaultLimits()
	limits.StopPolicy = StopFixed
	limits.StopLossPct = 0.05
	m := newTestManager(t, limits)

	require.NoError(t, m.AddPosition(Position{Symbol: "AAPL", Quantity: 10, EntryPrice: 100, Side: SideLong}))
	require.NoError(t, m.AddPosition(Position{Symbol: "MSFT", Quantity: 10, EntryPrice: 300, Side: SideLong}))
	require.NoError(t, m.AddPosition(Position{Symbol: "TSLA", Quantity: 10, EntryPrice: 200, Side: SideShort}))

	m.UpdatePosition("AAPL", 94)  // below the 95 stop
	m.UpdatePosition("MSFT", 299) // above the 285 stop
	m.UpdatePosition("TSLA", 211) // above the 210 short stop

	crossed := m.CheckStopLosses()
	assert.Equal(t, []string{"AAPL", "TSLA"}, crossed)

	// the manager reports, it does not close: positions remain open
	assert.Len(t, m.OpenPositions(), 3)
}
