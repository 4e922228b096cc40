package filter

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helios/internal/domain/alert"
	"helios/internal/metrics"
)

func goodAlert() alert.RawAlert {
	return alert.RawAlert{
		Ticker:          "NVDA",
		Side:            alert.SideCall,
		Premium:         250_000,
		Size:            1500,
		OpenInterest:    400,
		AskSidePct:      0.85,
		DTE:             45,
		Strike:          150,
		UnderlyingPrice: 140,
		RuleTag:         "clean_ask_side_opening_flow",
		Timestamp:       time.Now(),
	}
}

func TestFilterAcceptsCleanAlert(t *testing.T) {
	batch := New(DefaultParams()).Filter([]alert.RawAlert{goodAlert()})

	require.Equal(t, 1, batch.Accepted)
	require.Len(t, batch.Alerts, 1)
	assert.Zero(t, batch.Malformed)
	assert.Zero(t, batch.TotalRejected())

	pa := batch.Alerts[0]
	assert.InDelta(t, 150.0/140.0-1, pa.Moneyness, 1e-9)
	assert.Equal(t, alert.HorizonSwing, pa.Horizon)
}

func TestFilterDropsPremiumBelowFloor(t *testing.T) {
	ra := goodAlert()
	ra.Premium = 40_000 // everything else favorable

	batch := New(DefaultParams()).Filter([]alert.RawAlert{ra})

	assert.Zero(t, batch.Accepted)
	assert.Equal(t, 1, batch.Rejected[RejectPremiumFloor])
}

func TestFilterRuleOrder(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*alert.RawAlert)
		rule   string
	}{
		{"premium floor", func(a *alert.RawAlert) { a.Premium = 10_000 }, RejectPremiumFloor},
		{"bad underlying", func(a *alert.RawAlert) { a.UnderlyingPrice = 0 }, RejectBadUnderlying},
		{"bad size", func(a *alert.RawAlert) { a.Size = 0 }, RejectBadSize},
		{"short dated", func(a *alert.RawAlert) { a.DTE = 3 }, RejectDTEFloor},
		{"no buying pressure", func(a *alert.RawAlert) { a.AskSidePct = 0.5 }, RejectNoBuyingPressure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ra := goodAlert()
			tc.mutate(&ra)

			batch := New(DefaultParams()).Filter([]alert.RawAlert{ra})
			assert.Zero(t, batch.Accepted)
			assert.Equal(t, 1, batch.Rejected[tc.rule])
		})
	}
}

func TestFilterCountsMalformedSeparately(t *testing.T) {
	missingTicker := goodAlert()
	missingTicker.Ticker = ""

	badSide := goodAlert()
	badSide.Side = "straddle"

	badAskPct := goodAlert()
	badAskPct.AskSidePct = 1.4

	batch := New(DefaultParams()).Filter([]alert.RawAlert{missingTicker, badSide, badAskPct, goodAlert()})

	assert.Equal(t, 4, batch.Received)
	assert.Equal(t, 3, batch.Malformed)
	assert.Equal(t, 1, batch.Accepted)
	assert.Zero(t, batch.TotalRejected())
}

func TestFilterSortsByPremiumDescending(t *testing.T) {
	small := goodAlert()
	small.Premium = 60_000
	big := goodAlert()
	big.Premium = 900_000

	batch := New(DefaultParams()).Filter([]alert.RawAlert{small, big})

	require.Len(t, batch.Alerts, 2)
	assert.Equal(t, 900_000.0, batch.Alerts[0].Premium)
	assert.Equal(t, 60_000.0, batch.Alerts[1].Premium)
}

func TestEnrichedScoresStayInBounds(t *testing.T) {
	extremes := []alert.RawAlert{
		goodAlert(),
		func() alert.RawAlert {
			a := goodAlert()
			a.Premium = 50_000_000
			a.Size = 500_000
			a.OpenInterest = 1
			a.AskSidePct = 1
			return a
		}(),
		func() alert.RawAlert {
			a := goodAlert()
			a.Premium = 50_000
			a.Size = 1
			a.OpenInterest = 1_000_000
			a.AskSidePct = 0.51
			return a
		}(),
	}

	batch := New(DefaultParams()).Filter(extremes)
	require.Equal(t, len(extremes), batch.Accepted)

	for _, pa := range batch.Alerts {
		assert.GreaterOrEqual(t, pa.Conviction, 0.0)
		assert.LessOrEqual(t, pa.Conviction, 100.0)
		assert.GreaterOrEqual(t, pa.InstitutionalConfidence, 0.0)
		assert.LessOrEqual(t, pa.InstitutionalConfidence, 100.0)
	}
}

func TestLongDatedAlertsTagLeap(t *testing.T) {
	ra := goodAlert()
	ra.DTE = 500

	batch := New(DefaultParams()).Filter([]alert.RawAlert{ra})
	require.Equal(t, 1, batch.Accepted)
	assert.Equal(t, alert.HorizonLeap, batch.Alerts[0].Horizon)
}

func TestFilterRecordsBatchCounters(t *testing.T) {
	received := testutil.ToFloat64(metrics.AlertsReceived)
	accepted := testutil.ToFloat64(metrics.AlertsAccepted)
	malformed := testutil.ToFloat64(metrics.AlertsMalformed)
	rejected := testutil.ToFloat64(metrics.AlertsRejected.WithLabelValues(RejectPremiumFloor))

	cheap := goodAlert()
	cheap.Premium = 10_000
	broken := goodAlert()
	broken.Ticker = ""

	New(DefaultParams()).Filter([]alert.RawAlert{goodAlert(), cheap, broken})

	assert.Equal(t, received+3, testutil.ToFloat64(metrics.AlertsReceived))
	assert.Equal(t, accepted+1, testutil.ToFloat64(metrics.AlertsAccepted))
	assert.Equal(t, malformed+1, testutil.ToFloat64(metrics.AlertsMalformed))
	assert.Equal(t, rejected+1, testutil.ToFloat64(metrics.AlertsRejected.WithLabelValues(RejectPremiumFloor)))
}

func TestParamsForNamedPreset(t *testing.T) {
	fallback := DefaultParams()

	preset := ParamsFor("otm_call_buyers_500k", fallback)
	assert.Equal(t, 500_000.0, preset.MinPremium)

	unknown := ParamsFor("does_not_exist", fallback)
	assert.Equal(t, fallback, unknown)
}
