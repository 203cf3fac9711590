package backtesting

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/foresight/internal/domain"
	testutil "github.com/aristath/foresight/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulation_StopReasons(t *testing.T) {
	_, end := window()

	tests := []struct {
		name   string
		setup  func(sc *Scenario, md *testutil.MarketData) (ctx context.Context)
		start  int
		want   StopReason
		errIs  error
		cursor int
	}{
		{
			name:   "completed",
			setup:  func(*Scenario, *testutil.MarketData) context.Context { return context.Background() },
			start:  100,
			want:   StopCompleted,
			cursor: 161,
		},
		{
			name: "lookahead exhausted",
			setup: func(sc *Scenario, _ *testutil.MarketData) context.Context {
				sc.LookaheadDays = 10
				return context.Background()
			},
			start:  100,
			want:   StopLookaheadExhausted,
			cursor: 151,
		},
		{
			name:   "insufficient history",
			setup:  func(*Scenario, *testutil.MarketData) context.Context { return context.Background() },
			start:  10,
			want:   StopInsufficientHistory,
			errIs:  domain.ErrInsufficientHistory,
			cursor: 10,
		},
		{
			name: "cancelled",
			setup: func(*Scenario, *testutil.MarketData) context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			start:  100,
			want:   StopCancelled,
			errIs:  context.Canceled,
			cursor: 100,
		},
		{
			name: "provider failure",
			setup: func(_ *Scenario, md *testutil.MarketData) context.Context {
				md.SetError(errors.New("connection reset"))
				return context.Background()
			},
			start:  100,
			want:   StopFailed,
			cursor: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := marketFixture(false)
			sc := testScenario(tt.name)
			ctx := tt.setup(&sc, md)

			from := testutil.Day0.AddDate(0, 0, tt.start)
			sim, err := NewSimulation(sc, from, end, testDeps(md), zerolog.Nop())
			require.NoError(t, err)

			st := sim.Run(ctx)
			assert.Equal(t, tt.want, st.Stop)
			assert.Equal(t, testutil.Day0.AddDate(0, 0, tt.cursor), st.Cursor)
			if tt.errIs != nil {
				assert.ErrorIs(t, st.Err, tt.errIs)
			}
			if tt.want == StopFailed {
				assert.Error(t, st.Err)
			}
			assert.False(t, sim.Step(ctx), "a stopped simulation stays stopped")
		})
	}
}

func TestSimulation_NeverReadsPastCursor(t *testing.T) {
	start, end := window()
	md := marketFixture(false)
	sim, err := NewSimulation(testScenario("guard"), start, end, testDeps(md), zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	for {
		cursor := sim.State().Cursor
		running := sim.Step(ctx)
		assert.False(t, md.LatestRequested().After(cursor), "read %s with cursor at %s", md.LatestRequested(), cursor)
		if !running {
			break
		}
	}
	assert.Equal(t, StopCompleted, sim.State().Stop)
}

func TestSimulation_SkipsDaysWithoutBars(t *testing.T) {
	start, end := window()
	sim, err := NewSimulation(testScenario("weekdays"), start, end, testDeps(marketFixture(true)), zerolog.Nop())
	require.NoError(t, err)

	st := sim.Run(context.Background())
	require.Equal(t, StopCompleted, st.Stop)
	assert.Greater(t, st.DaysSkipped, 0)
	assert.Equal(t, 61, st.DaysSimulated+st.DaysSkipped)
	assert.Len(t, st.Equity, st.DaysSimulated)
	for _, m := range st.Equity {
		assert.NotContains(t, []string{"Saturday", "Sunday"}, m.Date.Weekday().String())
	}
}

func TestSimulation_ValidatesMaturedForecasts(t *testing.T) {
	start, end := window()
	sim, err := NewSimulation(testScenario("validate"), start, end, testDeps(marketFixture(false)), zerolog.Nop())
	require.NoError(t, err)
	sim.Run(context.Background())

	overview := sim.Forecaster().Monitor().Overview()
	require.NotEmpty(t, overview)
	stat, ok := overview[domain.ModelStatistical]
	require.True(t, ok)
	assert.Greater(t, stat.Current.Samples, 0)
	assert.Contains(t, stat.Current.ValidationAccuracy, domain.ClassMarket)
	assert.Contains(t, stat.Current.ValidationAccuracy, domain.ClassSecurity)

	for _, pf := range sim.State().pending {
		assert.True(t, pf.maturesOn.After(sim.State().Equity[len(sim.State().Equity)-1].Date))
	}
}

func TestSimulation_Validation(t *testing.T) {
	start, end := window()
	md := marketFixture(false)

	_, err := NewSimulation(testScenario("a"), end, start, testDeps(md), zerolog.Nop())
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)

	_, err = NewSimulation(testScenario("a"), start, end, Dependencies{}, zerolog.Nop())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestSimulation_ZeroModelConfigUsesDefaults(t *testing.T) {
	start, end := window()
	deps := testDeps(marketFixture(false))
	require.Zero(t, deps.Prediction.ReturnLags)

	sim, err := NewSimulation(testScenario("zero-config"), start, end, deps, zerolog.Nop())
	require.NoError(t, err)

	st := sim.Run(context.Background())
	require.NoError(t, st.Err)
	assert.Equal(t, StopCompleted, st.Stop)
	assert.Greater(t, st.DaysSimulated, 1)
	assert.Zero(t, st.RetrainFailures)
}
