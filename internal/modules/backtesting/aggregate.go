package backtesting

import (
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/monitoring"
	"github.com/aristath/foresight/pkg/formulas"
)

// varConfidence puts VaR and CVaR at the 5th percentile of daily returns
const varConfidence = 0.95

// RiskStats summarises the downside of an equity curve. Drawdowns are
// positive fractions; VaR and CVaR are daily returns.
type RiskStats struct {
	MaxDrawdown float64 `json:"max_drawdown"`
	AvgDrawdown float64 `json:"avg_drawdown"`
	VaR95       float64 `json:"var_95"`
	CVaR95      float64 `json:"cvar_95"`
}

// PerformanceStats summarises returns and trading
type PerformanceStats struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	Sharpe           float64 `json:"sharpe"`
	Sortino          float64 `json:"sortino"`
	InformationRatio float64 `json:"information_ratio"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	TradeCount       int     `json:"trade_count"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
}

// ScenarioResult is the outcome of one simulation
type ScenarioResult struct {
	Name          string                                      `json:"name"`
	StopReason    StopReason                                  `json:"stop_reason"`
	Error         string                                      `json:"error,omitempty"`
	Start         time.Time                                   `json:"start"`
	End           time.Time                                   `json:"end"`
	InitialValue  float64                                     `json:"initial_value"`
	FinalValue    float64                                     `json:"final_value"`
	Samples       []domain.PerformanceMetric                  `json:"samples"`
	Trades        []Trade                                     `json:"trades"`
	Risk          RiskStats                                   `json:"risk"`
	Performance   PerformanceStats                            `json:"performance"`
	ModelHealth   map[domain.ModelType]monitoring.ModelHealth `json:"model_health,omitempty"`
	DaysSimulated int                                         `json:"days_simulated"`
	DaysSkipped   int                                         `json:"days_skipped"`
}

// Summary pools every scenario of a run
type Summary struct {
	Scenarios               int     `json:"scenarios"`
	Completed               int     `json:"completed"`
	Failed                  int     `json:"failed"`
	AverageReturn           float64 `json:"average_return"`
	AverageAnnualizedReturn float64 `json:"average_annualized_return"`
	AverageVolatility       float64 `json:"average_volatility"`
	AverageSharpe           float64 `json:"average_sharpe"`
	MaxDrawdown             float64 `json:"max_drawdown"`
	VaR95                   float64 `json:"var_95"`
	CVaR95                  float64 `json:"cvar_95"`
	WinRate                 float64 `json:"win_rate"`
	ProfitFactor            float64 `json:"profit_factor"`
	TotalTrades             int     `json:"total_trades"`
}

// Result is one backtest run. ID is assigned when the result is saved.
type Result struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Scenarios []ScenarioResult `json:"scenarios"`
	Summary   Summary          `json:"summary"`
}

// Collect turns a stopped simulation into its result
func Collect(sim *Simulation) ScenarioResult {
	st := sim.State()
	sc := sim.Scenario()
	res := ScenarioResult{
		Name:          sc.Name,
		StopReason:    st.Stop,
		Start:         sim.start,
		End:           sim.end,
		Samples:       st.Equity,
		Trades:        st.Trades,
		DaysSimulated: st.DaysSimulated,
		DaysSkipped:   st.DaysSkipped,
	}
	if st.Err != nil {
		res.Error = st.Err.Error()
	}
	if len(st.Equity) > 0 {
		res.InitialValue = st.Equity[0].Value
		res.FinalValue = st.Equity[len(st.Equity)-1].Value
	} else if st.Portfolio != nil {
		res.InitialValue = st.Portfolio.TotalValue
		res.FinalValue = st.Portfolio.TotalValue
	}
	res.Risk = riskStats(st.Equity)
	res.Performance = performanceStats(st.Equity, st.Benchmark, st.Trades, sc.RiskFreeRate)
	if health := sim.Forecaster().Monitor().Overview(); len(health) > 0 {
		res.ModelHealth = health
	}
	return res
}

func values(equity []domain.PerformanceMetric) []float64 {
	out := make([]float64, len(equity))
	for i, m := range equity {
		out[i] = m.Value
	}
	return out
}

func riskStats(equity []domain.PerformanceMetric) RiskStats {
	vals := values(equity)
	returns := equityReturns(equity)
	return RiskStats{
		MaxDrawdown: formulas.DerefOr(formulas.CalculateMaxDrawdown(vals), 0),
		AvgDrawdown: formulas.Mean(formulas.DrawdownSeries(vals)),
		VaR95:       formulas.CalculateVaR(returns, varConfidence),
		CVaR95:      formulas.CalculateCVaR(returns, varConfidence),
	}
}

func performanceStats(equity []domain.PerformanceMetric, benchmark []float64, trades []Trade, riskFree float64) PerformanceStats {
	stats := PerformanceStats{TradeCount: len(trades)}
	if len(equity) > 0 {
		first, last := equity[0], equity[len(equity)-1]
		stats.TotalReturn = formulas.SimpleReturn(first.Value, last.Value)
		stats.AnnualizedReturn = formulas.AnnualizedReturn(first.Value, last.Value, first.Date, last.Date)
	}
	returns := equityReturns(equity)
	if len(returns) > 1 {
		stats.Volatility = formulas.AnnualizedVolatility(returns)
		stats.Sharpe = formulas.DerefOr(formulas.CalculateSharpeRatio(returns, riskFree, formulas.TradingDaysPerYear), 0)
		stats.Sortino = formulas.DerefOr(formulas.CalculateSortinoRatio(returns, riskFree, 0, formulas.TradingDaysPerYear), 0)
		stats.InformationRatio = formulas.DerefOr(formulas.CalculateInformationRatio(returns, benchmark, formulas.TradingDaysPerYear), 0)
	}

	wins, losses, gross, loss := tradeOutcomes(trades)
	stats.WinningTrades = wins
	stats.LosingTrades = losses
	stats.WinRate = winRate(wins, len(trades))
	stats.ProfitFactor = profitFactor(gross, loss)
	return stats
}

// tradeOutcomes counts closed (sell) trades by realised result
func tradeOutcomes(trades []Trade) (wins, losses int, grossProfit, grossLoss float64) {
	for _, t := range trades {
		if t.Side != domain.SideSell {
			continue
		}
		switch {
		case t.RealizedPnL > 0:
			wins++
			grossProfit += t.RealizedPnL
		case t.RealizedPnL < 0:
			losses++
			grossLoss -= t.RealizedPnL
		}
	}
	return wins, losses, grossProfit, grossLoss
}

// winRate is winning trades over every executed trade, buys included
func winRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// profitFactor is gross profit over gross loss, 0 when nothing was lost
func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		return 0
	}
	return grossProfit / grossLoss
}

// Summarize pools per-scenario statistics. Averages cover scenarios that
// produced at least one sample; VaR and CVaR pool every daily return.
func Summarize(results []ScenarioResult) Summary {
	sum := Summary{Scenarios: len(results)}
	var pooled []float64
	var allTrades []Trade
	counted := 0
	for _, r := range results {
		switch r.StopReason {
		case StopCompleted, StopLookaheadExhausted:
			sum.Completed++
		case StopFailed:
			sum.Failed++
		}
		sum.TotalTrades += len(r.Trades)
		allTrades = append(allTrades, r.Trades...)
		if r.Risk.MaxDrawdown > sum.MaxDrawdown {
			sum.MaxDrawdown = r.Risk.MaxDrawdown
		}
		if len(r.Samples) == 0 {
			continue
		}
		counted++
		sum.AverageReturn += r.Performance.TotalReturn
		sum.AverageAnnualizedReturn += r.Performance.AnnualizedReturn
		sum.AverageVolatility += r.Performance.Volatility
		sum.AverageSharpe += r.Performance.Sharpe
		pooled = append(pooled, equityReturns(r.Samples)...)
	}
	if counted > 0 {
		n := float64(counted)
		sum.AverageReturn /= n
		sum.AverageAnnualizedReturn /= n
		sum.AverageVolatility /= n
		sum.AverageSharpe /= n
	}
	sum.VaR95 = formulas.CalculateVaR(pooled, varConfidence)
	sum.CVaR95 = formulas.CalculateCVaR(pooled, varConfidence)

	wins, _, gross, loss := tradeOutcomes(allTrades)
	sum.WinRate = winRate(wins, len(allTrades))
	sum.ProfitFactor = profitFactor(gross, loss)
	return sum
}
