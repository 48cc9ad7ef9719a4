// Package analytics is a terminal consumer of the closed-position ledger:
// it turns a []domain.ClosedPosition plus a risk-free rate into the
// summary statistics an operator or backtest report cares about, built on
// the same gonum-backed formulas the teacher's portfolio reporting uses.
package analytics

import (
	"math"
	"sort"

	"github.com/aristath/enginecore/internal/domain"
	"github.com/aristath/enginecore/pkg/formulas"
)

// Report summarizes a closed-position ledger.
type Report struct {
	TradeCount       int
	WinCount         int
	LossCount        int
	WinRate          float64
	GrossPnL         float64
	TotalFees        float64
	NetPnL           float64
	MeanReturn       float64
	Volatility       float64
	AnnualizedVol    float64
	SharpeRatio      float64
	SortinoRatio     float64
	MaxDrawdown      float64
}

// Summarize computes a Report from closed positions taken in the order
// given (the caller's ledger order is trusted; Summarize sorts neither the
// positions nor the return series derived from them — see SortByCloseTime).
// riskFreeReturn is a per-period rate in the same units as each
// position's return (e.g. daily risk-free rate for daily-bucketed
// returns); pass 0 if unknown.
func Summarize(closed []domain.ClosedPosition, riskFreeReturn float64) Report {
	var r Report
	r.TradeCount = len(closed)
	if r.TradeCount == 0 {
		return r
	}

	returns := make([]float64, 0, len(closed))
	equity := 0.0
	var grossPnL, totalFees float64

	for _, cp := range closed {
		pnl := cp.RealizedPnL.Float64()
		fees := cp.Fees.Float64()
		grossPnL += pnl + fees
		totalFees += fees

		if pnl > 0 {
			r.WinCount++
		} else if pnl < 0 {
			r.LossCount++
		}

		notional, _ := cp.AveragePrice.Mul(cp.Quantity)
		base := notional.Float64()
		if base != 0 {
			returns = append(returns, pnl/base)
		}
		equity += pnl
	}

	r.NetPnL = equity
	r.GrossPnL = grossPnL
	r.TotalFees = totalFees
	r.WinRate = float64(r.WinCount) / float64(r.TradeCount)

	if len(returns) == 0 {
		return r
	}

	r.MeanReturn = formulas.Mean(returns)
	r.Volatility = formulas.StdDev(returns)
	r.AnnualizedVol = formulas.AnnualizedVolatility(returns)
	r.SharpeRatio = sharpeRatio(returns, riskFreeReturn)
	r.SortinoRatio = sortinoRatio(returns, riskFreeReturn)
	r.MaxDrawdown = maxDrawdown(returns)

	return r
}

func sharpeRatio(returns []float64, riskFree float64) float64 {
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - riskFree
	}
	vol := formulas.StdDev(excess)
	// A single return has an undefined (NaN) sample deviation; treat it,
	// like zero deviation, as no volatility.
	if vol == 0 || math.IsNaN(vol) {
		return 0
	}
	return formulas.Mean(excess) / vol
}

// sortinoRatio mirrors sharpeRatio but only penalizes downside deviation,
// the standard Sortino variant.
func sortinoRatio(returns []float64, riskFree float64) float64 {
	excess := make([]float64, len(returns))
	downside := make([]float64, 0, len(returns))
	for i, r := range returns {
		e := r - riskFree
		excess[i] = e
		if e < 0 {
			downside = append(downside, e)
		}
	}
	if len(downside) == 0 {
		return 0
	}
	downsideDev := formulas.StdDev(downside)
	if downsideDev == 0 {
		return 0
	}
	return formulas.Mean(excess) / downsideDev
}

// maxDrawdown computes the largest peak-to-trough decline of the
// cumulative return curve built by compounding returns in ledger order.
func maxDrawdown(returns []float64) float64 {
	cumulative := make([]float64, len(returns))
	running := 1.0
	for i, r := range returns {
		running *= 1 + r
		cumulative[i] = running
	}

	peak := cumulative[0]
	maxDD := 0.0
	for _, v := range cumulative {
		if v > peak {
			peak = v
		}
		dd := (peak - v) / peak
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// SortByCloseTime orders closed positions ascending by CloseTime, the
// ordering Summarize's return series assumes when drawdown matters.
func SortByCloseTime(closed []domain.ClosedPosition) {
	sort.Slice(closed, func(i, j int) bool {
		return closed[i].CloseTime < closed[j].CloseTime
	})
}
