package capability

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type tradeRecord struct {
	OrderID     string
	TradingPair string
	Side        string
	Quantity    float64
	Price       float64
	LoggedAt    time.Time
}

// Reporter keeps a trade journal and produces valuation and performance
// summaries from it.
type Reporter struct {
	mu     sync.RWMutex
	trades []tradeRecord
}

// NewReporter creates a reporter with an empty journal.
func NewReporter() *Reporter { return &Reporter{} }

// LogTrade handles the log_trade capability.
func (r *Reporter) LogTrade(_ context.Context, params map[string]any) (map[string]any, error) {
	orderID, err := stringParam(params, "order_id")
	if err != nil {
		return nil, err
	}
	pair := ""
	if v, ok := params["trading_pair"].(string); ok {
		pair = v
	}
	side := ""
	if v, ok := params["side"].(string); ok {
		side = v
	}
	quantity := 0.0
	if v, ok := params["quantity"].(float64); ok {
		quantity = v
	}
	price := 0.0
	if v, ok := params["executed_price"].(float64); ok {
		price = v
	} else if pair != "" {
		price = simulatedPrice(pair)
	}

	rec := tradeRecord{
		OrderID:     orderID,
		TradingPair: pair,
		Side:        side,
		Quantity:    quantity,
		Price:       round2(price),
		LoggedAt:    time.Now().UTC(),
	}

	r.mu.Lock()
	r.trades = append(r.trades, rec)
	count := len(r.trades)
	r.mu.Unlock()

	return map[string]any{
		"order_id":     orderID,
		"logged":       true,
		"trade_number": count,
		"timestamp":    rec.LoggedAt.Format(time.RFC3339),
	}, nil
}

// GeneratePortfolioValuation handles the generate_portfolio_valuation
// capability. Values are derived from the journal plus a simulated base
// portfolio.
func (r *Reporter) GeneratePortfolioValuation(_ context.Context, _ map[string]any) (map[string]any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	assets := map[string]float64{"BTC": 0.5, "ETH": 5}
	for _, t := range r.trades {
		asset := baseAsset(t.TradingPair)
		switch t.Side {
		case "buy":
			assets[asset] += t.Quantity
		case "sell":
			assets[asset] -= t.Quantity
		}
	}

	breakdown := make(map[string]any, len(assets))
	total := 0.0
	for asset, qty := range assets {
		if qty <= 0 {
			continue
		}
		value := qty * simulatedPrice(asset+"/USD")
		breakdown[asset] = map[string]any{
			"quantity":  round2(qty),
			"value_usd": round2(value),
		}
		total += value
	}

	return map[string]any{
		"total_value": round2(total),
		"assets":      breakdown,
		"as_of":       time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// GeneratePerformanceReport handles the generate_performance_report
// capability for a period like "7d" or "30d".
func (r *Reporter) GeneratePerformanceReport(_ context.Context, params map[string]any) (map[string]any, error) {
	period, err := stringParam(params, "period")
	if err != nil {
		return nil, err
	}
	dur, err := parsePeriod(period)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-dur)
	var buys, sells int
	var volume float64
	for _, t := range r.trades {
		if t.LoggedAt.Before(cutoff) {
			continue
		}
		volume += t.Quantity * t.Price
		if t.Side == "buy" {
			buys++
		} else {
			sells++
		}
	}

	trades := buys + sells
	winRate := 0.0
	if trades > 0 {
		winRate = float64(buys) / float64(trades)
	}

	return map[string]any{
		"period":       period,
		"trade_count":  trades,
		"buy_count":    buys,
		"sell_count":   sells,
		"total_volume": round2(volume),
		"win_rate":     round2(winRate),
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// parsePeriod accepts day-based periods like "7d" alongside the usual
// duration syntax.
func parsePeriod(period string) (time.Duration, error) {
	if n := len(period); n > 1 && period[n-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(period[:n-1], "%d", &days); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	if dur, err := time.ParseDuration(period); err == nil && dur > 0 {
		return dur, nil
	}
	return 0, fmt.Errorf("invalid period %q", period)
}
