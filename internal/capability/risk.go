package capability

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type holding struct {
	Quantity float64
	ValueUSD float64
	AvgPrice float64
}

// RiskManager tracks a simulated portfolio and scores proposed trades
// against it.
type RiskManager struct {
	mu       sync.RWMutex
	cashUSD  float64
	holdings map[string]*holding
}

// NewRiskManager creates a risk manager with a starting cash balance and a
// small seed portfolio.
func NewRiskManager() *RiskManager {
	return &RiskManager{
		cashUSD: 50000,
		holdings: map[string]*holding{
			"BTC": {Quantity: 0.5, ValueUSD: 25000, AvgPrice: 50000},
			"ETH": {Quantity: 5, ValueUSD: 15000, AvgPrice: 3000},
		},
	}
}

// AssessTradeRisk handles the assess_trade_risk capability: score a
// proposed trade against current exposure and approve or reject it.
func (rm *RiskManager) AssessTradeRisk(_ context.Context, params map[string]any) (map[string]any, error) {
	pair, err := stringParam(params, "trading_pair")
	if err != nil {
		return nil, err
	}
	side, err := stringParam(params, "side")
	if err != nil {
		return nil, err
	}
	quantity, err := floatParam(params, "quantity")
	if err != nil {
		return nil, err
	}

	asset := baseAsset(pair)
	price := simulatedPrice(pair)
	tradeValue := quantity * price

	rm.mu.RLock()
	total := rm.totalValueLocked()
	exposure := 0.0
	if h, ok := rm.holdings[asset]; ok && total > 0 {
		exposure = h.ValueUSD / total * 100
	}
	rm.mu.RUnlock()

	newExposure := exposure
	if total > 0 {
		switch side {
		case "buy":
			newExposure = (exposure*total/100 + tradeValue) / total * 100
		case "sell":
			newExposure = (exposure*total/100 - tradeValue) / total * 100
			if newExposure < 0 {
				newExposure = 0
			}
		}
	}

	score := 20.0
	var reasons []string
	if newExposure > 50 {
		score += 40
		reasons = append(reasons, fmt.Sprintf("%s exposure would reach %.1f%% of portfolio", asset, newExposure))
	} else if newExposure > 30 {
		score += 20
		reasons = append(reasons, fmt.Sprintf("%s exposure elevated at %.1f%%", asset, newExposure))
	}
	if tradeValue > rm.cash() && side == "buy" {
		score += 30
		reasons = append(reasons, "trade value exceeds available cash")
	}
	vol := 0.2 + seededFraction(pair, "vol")*0.6
	if vol > 0.5 {
		score += 15
		reasons = append(reasons, fmt.Sprintf("%s volatility is high (%.2f)", asset, vol))
	}

	approved := score < 70
	maxQty := quantity
	if score >= 70 && price > 0 {
		maxQty = round2(quantity * 60 / score)
	}

	return map[string]any{
		"risk_score":               round2(score),
		"approval":                 approved,
		"max_recommended_quantity": maxQty,
		"current_exposure":         round2(exposure),
		"new_exposure":             round2(newExposure),
		"reasons":                  reasons,
	}, nil
}

// MonitorPortfolioRisk handles the monitor_portfolio_risk capability.
func (rm *RiskManager) MonitorPortfolioRisk(_ context.Context, _ map[string]any) (map[string]any, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	total := rm.totalValueLocked()
	invested := total - rm.cashUSD
	exposure := 0.0
	if total > 0 {
		exposure = invested / total * 100
	}

	volatility := 0.0
	for asset, h := range rm.holdings {
		if total > 0 {
			volatility += (0.2 + seededFraction(asset, "vol")*0.6) * (h.ValueUSD / total)
		}
	}
	valueAtRisk := invested * volatility * 0.1

	var alerts []map[string]any
	if exposure > 80 {
		alerts = append(alerts, map[string]any{
			"metric":         "exposure",
			"value":          round2(exposure),
			"threshold":      80.0,
			"recommendation": "reduce exposure by taking profits",
		})
	}
	if volatility > 0.3 {
		alerts = append(alerts, map[string]any{
			"metric":         "volatility",
			"value":          round2(volatility),
			"threshold":      0.3,
			"recommendation": "reduce positions in high-volatility assets",
		})
	}

	level := "low"
	switch {
	case len(alerts) >= 2:
		level = "high"
	case len(alerts) == 1:
		level = "medium"
	}

	return map[string]any{
		"risk_level": level,
		"metrics": map[string]any{
			"total_value": round2(total),
			"exposure":    round2(exposure),
			"volatility":  round2(volatility),
			"var":         round2(valueAtRisk),
		},
		"alerts": alerts,
	}, nil
}

// UpdatePortfolio handles the update_portfolio capability: apply a filled
// order to holdings and cash.
func (rm *RiskManager) UpdatePortfolio(_ context.Context, params map[string]any) (map[string]any, error) {
	orderID, err := stringParam(params, "order_id")
	if err != nil {
		return nil, err
	}
	pair := "BTC/USD"
	if v, ok := params["trading_pair"].(string); ok && v != "" {
		pair = v
	}
	side := "buy"
	if v, ok := params["side"].(string); ok && v != "" {
		side = v
	}
	quantity := 0.0
	if v, ok := params["quantity"].(float64); ok {
		quantity = v
	}
	price := simulatedPrice(pair)
	if v, ok := params["executed_price"].(float64); ok {
		price = v
	}

	asset := baseAsset(pair)
	tradeValue := quantity * price

	rm.mu.Lock()
	defer rm.mu.Unlock()

	h, ok := rm.holdings[asset]
	if !ok {
		h = &holding{}
		rm.holdings[asset] = h
	}

	switch side {
	case "buy":
		h.Quantity += quantity
		h.ValueUSD += tradeValue
		if h.Quantity > 0 {
			h.AvgPrice = h.ValueUSD / h.Quantity
		}
		rm.cashUSD -= tradeValue
	case "sell":
		sold := quantity
		if sold > h.Quantity {
			sold = h.Quantity
		}
		h.Quantity -= sold
		h.ValueUSD -= sold * h.AvgPrice
		if h.ValueUSD < 0 {
			h.ValueUSD = 0
		}
		rm.cashUSD += sold * price
	default:
		return nil, fmt.Errorf("side must be buy or sell, got %q", side)
	}

	return map[string]any{
		"order_id":       orderID,
		"asset":          asset,
		"quantity":       round2(h.Quantity),
		"value_usd":      round2(h.ValueUSD),
		"cash_usd":       round2(rm.cashUSD),
		"update_applied": true,
	}, nil
}

// totalValueLocked sums cash and holdings. Caller must hold rm.mu.
func (rm *RiskManager) totalValueLocked() float64 {
	total := rm.cashUSD
	for _, h := range rm.holdings {
		total += h.ValueUSD
	}
	return total
}

func (rm *RiskManager) cash() float64 {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.cashUSD
}

// baseAsset extracts "BTC" from "BTC/USD".
func baseAsset(pair string) string {
	if i := strings.Index(pair, "/"); i > 0 {
		return pair[:i]
	}
	return pair
}
