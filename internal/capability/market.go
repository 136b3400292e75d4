// Package capability implements the built-in capability handlers served by
// agent processes, grouped into role profiles. Market data, order fills,
// and portfolio values are simulated deterministically from the trading
// pair so results are stable across calls.
package capability

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
)

// Market serves market analysis and pre-trade risk scoring.
type Market struct{}

// NewMarket creates the market analysis service.
func NewMarket() *Market { return &Market{} }

// Analyze handles the market_analysis capability.
func (m *Market) Analyze(_ context.Context, params map[string]any) (map[string]any, error) {
	pair, err := stringParam(params, "trading_pair")
	if err != nil {
		return nil, err
	}
	interval := "1d"
	if v, ok := params["interval"].(string); ok && v != "" {
		interval = v
	}

	price := simulatedPrice(pair)
	rsi := 30 + seededFraction(pair, "rsi")*40
	macd := (seededFraction(pair, "macd") - 0.5) * 2

	trend := "neutral"
	confidence := 0.5
	switch {
	case rsi > 60 && macd > 0:
		trend = "bullish"
		confidence = 0.6 + seededFraction(pair, "conf")*0.3
	case rsi < 40 && macd < 0:
		trend = "bearish"
		confidence = 0.6 + seededFraction(pair, "conf")*0.3
	}

	recommendation := "hold"
	if trend == "bullish" {
		recommendation = "buy"
	} else if trend == "bearish" {
		recommendation = "sell"
	}

	return map[string]any{
		"trading_pair":   pair,
		"interval":       interval,
		"trend":          trend,
		"confidence":     round2(confidence),
		"recommendation": recommendation,
		"signals": map[string]any{
			"rsi":   round2(rsi),
			"macd":  round2(macd),
			"price": round2(price),
		},
	}, nil
}

// AssessRisk handles the risk_assessment capability: a quick market-side
// volatility check, distinct from the portfolio-aware assess_trade_risk.
func (m *Market) AssessRisk(_ context.Context, params map[string]any) (map[string]any, error) {
	pair, err := stringParam(params, "trading_pair")
	if err != nil {
		return nil, err
	}
	size, err := floatParam(params, "position_size")
	if err != nil {
		return nil, err
	}

	volatility := 0.2 + seededFraction(pair, "vol")*0.6
	level := "low"
	recommendation := "proceed"
	switch {
	case volatility > 0.6:
		level = "high"
		recommendation = "reduce position size"
	case volatility > 0.4:
		level = "medium"
		recommendation = "proceed with caution"
	}

	maxSize := size
	if volatility > 0.5 {
		maxSize = size * (0.5 / volatility)
	}

	return map[string]any{
		"risk_level":           level,
		"recommendation":       recommendation,
		"volatility":           round2(volatility),
		"max_recommended_size": round2(maxSize),
	}, nil
}

// simulatedPrice derives a stable pseudo-price from the pair name.
func simulatedPrice(pair string) float64 {
	return 100 + seededFraction(pair, "price")*50000
}

// seededFraction hashes pair+salt into [0, 1).
func seededFraction(pair, salt string) float64 {
	h := fnv.New64a()
	h.Write([]byte(pair))
	h.Write([]byte(salt))
	return float64(h.Sum64()%10000) / 10000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%s parameter is required", key)
	}
	return v, nil
}

func floatParam(params map[string]any, key string) (float64, error) {
	switch v := params[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case nil:
		return 0, fmt.Errorf("%s parameter is required", key)
	default:
		return 0, errors.New(key + " must be a number")
	}
}
