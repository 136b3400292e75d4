package capability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type order struct {
	ID               string
	TradingPair      string
	Side             string
	OrderType        string
	Quantity         float64
	ExecutedPrice    float64
	ExecutedQuantity float64
	Status           string
	Timestamp        time.Time
}

// TradeDesk executes simulated orders against an in-memory order book.
// All orders fill immediately.
type TradeDesk struct {
	mu     sync.RWMutex
	orders map[string]*order
}

// NewTradeDesk creates an empty trade desk.
func NewTradeDesk() *TradeDesk {
	return &TradeDesk{orders: make(map[string]*order)}
}

// ExecuteTrade handles the execute_trade capability.
func (d *TradeDesk) ExecuteTrade(_ context.Context, params map[string]any) (map[string]any, error) {
	pair, err := stringParam(params, "trading_pair")
	if err != nil {
		return nil, err
	}
	side, err := stringParam(params, "side")
	if err != nil {
		return nil, err
	}
	if side != "buy" && side != "sell" {
		return nil, fmt.Errorf("side must be buy or sell, got %q", side)
	}
	quantity, err := floatParam(params, "quantity")
	if err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %v", quantity)
	}

	orderType := "market"
	if v, ok := params["order_type"].(string); ok && v != "" {
		orderType = v
	}
	price := simulatedPrice(pair)
	if v, ok := params["price"].(float64); ok && orderType == "limit" {
		price = v
	}

	o := &order{
		ID:               uuid.New().String(),
		TradingPair:      pair,
		Side:             side,
		OrderType:        orderType,
		Quantity:         quantity,
		ExecutedPrice:    round2(price),
		ExecutedQuantity: quantity,
		Status:           "filled",
		Timestamp:        time.Now().UTC(),
	}

	d.mu.Lock()
	d.orders[o.ID] = o
	d.mu.Unlock()

	return map[string]any{
		"order_id":          o.ID,
		"trading_pair":      o.TradingPair,
		"side":              o.Side,
		"status":            o.Status,
		"executed_price":    o.ExecutedPrice,
		"executed_quantity": o.ExecutedQuantity,
		"timestamp":         o.Timestamp.Format(time.RFC3339),
	}, nil
}

// GetOrderStatus handles the get_order_status capability.
func (d *TradeDesk) GetOrderStatus(_ context.Context, params map[string]any) (map[string]any, error) {
	orderID, err := stringParam(params, "order_id")
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	o, ok := d.orders[orderID]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("order %s not found", orderID)
	}

	return map[string]any{
		"order_id":           o.ID,
		"status":             o.Status,
		"executed_price":     o.ExecutedPrice,
		"executed_quantity":  o.ExecutedQuantity,
		"remaining_quantity": 0.0,
	}, nil
}
