package capability

import (
	"fmt"

	"github.com/trademesh/trademesh/internal/dispatch"
)

// Profile returns the capability handlers for an agent role. The returned
// map is registered on the dispatcher and its keys advertised on the agent
// card.
func Profile(role string) (map[string]dispatch.HandlerFunc, error) {
	switch role {
	case "market":
		m := NewMarket()
		return map[string]dispatch.HandlerFunc{
			"market_analysis": m.Analyze,
			"risk_assessment": m.AssessRisk,
		}, nil
	case "trading":
		d := NewTradeDesk()
		return map[string]dispatch.HandlerFunc{
			"execute_trade":    d.ExecuteTrade,
			"get_order_status": d.GetOrderStatus,
		}, nil
	case "risk":
		rm := NewRiskManager()
		return map[string]dispatch.HandlerFunc{
			"assess_trade_risk":      rm.AssessTradeRisk,
			"monitor_portfolio_risk": rm.MonitorPortfolioRisk,
			"update_portfolio":       rm.UpdatePortfolio,
		}, nil
	case "reporting":
		r := NewReporter()
		return map[string]dispatch.HandlerFunc{
			"generate_performance_report":  r.GeneratePerformanceReport,
			"generate_portfolio_valuation": r.GeneratePortfolioValuation,
			"log_trade":                    r.LogTrade,
		}, nil
	default:
		return nil, fmt.Errorf("unknown agent role %q (want market, trading, risk, or reporting)", role)
	}
}
