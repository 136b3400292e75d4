package a2a

// CapabilityCatalog maps every known capability name to its description.
// Agent cards pick the subset the agent actually serves.
var CapabilityCatalog = map[string]string{
	"market_analysis":               "Analyze market conditions for a trading pair",
	"risk_assessment":               "Score the current market risk for a trading pair",
	"execute_trade":                 "Place a spot order on the exchange",
	"get_order_status":              "Query the status of a previously placed order",
	"assess_trade_risk":             "Evaluate the risk of a proposed trade before execution",
	"monitor_portfolio_risk":        "Report portfolio-wide risk exposure",
	"update_portfolio":              "Apply a filled order to portfolio holdings",
	"generate_performance_report":   "Summarize portfolio performance over a period",
	"generate_portfolio_valuation":  "Compute the current total portfolio value",
	"log_trade":                     "Record an executed trade in the trade journal",
}

// BuildAgentCard assembles the discovery card for an agent serving the
// given capabilities.
func BuildAgentCard(id, name, description, baseURL string, capabilities []string) AgentCard {
	card := AgentCard{
		ID:          id,
		Name:        name,
		Description: description,
		URL:         baseURL,
		Version:     "0.1.0",
	}
	for _, c := range capabilities {
		card.Capabilities = append(card.Capabilities, Capability{
			Name:        c,
			Description: CapabilityCatalog[c],
		})
	}
	return card
}
