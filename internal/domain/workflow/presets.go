package workflow

// Presets holds the built-in workflow templates keyed by name. Templates
// reference capabilities, not concrete agents; agent discovery happens at
// execution time by capability.
var Presets = map[string]*Template{
	"market_analysis_to_trade": {
		Name:           "market_analysis_to_trade",
		Description:    "Analyze a market, assess the proposed trade, execute it, and log the result.",
		RequiredParams: []string{"trading_pair", "side", "quantity"},
		Steps: []StepTemplate{
			{
				ID:         "analyze",
				Name:       "analyze_market",
				Capability: "market_analysis",
				Parameters: map[string]any{
					"trading_pair": "{{params.trading_pair}}",
					"interval":     "1h",
				},
			},
			{
				ID:         "assess",
				Name:       "assess_risk",
				Capability: "assess_trade_risk",
				Parameters: map[string]any{
					"trading_pair": "{{params.trading_pair}}",
					"side":         "{{params.side}}",
					"quantity":     "{{params.quantity}}",
					"confidence":   "{{steps.analyze_market.confidence}}",
				},
				DependsOn: []string{"analyze"},
			},
			{
				ID:         "execute",
				Name:       "execute_trade",
				Capability: "execute_trade",
				Parameters: map[string]any{
					"trading_pair": "{{params.trading_pair}}",
					"side":         "{{params.side}}",
					"quantity":     "{{params.quantity}}",
					"order_type":   "market",
				},
				DependsOn: []string{"assess"},
			},
			{
				ID:         "log",
				Name:       "log_trade",
				Capability: "log_trade",
				Parameters: map[string]any{
					"order_id":     "{{steps.execute_trade.order_id}}",
					"trading_pair": "{{params.trading_pair}}",
					"side":         "{{params.side}}",
				},
				DependsOn: []string{"execute"},
			},
		},
	},

	"portfolio_rebalance": {
		Name:           "portfolio_rebalance",
		Description:    "Value the portfolio and analyze the market in parallel, rebalance, then record the outcome.",
		RequiredParams: []string{"trading_pair", "target_allocation"},
		Steps: []StepTemplate{
			{
				ID:         "valuation",
				Name:       "portfolio_valuation",
				Capability: "generate_portfolio_valuation",
				Parameters: map[string]any{},
			},
			{
				ID:         "analyze",
				Name:       "analyze_market",
				Capability: "market_analysis",
				Parameters: map[string]any{
					"trading_pair": "{{params.trading_pair}}",
					"interval":     "4h",
				},
			},
			{
				ID:         "rebalance",
				Name:       "rebalance_trade",
				Capability: "execute_trade",
				Parameters: map[string]any{
					"trading_pair": "{{params.trading_pair}}",
					"side":         "{{steps.analyze_market.recommendation}}",
					"quantity":     "{{params.target_allocation}}",
					"order_type":   "market",
				},
				DependsOn: []string{"valuation", "analyze"},
			},
			{
				ID:         "update",
				Name:       "update_portfolio",
				Capability: "update_portfolio",
				Parameters: map[string]any{
					"order_id": "{{steps.rebalance_trade.order_id}}",
				},
				DependsOn: []string{"rebalance"},
			},
		},
	},

	"risk_assessment": {
		Name:           "risk_assessment",
		Description:    "Assess a single proposed trade and check portfolio-wide exposure.",
		RequiredParams: []string{"trading_pair", "side", "quantity"},
		Steps: []StepTemplate{
			{
				ID:         "trade_risk",
				Name:       "trade_risk",
				Capability: "assess_trade_risk",
				Parameters: map[string]any{
					"trading_pair": "{{params.trading_pair}}",
					"side":         "{{params.side}}",
					"quantity":     "{{params.quantity}}",
				},
			},
			{
				ID:         "portfolio_risk",
				Name:       "portfolio_risk",
				Capability: "monitor_portfolio_risk",
				Parameters: map[string]any{},
				DependsOn:  []string{"trade_risk"},
			},
		},
	},

	"performance_report": {
		Name:           "performance_report",
		Description:    "Value the portfolio, then generate a performance report over a period.",
		RequiredParams: []string{"period"},
		Steps: []StepTemplate{
			{
				ID:         "valuation",
				Name:       "portfolio_valuation",
				Capability: "generate_portfolio_valuation",
				Parameters: map[string]any{},
			},
			{
				ID:         "report",
				Name:       "performance_report",
				Capability: "generate_performance_report",
				Parameters: map[string]any{
					"period":      "{{params.period}}",
					"total_value": "{{steps.portfolio_valuation.total_value}}",
				},
				DependsOn: []string{"valuation"},
			},
		},
	},
}
