package workflow_test

import (
	"errors"
	"testing"

	"github.com/trademesh/trademesh/internal/domain/workflow"
)

func TestResolveParameters_WholePlaceholderKeepsType(t *testing.T) {
	params := map[string]any{"quantity": 1.5}
	tmpl := map[string]any{"quantity": "{{params.quantity}}"}

	out, err := workflow.ResolveParameters(tmpl, params, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q, ok := out["quantity"].(float64); !ok || q != 1.5 {
		t.Fatalf("expected float64 1.5, got %T %v", out["quantity"], out["quantity"])
	}
}

func TestResolveParameters_StepResultPath(t *testing.T) {
	ctx := map[string]any{
		"analyze_market": map[string]any{
			"signals": map[string]any{"rsi": 71.2},
		},
	}
	tmpl := map[string]any{"rsi": "{{steps.analyze_market.signals.rsi}}"}

	out, err := workflow.ResolveParameters(tmpl, nil, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["rsi"] != 71.2 {
		t.Fatalf("expected 71.2, got %v", out["rsi"])
	}
}

func TestResolveParameters_EmbeddedStringifies(t *testing.T) {
	params := map[string]any{"pair": "BTC/USD", "qty": 2}
	tmpl := map[string]any{"note": "order {{params.qty}} of {{params.pair}}"}

	out, err := workflow.ResolveParameters(tmpl, params, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["note"] != "order 2 of BTC/USD" {
		t.Fatalf("got %q", out["note"])
	}
}

func TestResolveParameters_NestedStructures(t *testing.T) {
	params := map[string]any{"pair": "ETH/USD"}
	tmpl := map[string]any{
		"order": map[string]any{"pair": "{{params.pair}}"},
		"tags":  []any{"{{params.pair}}", "spot"},
	}

	out, err := workflow.ResolveParameters(tmpl, params, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	order := out["order"].(map[string]any)
	if order["pair"] != "ETH/USD" {
		t.Fatalf("nested map not resolved: %v", order)
	}
	tags := out["tags"].([]any)
	if tags[0] != "ETH/USD" || tags[1] != "spot" {
		t.Fatalf("slice not resolved: %v", tags)
	}
}

func TestResolveParameters_Unresolvable(t *testing.T) {
	tmpl := map[string]any{"x": "{{steps.missing.value}}"}
	_, err := workflow.ResolveParameters(tmpl, nil, map[string]any{})
	if !errors.Is(err, workflow.ErrUnknownPlaceholder) {
		t.Fatalf("expected ErrUnknownPlaceholder, got %v", err)
	}
}

func TestResolveParameters_LiteralPassThrough(t *testing.T) {
	tmpl := map[string]any{"interval": "1h", "limit": 10}
	out, err := workflow.ResolveParameters(tmpl, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["interval"] != "1h" || out["limit"] != 10 {
		t.Fatalf("literals changed: %v", out)
	}
}
