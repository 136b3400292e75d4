package workflow_test

import (
	"errors"
	"testing"

	"github.com/trademesh/trademesh/internal/domain/workflow"
)

func TestTemplateInstantiate(t *testing.T) {
	tmpl := workflow.Presets["market_analysis_to_trade"]
	wf, err := tmpl.Instantiate(map[string]any{
		"trading_pair": "BTC/USD",
		"side":         "buy",
		"quantity":     0.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wf.Status != workflow.StatusCreated {
		t.Fatalf("expected CREATED, got %s", wf.Status)
	}
	if len(wf.Steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(wf.Steps))
	}
	for _, s := range wf.Steps {
		if s.Status != workflow.StepStatusPending {
			t.Fatalf("step %s not pending: %s", s.ID, s.Status)
		}
	}
}

func TestTemplateInstantiate_MissingParam(t *testing.T) {
	tmpl := workflow.Presets["market_analysis_to_trade"]
	_, err := tmpl.Instantiate(map[string]any{"trading_pair": "BTC/USD"})
	if !errors.Is(err, workflow.ErrMissingParameter) {
		t.Fatalf("expected ErrMissingParameter, got %v", err)
	}
}

func TestTemplateInstantiate_IsolatedFromTemplate(t *testing.T) {
	tmpl := workflow.Presets["risk_assessment"]
	params := map[string]any{"trading_pair": "BTC/USD", "side": "buy", "quantity": 1}
	wf, err := tmpl.Instantiate(params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wf.Steps[0].Parameters["trading_pair"] = "mutated"
	if tmpl.Steps[0].Parameters["trading_pair"] == "mutated" {
		t.Fatal("instantiation shares parameter maps with the template")
	}
}

func TestPresetsAreValid(t *testing.T) {
	for name, tmpl := range workflow.Presets {
		params := map[string]any{}
		for _, p := range tmpl.RequiredParams {
			params[p] = "x"
		}
		if _, err := tmpl.Instantiate(params); err != nil {
			t.Fatalf("preset %s does not instantiate: %v", name, err)
		}
	}
}
