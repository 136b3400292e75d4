package workflow

import "fmt"

// Template is a named, reusable workflow definition. Instantiation binds a
// parameter bag and produces a fresh Workflow; the caller assigns the id
// and timestamps.
type Template struct {
	Name           string
	Description    string
	RequiredParams []string
	Steps          []StepTemplate
}

// StepTemplate describes one step of a template. Parameters may contain
// placeholders resolved at execution time against the workflow's input
// parameters and prior step results.
type StepTemplate struct {
	ID         string
	Name       string
	Capability string
	Parameters map[string]any
	DependsOn  []string
}

// Instantiate binds params to the template and returns a CREATED workflow
// with all steps PENDING. Missing required parameters are rejected.
func (t *Template) Instantiate(params map[string]any) (*Workflow, error) {
	for _, req := range t.RequiredParams {
		if _, ok := params[req]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingParameter, req)
		}
	}

	steps := make([]Step, len(t.Steps))
	for i, st := range t.Steps {
		steps[i] = Step{
			ID:         st.ID,
			Name:       st.Name,
			Capability: st.Capability,
			Parameters: cloneMap(st.Parameters),
			DependsOn:  append([]string(nil), st.DependsOn...),
			Status:     StepStatusPending,
		}
	}
	if err := Validate(steps); err != nil {
		return nil, err
	}

	return &Workflow{
		Name:       t.Name,
		Status:     StatusCreated,
		Steps:      steps,
		Context:    map[string]any{},
		Parameters: cloneMap(params),
	}, nil
}
