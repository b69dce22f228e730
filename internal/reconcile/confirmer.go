package reconcile

import (
	"context"
	"strings"

	"paradiso/internal/catalog"
	"paradiso/internal/normalize"
	"paradiso/internal/retry"
	"paradiso/internal/services"
	"paradiso/internal/textgen"
)

const stageConfirm = "confirm"

// Confirmer asks the backend which candidate, if any, matches a query.
type Confirmer struct {
	backend textgen.Backend
	policy  retry.Policy
}

// NewConfirmer builds a confirmation stage over backend.
func NewConfirmer(backend textgen.Backend, policy retry.Policy) *Confirmer {
	return &Confirmer{backend: backend, policy: policy}
}

// Confirm returns the chosen candidate's canonical object ID or abstention.
// No candidates means abstention without a backend call. An identifier that
// is not one of the candidates is also abstention.
func (c *Confirmer) Confirm(ctx context.Context, query string, candidates []catalog.Candidate) (normalize.Decision, error) {
	if len(candidates) == 0 {
		return normalize.Abstain(), nil
	}
	scope := make([]string, 0, len(candidates))
	records := make([]any, 0, len(candidates))
	for _, candidate := range candidates {
		scope = append(scope, candidate.ObjectID)
		records = append(records, candidate)
	}
	req := textgen.Request{
		Prompt:  ConfirmPrompt,
		Query:   query,
		Scope:   scope,
		Source:  textgen.SourceCatalog,
		Records: records,
	}
	var raw string
	err := c.policy.Do(services.WithStage(ctx, stageConfirm), stageConfirm, func(ctx context.Context) error {
		out, genErr := c.backend.Generate(ctx, req)
		if genErr != nil {
			return genErr
		}
		raw = out
		return nil
	})
	if err != nil {
		return normalize.Decision{}, err
	}

	decision := normalize.Identifier(raw)
	if decision.Abstained() {
		return decision, nil
	}
	for _, candidate := range candidates {
		if strings.EqualFold(candidate.ObjectID, decision.ObjectID) {
			return normalize.Decision{ObjectID: candidate.ObjectID}, nil
		}
	}
	return normalize.Abstain(), nil
}
