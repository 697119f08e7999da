package model

import (
	"context"
	"encoding/json"
)

// PlanGenerator produces a business plan narrative from a market package.
// Implementations are opaque; the analysis engine never inspects the plan.
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, pkg MarketPackage) (*BusinessPlan, error)
}

// BusinessPlan is the generator response. Only the name and summary are
// typed; every other top level field is kept verbatim in Sections and written
// back flat, so the generator can evolve its structure freely.
type BusinessPlan struct {
	BusinessName string
	Summary      string
	Sections     map[string]json.RawMessage
}

const (
	planNameKey    = "business_name"
	planSummaryKey = "executive_summary"
)

func (p BusinessPlan) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Sections)+2)
	for k, v := range p.Sections {
		out[k] = v
	}
	out[planNameKey] = p.BusinessName
	out[planSummaryKey] = p.Summary
	return json.Marshal(out)
}

func (p *BusinessPlan) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = BusinessPlan{}
	if v, ok := raw[planNameKey]; ok {
		if err := json.Unmarshal(v, &p.BusinessName); err != nil {
			return err
		}
		delete(raw, planNameKey)
	}
	if v, ok := raw[planSummaryKey]; ok {
		if err := json.Unmarshal(v, &p.Summary); err != nil {
			return err
		}
		delete(raw, planSummaryKey)
	}
	if len(raw) > 0 {
		p.Sections = raw
	}
	return nil
}
