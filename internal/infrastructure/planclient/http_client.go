// Package planclient talks to the external business plan generator.
package planclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gap_service/internal/domain/model"
)

const defaultTimeout = 60 * time.Second

type HTTPPlanClient struct {
	endpoint string
	client   *http.Client
}

var _ model.PlanGenerator = (*HTTPPlanClient)(nil)

func NewHTTPPlanClient(endpoint string, timeout time.Duration) *HTTPPlanClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPPlanClient{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type PlanRequest struct {
	Location         string  `json:"location"`
	MajorSector      string  `json:"major_sector"`
	Niche            string  `json:"niche"`
	GapScore         float64 `json:"gap_score"`
	CompetitorsFound int     `json:"competitors_found"`
	AreaSqKm         float64 `json:"area_sq_km"`
}

func (c *HTTPPlanClient) GeneratePlan(ctx context.Context, pkg model.MarketPackage) (*model.BusinessPlan, error) {
	reqBody := PlanRequest{
		Location:         pkg.Location,
		MajorSector:      pkg.MajorSector,
		Niche:            pkg.Niche,
		GapScore:         pkg.GapScore,
		CompetitorsFound: pkg.CompetitorCount,
		AreaSqKm:         pkg.AreaSqKm,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create plan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plan service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil, fmt.Errorf("plan service returned status: %d", resp.StatusCode)
	}

	var plan model.BusinessPlan
	if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan response: %w", err)
	}
	return &plan, nil
}
