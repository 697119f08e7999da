package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gap_service/internal/domain/model"
)

// Analyzer is the part of core.Service the handlers need.
type Analyzer interface {
	Analyze(ctx context.Context, req model.AnalysisRequest) (*model.MarketPackage, error)
	Scan(ctx context.Context, req model.AnalysisRequest) (*model.ScanReport, error)
	Catalog() model.Catalog
}

type Handler struct {
	analyzer Analyzer
	planner  model.PlanGenerator
	log      *zap.Logger
}

// NewHandler builds the HTTP handlers. planner may be nil, in which case
// strategy generation answers 503.
func NewHandler(analyzer Analyzer, planner model.PlanGenerator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{analyzer: analyzer, planner: planner, log: logger.Named("api")}
}

type AnalysisRequest struct {
	Domain   string `json:"domain"`
	Location string `json:"location"`
	// RadiusMeters overrides the configured search radius when positive.
	RadiusMeters float64 `json:"radius_meters"`
}

type StrategyResponse struct {
	MarketGapScore  float64             `json:"market_gap_score"`
	BestOpportunity string              `json:"best_opportunity"`
	Status          string              `json:"status"`
	Location        string              `json:"location"`
	AreaSqKm        float64             `json:"area_sq_km"`
	BusinessPlan    *model.BusinessPlan `json:"business_plan"`
}

type DomainInfo struct {
	model.Domain
	Subcategories map[string][]string `json:"subcategories,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "running", "message": "Market gap analysis API"})
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ListDomains(c *gin.Context) {
	catalog := h.analyzer.Catalog()
	domains := catalog.Domains()
	out := make([]DomainInfo, 0, len(domains))
	for _, d := range domains {
		info := DomainInfo{Domain: d}
		for _, cat := range d.Categories {
			if subs := catalog.Subcategories(cat); subs != nil {
				if info.Subcategories == nil {
					info.Subcategories = make(map[string][]string)
				}
				info.Subcategories[cat] = subs
			}
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, gin.H{"domains": out})
}

func (h *Handler) MarketGap(c *gin.Context) {
	req, ok := h.bindAnalysis(c)
	if !ok {
		return
	}
	pkg, err := h.analyzer.Analyze(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "market gap analysis failed", err)
		return
	}
	c.JSON(http.StatusOK, pkg)
}

func (h *Handler) DomainScan(c *gin.Context) {
	req, ok := h.bindAnalysis(c)
	if !ok {
		return
	}
	report, err := h.analyzer.Scan(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "domain scan failed", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) GenerateStrategy(c *gin.Context) {
	if h.planner == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "Plan generation is not configured"})
		return
	}
	req, ok := h.bindAnalysis(c)
	if !ok {
		return
	}

	pkg, err := h.analyzer.Analyze(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "market gap analysis failed", err)
		return
	}
	plan, err := h.planner.GeneratePlan(c.Request.Context(), *pkg)
	if err != nil {
		h.log.Error("plan generation failed", zap.String("niche", pkg.Niche), zap.Error(err))
		c.JSON(http.StatusBadGateway, errorResponse{Error: "Failed to generate business plan", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, StrategyResponse{
		MarketGapScore:  pkg.GapScore,
		BestOpportunity: pkg.Niche,
		Status:          pkg.Status,
		Location:        pkg.Location,
		AreaSqKm:        pkg.AreaSqKm,
		BusinessPlan:    plan,
	})
}

func (h *Handler) bindAnalysis(c *gin.Context) (model.AnalysisRequest, bool) {
	var req AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body", Details: err.Error()})
		return model.AnalysisRequest{}, false
	}
	if req.Domain == "" || req.Location == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Domain and location are required"})
		return model.AnalysisRequest{}, false
	}
	if req.RadiusMeters < 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "radius_meters must not be negative"})
		return model.AnalysisRequest{}, false
	}
	return model.AnalysisRequest{Domain: req.Domain, Location: req.Location, RadiusMeters: req.RadiusMeters}, true
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(msg, zap.Int("status", status), zap.Error(err))
	} else {
		h.log.Debug(msg, zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, errorResponse{Error: http.StatusText(status), Details: err.Error()})
}

// statusFor maps the analysis error taxonomy to HTTP status codes.
func statusFor(err error) int {
	var (
		pageErr      *model.ProviderPageError
		transportErr *model.TransportError
	)
	switch {
	case errors.Is(err, model.ErrLocationNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidDomain):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrCancelled):
		return http.StatusGatewayTimeout
	case errors.Is(err, model.ErrNoCategories),
		errors.As(err, &transportErr),
		errors.As(err, &pageErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
