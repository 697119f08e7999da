package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"gap_service/internal/domain/model"
)

type analysisFlags struct {
	domain   string
	location string
	radius   float64
	timeout  time.Duration
}

func (f *analysisFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.domain, "domain", "d", "", "business domain key, e.g. food")
	fs.StringVarP(&f.location, "location", "l", "", "free text location to analyse")
	fs.Float64VarP(&f.radius, "radius", "r", 0, "search radius in meters (default from config)")
	fs.DurationVar(&f.timeout, "timeout", 5*time.Minute, "overall analysis timeout")
	_ = cmd.MarkFlagRequired("domain")
	_ = cmd.MarkFlagRequired("location")
}

func (f *analysisFlags) request() (model.AnalysisRequest, error) {
	if f.radius < 0 {
		return model.AnalysisRequest{}, errors.New("--radius must not be negative")
	}
	return model.AnalysisRequest{Domain: f.domain, Location: f.location, RadiusMeters: f.radius}, nil
}

func newAnalyzeCommand(rt *state) *cobra.Command {
	flags := &analysisFlags{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Find the most under-served niche of a domain and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd, rt, flags, func(ctx context.Context, a *app, req model.AnalysisRequest) (any, error) {
				return a.service.Analyze(ctx, req)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newScanCommand(rt *state) *cobra.Command {
	flags := &analysisFlags{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Print per-category metrics and gap scores of a domain as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd, rt, flags, func(ctx context.Context, a *app, req model.AnalysisRequest) (any, error) {
				return a.service.Scan(ctx, req)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newDomainsCommand(rt *state) *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List the configured business domains",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), rt.cfg, rt.log)
			if err != nil {
				return err
			}
			defer a.Close()
			return writeJSON(cmd.OutOrStdout(), a.service.Catalog().Domains())
		},
	}
}

func runAnalysis(
	cmd *cobra.Command,
	rt *state,
	flags *analysisFlags,
	run func(ctx context.Context, a *app, req model.AnalysisRequest) (any, error),
) error {
	req, err := flags.request()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
	defer cancel()

	a, err := buildApp(ctx, rt.cfg, rt.log)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := run(ctx, a, req)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
