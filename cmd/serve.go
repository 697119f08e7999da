package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"gap_service/internal/api"
)

func newServeCommand(rt *state) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, rt)
		},
	}
}

func serve(ctx context.Context, rt *state) error {
	a, err := buildApp(ctx, rt.cfg, rt.log)
	if err != nil {
		return err
	}
	defer a.Close()

	gin.SetMode(rt.cfg.Server.Mode)
	routerCfg := api.RouterConfig{
		Handler: api.NewHandler(a.service, a.planner, rt.log),
		Logger:  rt.log,
	}
	if a.metrics != nil {
		routerCfg.Observer = a.metrics
		routerCfg.MetricsHandler = a.metrics.Handler()
		routerCfg.MetricsPath = rt.cfg.Metrics.Path
	}

	return api.NewServer(rt.cfg.Server, api.NewRouter(routerCfg), rt.log).Run(ctx)
}
