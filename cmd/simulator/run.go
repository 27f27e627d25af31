package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yajasvikhanna/Flytbase/internal/app"
	"github.com/yajasvikhanna/Flytbase/internal/config"
	"github.com/yajasvikhanna/Flytbase/internal/gateway"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/logger"
	"github.com/yajasvikhanna/Flytbase/internal/sim"
)

var (
	runScenarioPath string
	runTick         time.Duration
	runLogLevel     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fly a scenario against an in-process coordination core",
	Long:  "run boots the full coordination stack on the in-memory store and drives the scenario's missions through the ingestion gateway until every flight lands.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Init(runLogLevel, "console"); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer logger.Sync()

		scenario, err := sim.LoadScenario(runScenarioPath)
		if err != nil {
			return err
		}

		cfg := config.Default()
		cfg.Store.Driver = "memory"

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		application, err := app.Bootstrap(ctx, cfg)
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		defer application.Shutdown()

		logger.Info("scenario loaded",
			zap.String("path", runScenarioPath),
			zap.Int("drones", len(scenario.Drones)),
			zap.Int("missions", len(scenario.Missions)),
			zap.Duration("tick", runTick),
		)

		engine := sim.NewEngine(scenario, application.Coordinator, gateway.New(application.Coordinator), runTick)
		if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runScenarioPath, "scenario", "s", "scenario.yaml", "path to the scenario file")
	runCmd.Flags().DurationVarP(&runTick, "tick", "t", time.Second, "simulation tick interval")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
