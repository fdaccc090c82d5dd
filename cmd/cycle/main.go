package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"lighthouse.app/cityintel/common/id"
	"lighthouse.app/cityintel/common/logger"
	"lighthouse.app/cityintel/common/otel"
	"lighthouse.app/cityintel/core/config"
	"lighthouse.app/cityintel/internal/model"
	"lighthouse.app/cityintel/internal/service"
)

// cycle runs a single pipeline pass and prints the resulting snapshot as JSON.
func main() {
	timeout := flag.Duration("timeout", 15*time.Minute, "abort the cycle after this long")
	full := flag.Bool("full", false, "print the whole snapshot instead of cards, chart and follow-up")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.ServiceTypeCycle)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Setup(cfg)

	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	os.Exit(run(ctx, cfg, *timeout, *full, telemetry))
}

func run(ctx context.Context, cfg config.Config, timeout time.Duration, full bool, telemetry *otel.Telemetry) int {
	defer func() {
		if telemetry != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = telemetry.Shutdown(shutdownCtx)
		}
	}()

	services, err := service.Build(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		slog.ErrorContext(ctx, "failed to build services", "error", err)
		return 1
	}
	defer services.Close()

	cycleID, err := services.Orchestrator.Start(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to start cycle", "error", err)
		return 1
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{CycleID: logger.Ptr(cycleID), Component: "lighthouse.cmd.cycle"})
	slog.InfoContext(ctx, "cycle started")

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := services.Orchestrator.Wait(waitCtx, cycleID); err != nil {
		services.Orchestrator.Stop()
		slog.ErrorContext(ctx, "cycle did not finish", "error", err)
		return 1
	}

	snap := services.Orchestrator.Snapshot()
	slog.InfoContext(ctx, "cycle finished",
		"stage", snap.StageName,
		"cards", len(snap.Cards),
		"escalations", snap.Escalations,
		"archive_count", snap.ArchiveCount)

	var out any = snap
	if !full {
		out = summary{
			CycleID:  snap.CycleID,
			Cards:    snap.Cards,
			Chart:    snap.Chart,
			Trends:   snap.Trends,
			FollowUp: snap.FollowUp,
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		slog.ErrorContext(ctx, "failed to write result", "error", err)
		return 1
	}
	return 0
}

type summary struct {
	CycleID  int64                  `json:"cycle_id,string"`
	Cards    []model.IssueCard      `json:"cards"`
	Chart    *model.ChartConfig     `json:"chart,omitempty"`
	Trends   []model.CardTrend      `json:"trends"`
	FollowUp []model.FollowUpResult `json:"follow_up"`
}
