// The relay command runs one query through the full pipeline: analysis
// input via flags, plan building, level-parallel execution with progress
// streamed to stderr, and the aggregated result printed as JSON on
// stdout. The natural-language analyser is an external collaborator; this
// binary accepts its output shape (intent, parameters, entities) directly.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"veritas.app/relay/common/id"
	"veritas.app/relay/common/logger"
	"veritas.app/relay/common/otel"
	"veritas.app/relay/core/config"
	"veritas.app/relay/internal/app"
	"veritas.app/relay/internal/domain"
	"veritas.app/relay/internal/planner"
	"veritas.app/relay/internal/progress"
	"veritas.app/relay/internal/progress/redissink"
)

func main() {
	intent := flag.String("intent", "unknown", "query intent from the analyser (fact, procedure, comparison, timeline, calculation, definition, location, contact, unknown)")
	location := flag.String("location", "", "location parameter from the analyser")
	organisation := flag.String("organisation", "", "organisation parameter from the analyser")
	entities := flag.String("entities", "", "comma-separated entities from the analyser")
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: relay [flags] <query>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()
	cfg := config.Load()

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Setup(cfg)
	if telemetry != nil {
		defer func() { _ = telemetry.Shutdown(context.Background()) }()
	}

	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, query, *intent, *location, *organisation, *entities); err != nil {
		slog.ErrorContext(ctx, "query failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, query, intent, location, organisation, entities string) error {
	pipeline, err := app.Build(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer pipeline.Close()

	analysis := buildAnalysis(query, intent, location, organisation, entities)

	planID := id.New()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		PlanID:    logger.Ptr(planID),
		Component: "relay.cmd",
	})

	plan, err := planner.Build(planID, analysis)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "plan built",
		"steps", len(plan.Steps),
		"levels", len(plan.ExecutionOrder),
		"estimated_seconds", plan.EstimatedDuration)

	bus := progress.New(slog.Default())
	bus.Subscribe(ctx, func(_ context.Context, event domain.ProgressEvent) {
		fmt.Fprintf(os.Stderr, "[%5.1f%%] %s\n", event.Percentage, event.Message)
	})

	if pipeline.Redis != nil {
		sink := redissink.New(pipeline.Redis, cfg.Redis.Stream, slog.Default())
		sink.Attach(ctx, bus)
	}

	sched := pipeline.NewScheduler(bus)
	result, err := sched.Execute(ctx, plan, ctx.Done())
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func buildAnalysis(query, intent, location, organisation, entities string) domain.QueryAnalysis {
	params := map[string]any{}
	if location != "" {
		params["location"] = location
	}
	if organisation != "" {
		params["organisation"] = organisation
	}

	var entityList []domain.Entity
	for i, text := range strings.Split(entities, ",") {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		entityList = append(entityList, domain.Entity{Text: text, Kind: "entity", Position: i})
	}

	return domain.QueryAnalysis{
		Query:      query,
		Intent:     domain.Intent(intent),
		Parameters: params,
		Entities:   entityList,
	}
}
