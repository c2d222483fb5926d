// cmd/pipeline/main.go
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/optilens/demand-engine/internal/cache"
	"github.com/optilens/demand-engine/internal/config"
	"github.com/optilens/demand-engine/internal/domain"
	"github.com/optilens/demand-engine/internal/service"
	"github.com/optilens/demand-engine/internal/storage"
	"github.com/optilens/demand-engine/internal/store"
	"github.com/optilens/demand-engine/internal/store/postgres"
	"github.com/optilens/demand-engine/pkg/logger"
)

func newService() (*service.PlanningService, func(), error) {
	cfg := config.Load()

	csvStore := store.NewCSVStore(cfg.App.DataDir)
	cleanup := func() {}

	var inputs store.InputSource = csvStore
	if cfg.Database.URL != "" {
		pg, err := postgres.NewInputSource(cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		cleanup = func() { pg.Close() }
		inputs = pg
	}

	estimates, err := cache.NewPredictionCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Cache unavailable, running without it")
		estimates = cache.NewNoopPredictionCache()
	}
	summaries, err := cache.NewSummaryCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Summary cache unavailable, running without it")
		summaries = cache.NewNoopSummaryCache()
	}

	var publisher storage.Publisher
	if cfg.Publish.Enabled {
		p, err := storage.NewMinioPublisher(cfg.Publish)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Artifact publishing disabled")
		} else {
			publisher = p
		}
	}

	return service.NewPlanningService(cfg, inputs, csvStore, estimates, summaries, publisher), cleanup, nil
}

func withService(run func(c *cli.Context, svc *service.PlanningService) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		svc, cleanup, err := newService()
		if err != nil {
			return err
		}
		defer cleanup()
		return run(c, svc)
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	app := &cli.App{
		Name:  "pipeline",
		Usage: "Run the demand planning pipeline stages",
		Commands: []*cli.Command{
			{
				Name:  "forecast",
				Usage: "Train the demand model and write the next-horizon forecast",
				Action: withService(func(c *cli.Context, svc *service.PlanningService) error {
					report, err := svc.RunForecast(c.Context)
					if err != nil {
						return err
					}
					return printJSON(report)
				}),
			},
			{
				Name:  "plan",
				Usage: "Derive production, allocation, and stock-risk plans from the forecast",
				Action: withService(func(c *cli.Context, svc *service.PlanningService) error {
					report, err := svc.RunPlanning(c.Context)
					if err != nil {
						return err
					}
					return printJSON(report)
				}),
			},
			{
				Name:  "optimize",
				Usage: "Cap the production plan at factory capacity",
				Action: withService(func(c *cli.Context, svc *service.PlanningService) error {
					plan, err := svc.RunOptimization(c.Context)
					if err != nil {
						return err
					}
					return printJSON(plan)
				}),
			},
			{
				Name:  "scenario",
				Usage: "Evaluate a what-if scenario against the committed baseline",
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:  "demand-multiplier",
						Usage: "Scale forecast demand (e.g. 1.10 for +10%)",
						Value: 1.0,
					},
					&cli.Float64Flag{
						Name:  "price-multiplier",
						Usage: "Scale realized prices (e.g. 1.05 for +5%)",
						Value: 1.0,
					},
					&cli.Float64Flag{
						Name:  "capacity-change-pct",
						Usage: "Change factory capacity by this percentage",
						Value: 0,
					},
				},
				Action: withService(func(c *cli.Context, svc *service.PlanningService) error {
					result, err := svc.RunScenario(c.Context, domain.ScenarioRequest{
						DemandMultiplier:  c.Float64("demand-multiplier"),
						PriceMultiplier:   c.Float64("price-multiplier"),
						CapacityChangePct: c.Float64("capacity-change-pct"),
					})
					if err != nil {
						return err
					}
					return printJSON(result)
				}),
			},
			{
				Name:  "all",
				Usage: "Run forecast, plan, and optimize in sequence",
				Action: withService(func(c *cli.Context, svc *service.PlanningService) error {
					if _, err := svc.RunForecast(c.Context); err != nil {
						return err
					}
					if _, err := svc.RunPlanning(c.Context); err != nil {
						return err
					}
					plan, err := svc.RunOptimization(c.Context)
					if err != nil {
						return err
					}
					return printJSON(plan)
				}),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("pipeline failed")
	}
}
