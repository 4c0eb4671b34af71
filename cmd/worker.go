package main

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"staff-arabia/domain"
	"staff-arabia/infrastructure"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume document events",
	Long:  "Consume document-created events from EVENTS_URL and log each one.",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return run(fx.New(workerModule(cfg)))
}

func workerModule(cfg *infrastructure.Config) fx.Option {
	return fx.Options(
		coreModule(cfg),
		fx.Invoke(registerWorker),
	)
}

func registerWorker(lc fx.Lifecycle, cfg *infrastructure.Config, bus infrastructure.EventBus, logger *zap.Logger) {
	if cfg.EventsURL == "" {
		logger.Warn("EVENTS_URL not set, worker has nothing to consume")
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := bus.Consume(ctx, handleEvent(logger)); err != nil {
					logger.Error("consumer stopped", zap.Error(err))
				}
			}()
			logger.Info("worker started", zap.String("topic", cfg.EventsTopic))
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			wg.Wait()
			return nil
		},
	})
}

// handleEvent logs each created document. Contact messages are logged with their sender.
func handleEvent(logger *zap.Logger) func(infrastructure.DocumentCreated) {
	return func(ev infrastructure.DocumentCreated) {
		fields := []zap.Field{
			zap.String("kind", ev.Kind),
			zap.String("id", ev.ID),
			zap.Time("occurred_at", ev.OccurredAt),
		}

		switch domain.Kind(ev.Kind) {
		case domain.KindContactMessage:
			var msg domain.ContactMessage
			if err := json.Unmarshal(ev.Document, &msg); err != nil {
				logger.Warn("undecodable contact message", append(fields, zap.Error(err))...)
				return
			}
			logger.Info("contact message received",
				append(fields, zap.String("name", msg.Name), zap.String("email", msg.Email))...)
		case domain.KindJob:
			var job domain.Job
			if err := json.Unmarshal(ev.Document, &job); err != nil {
				logger.Warn("undecodable job", append(fields, zap.Error(err))...)
				return
			}
			logger.Info("job posted",
				append(fields, zap.String("title", job.Title), zap.String("company", job.Company))...)
		default:
			logger.Debug("document created", fields...)
		}
	}
}
