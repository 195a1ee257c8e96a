package main

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Strob0t/moecore/internal/service"
)

func newWorkerCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:         "worker",
		Short:       "Consume orchestrator tasks from NATS and publish their results",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"daemon": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.NATS.URL == "" {
				return errors.New("worker requires nats.url")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, c.cfg, appOptions{orchestrator: true, queue: true})
			if err != nil {
				return err
			}
			defer a.Close()

			w := service.NewWorkerService(c.cfg.Worker.ID, a.orch, a.queue)
			cancel, err := w.Start(ctx)
			if err != nil {
				return err
			}
			defer cancel()

			<-ctx.Done()
			slog.Info("worker stopping", "worker_id", w.ID())
			return nil
		},
	}
}
