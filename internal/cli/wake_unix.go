//go:build !windows

package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/adityak74/weatherweave/internal/core/services"
)

// watchWake turns SIGUSR1 into a wake-triggered run until ctx ends.
func watchWake(ctx context.Context, updater *services.AutoUpdater, logger *slog.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			if updater.TriggerWake() {
				logger.Info("wake signal received, regenerating")
			} else {
				logger.Debug("wake signal ignored, update on wake is off")
			}
		}
	}
}
