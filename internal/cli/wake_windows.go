package cli

import (
	"context"
	"log/slog"

	"github.com/adityak74/weatherweave/internal/core/services"
)

// watchWake is a no-op: there is no SIGUSR1 on windows.
func watchWake(ctx context.Context, _ *services.AutoUpdater, _ *slog.Logger) {
	<-ctx.Done()
}
