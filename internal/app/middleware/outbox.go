package middleware

import (
	"context"
	"log/slog"

	"rentals/internal/app/commands"
	"rentals/internal/app/outbox"
)

// OutboxFlush wakes the outbox publisher after a command succeeds. Place it
// outside Transaction so it runs after commit. A failed wake-up is only logged:
// the records are already committed and the worker's poll picks them up.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil && logger != nil {
				logger.Warn("outbox wake-up failed", "command", cmd.Key(), "err", err)
			}
			return res, nil
		})
	}
}
