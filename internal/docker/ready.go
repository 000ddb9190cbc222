package docker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
)

const maxPingBackoff = 5 * time.Second

// Pinger is the part of the Docker client WaitReady needs.
type Pinger interface {
	Ping(ctx context.Context) (types.Ping, error)
}

// WaitReady pings the engine until it answers. Connection failures are
// retried with a doubling delay starting at initial and capped at five
// seconds; any other error is returned at once.
func WaitReady(ctx context.Context, cli Pinger, initial time.Duration) (types.Ping, error) {
	delay := max(initial, time.Millisecond)
	for attempt := 1; ; attempt++ {
		ping, err := cli.Ping(ctx)
		if err == nil {
			return ping, nil
		}
		if !client.IsErrConnectionFailed(err) {
			return types.Ping{}, fmt.Errorf("ping docker engine: %w", err)
		}
		if attempt == 1 {
			slog.Info("Waiting for the Docker engine.", "component", "docker")
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return types.Ping{}, fmt.Errorf("docker engine unreachable after %d attempts: %w", attempt, ctx.Err())
		case <-t.C:
		}
		delay = min(delay*2, maxPingBackoff)
	}
}
