package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/lnwallet-oss/nwcclient/internal/logger"
	"github.com/lnwallet-oss/nwcclient/internal/ui"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/client"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/engine"
	"github.com/lnwallet-oss/nwcclient/pkg/nwc/session"
)

// connect builds a Client from the loaded config, waiting for the
// initial handshake (info fetch + encryption negotiation) to reach a
// terminal state before returning, the way start.go's list fetch used
// to block behind a spinner.
func connect(ctx context.Context) (*client.Client, error) {
	cfg := GetConfig()

	provider := session.NewPoolProvider(&logger.Log)
	c, err := client.NewClientFromURI(ctx, cfg.NWCUrl, provider, client.WithLogger(&logger.Log))
	if err != nil {
		return nil, fmt.Errorf("failed to parse nwc_url: %w", err)
	}

	s := ui.NewSpinner("Connecting to wallet", 11, "blue")
	snap := c.AwaitReady(ctx)
	s.Stop()

	if snap.Kind == engine.Failed {
		c.Close()
		return nil, fmt.Errorf("failed to connect to wallet: %w", snap.Failure)
	}
	if snap.Kind == engine.PartialReady {
		pending := make([]string, 0, len(snap.Pending))
		for _, rh := range snap.Pending {
			pending = append(pending, rh.URL())
		}
		logger.Log.Warn().Strs("pending_relays", pending).Msg("wallet connected to some but not all configured relays")
	}
	return c, nil
}

// requestTimeout returns the configured per-request deadline.
func requestTimeout() time.Duration {
	cfg := GetConfig()
	return time.Duration(cfg.RequestTimeoutSeconds) * time.Second
}
