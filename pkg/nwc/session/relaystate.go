package session

// RelayState is one relay's connection lifecycle, per spec.md §4.5's
// snapshot stream.
type RelayState int

const (
	RelayConnecting RelayState = iota
	RelayConnected
	RelayDisconnecting
	RelayDisconnected
	RelayFailed
)

func (s RelayState) String() string {
	switch s {
	case RelayConnecting:
		return "connecting"
	case RelayConnected:
		return "connected"
	case RelayDisconnecting:
		return "disconnecting"
	case RelayDisconnected:
		return "disconnected"
	case RelayFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RelaySnapshot is one relay's URL and state at a point in time.
type RelaySnapshot struct {
	URL   string
	State RelayState
}

// ConnectionState is the aggregate view across every configured relay,
// the ConnectionSnapshot sum type spec.md §9 calls for.
type ConnectionState int

const (
	ConnReady ConnectionState = iota
	ConnDegraded
	ConnDisconnected
	ConnFailed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnReady:
		return "ready"
	case ConnDegraded:
		return "degraded"
	case ConnDisconnected:
		return "disconnected"
	case ConnFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Aggregate implements spec.md §8 scenario S9: a relay that's actually
// Connected counts as ready regardless of what else is going on; if
// every relay is ready the connection is Ready, if only some are it's
// Degraded. With no relay ready, a Failed relay makes the whole
// connection Failed (mirrors the R/F partition in §4.6: F is non-empty
// and R is empty); otherwise everything is still Connecting or
// Disconnected, which reads as Disconnected rather than Failed.
func Aggregate(snapshots []RelaySnapshot) ConnectionState {
	if len(snapshots) == 0 {
		return ConnDisconnected
	}
	anyConnected, allConnected, anyFailed := false, true, false
	for _, s := range snapshots {
		if s.State == RelayConnected {
			anyConnected = true
		} else {
			allConnected = false
		}
		if s.State == RelayFailed {
			anyFailed = true
		}
	}
	switch {
	case allConnected:
		return ConnReady
	case anyConnected:
		return ConnDegraded
	case anyFailed:
		return ConnFailed
	default:
		return ConnDisconnected
	}
}
