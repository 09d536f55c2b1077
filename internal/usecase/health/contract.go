package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// UpstreamChecker checks an external service's availability.
type UpstreamChecker interface {
	HealthCheck(ctx context.Context) error
}
