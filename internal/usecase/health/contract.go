package health

import "context"

// Pinger checks preset store availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// UpstreamChecker checks an external service's availability.
type UpstreamChecker interface {
	Status(ctx context.Context) error
}
