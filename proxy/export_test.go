package proxy

import "time"

// WithSweepInterval shortens the background sweep period for tests.
func WithSweepInterval(d time.Duration) Option {
	return func(p *Proxy) { p.sweepInterval = d }
}
