package resilience

import "time"

// Operation names of the adapter calls that run through an Executor. Each
// name gets its own circuit breaker.
const (
	OpJobPublish    = "nats.publish"
	OpTicketIssue   = "redis.ticket_issue"
	OpTicketConsume = "redis.ticket_consume"
)

// Config tunes retry and circuit breaking. Zero fields take DefaultConfig
// values.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	// OperationMaxAttempts overrides RetryMaxAttempts per operation name.
	OperationMaxAttempts map[string]int

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig suits the short calls on the submit and download request
// paths: three attempts finish within a quarter second, and a broken Redis or
// NATS trips the breaker after a handful of requests.
//
// Ticket consumption deletes the ticket in the same round trip, so a retry
// after a lost reply would report a live ticket as consumed. It runs once.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 50 * time.Millisecond,
		RetryMaxBackoff:     200 * time.Millisecond,
		RetryMultiplier:     2.0,

		OperationMaxAttempts: map[string]int{
			OpTicketConsume: 1,
		},

		BreakerEnabled:          true,
		BreakerMinRequests:      5,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      10 * time.Second,
		BreakerHalfOpenMaxCalls: 1,
	}
}

// MaxAttempts returns the attempt budget of operation.
func (c Config) MaxAttempts(operation string) int {
	if n, ok := c.OperationMaxAttempts[operation]; ok && n > 0 {
		return n
	}
	return c.RetryMaxAttempts
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}
	if out.OperationMaxAttempts == nil {
		out.OperationMaxAttempts = def.OperationMaxAttempts
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}
