package resolver

import "time"

// DefaultCooldownWindow is how long resolution short-circuits to "no
// suggestion" after the completion service reports rate limiting.
const DefaultCooldownWindow = 2 * time.Minute

// Cooldown is the process-wide rate-limit backoff state. The clock is
// injected so tests can manipulate time; all access happens on the single
// request path, so a plain timestamp suffices.
type Cooldown struct {
	now    func() time.Time
	window time.Duration
	until  time.Time
}

// NewCooldown creates a Cooldown with the given window. A window <= 0 uses
// DefaultCooldownWindow.
func NewCooldown(window time.Duration, now func() time.Time) *Cooldown {
	if window <= 0 {
		window = DefaultCooldownWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Cooldown{now: now, window: window}
}

// Trip starts (or extends) the cooldown window from now.
func (c *Cooldown) Trip() {
	c.until = c.now().Add(c.window)
}

// Active reports whether calls should short-circuit.
func (c *Cooldown) Active() bool {
	return c.now().Before(c.until)
}
