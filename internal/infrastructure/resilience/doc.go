/*
Package resilience guards outbound calls with circuit breakers.

A Breaker trips open after a run of consecutive failures, rejects calls with
ErrCircuitOpen while open, and after a cool-down lets a limited number of
trial calls through (half-open). A successful trial closes it again; a failed
trial re-opens it.

Group hands out one Breaker per key, so a failing upstream host does not
block calls to healthy ones:

	breakers := resilience.NewGroup(resilience.Settings{
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	})

	err := breakers.Get("api.example.com").Do(func() error {
		return send()
	})

# States

	Closed --[threshold failures]--> Open --[timeout]--> Half-Open --[success]--> Closed
	                                   ^                      |
	                                   +------[failure]-------+
*/
package resilience
