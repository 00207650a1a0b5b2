package health

import "context"

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports a backend's Ping result. A failed ping yields the
// configured status so optional tiers can degrade instead of fail.
type PingChecker struct {
	name   string
	pinger Pinger
	onFail Status
}

// NewPingChecker creates a checker named name.
func NewPingChecker(name string, p Pinger, onFail Status) *PingChecker {
	return &PingChecker{name: name, pinger: p, onFail: onFail}
}

func (p *PingChecker) Name() string { return p.name }

func (p *PingChecker) Check(ctx context.Context) Result {
	if err := p.pinger.Ping(ctx); err != nil {
		r := Unhealthy(p.name+" unreachable", err)
		r.Status = p.onFail
		return r
	}
	return Healthy(p.name + " reachable")
}

var _ Checker = (*PingChecker)(nil)
