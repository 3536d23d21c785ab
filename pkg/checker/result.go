package checker

import (
	"fmt"
	"time"

	"openproxy/pkg/geo"
	"openproxy/pkg/proxy"
)

type Status int

const (
	StatusWorking Status = iota
	StatusFailed
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusWorking:
		return "working"
	case StatusFailed:
		return "failed"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of one probe. LatencyMs and Geo are only set when
// Status is StatusWorking; Reason only when it is StatusFailed. Use the
// Working, Failed and TimedOut constructors to keep it that way.
type Result struct {
	Proxy     proxy.Proxy   `json:"proxy" yaml:"proxy"`
	Status    Status        `json:"status" yaml:"status"`
	LatencyMs int64         `json:"latency_ms,omitempty" yaml:"latency_ms,omitempty"`
	Reason    string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	Geo       *geo.Location `json:"geo,omitempty" yaml:"geo,omitempty"`
	CheckedAt time.Time     `json:"checked_at" yaml:"checked_at"`
}

func Working(p proxy.Proxy, latencyMs int64, loc *geo.Location) Result {
	return Result{Proxy: p, Status: StatusWorking, LatencyMs: latencyMs, Geo: loc, CheckedAt: time.Now()}
}

func Failed(p proxy.Proxy, reason string) Result {
	return Result{Proxy: p, Status: StatusFailed, Reason: reason, CheckedAt: time.Now()}
}

func TimedOut(p proxy.Proxy) Result {
	return Result{Proxy: p, Status: StatusTimeout, CheckedAt: time.Now()}
}

func (r Result) IsWorking() bool {
	return r.Status == StatusWorking
}

func (r Result) String() string {
	switch r.Status {
	case StatusWorking:
		s := fmt.Sprintf("%s working (%dms)", r.Proxy, r.LatencyMs)
		if r.Geo != nil && !r.Geo.IsEmpty() {
			s += " [" + r.Geo.ShortDisplay() + "]"
		}
		return s
	case StatusFailed:
		return fmt.Sprintf("%s failed: %s", r.Proxy, r.Reason)
	default:
		return fmt.Sprintf("%s timed out", r.Proxy)
	}
}

// FilterWorking returns the proxies of all working results, in result order.
func FilterWorking(results []Result) []proxy.Proxy {
	var working []proxy.Proxy
	for _, r := range results {
		if r.IsWorking() {
			working = append(working, r.Proxy)
		}
	}
	return working
}

func CountWorking(results []Result) int {
	count := 0
	for _, r := range results {
		if r.IsWorking() {
			count++
		}
	}
	return count
}

func GroupByStatus(results []Result) map[Status][]Result {
	groups := make(map[Status][]Result)
	for _, r := range results {
		groups[r.Status] = append(groups[r.Status], r)
	}
	return groups
}
