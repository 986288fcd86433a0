package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/hybridsig"
)

// Proposal describes a commit awaiting the gate's decision. Plaintext
// must not be retained or modified by the gate.
type Proposal struct {
	LedgerID     string
	Index        uint64
	Plaintext    []byte
	KEMMode      hybridkem.Mode
	SigMode      hybridsig.Mode
	Confidential bool
}

// Gate decides whether a commit may proceed. A denial leaves the ledger
// unchanged and surfaces as a PolicyError.
type Gate interface {
	Allow(ctx context.Context, p Proposal) bool
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context, p Proposal) bool

// Allow calls f.
func (f GateFunc) Allow(ctx context.Context, p Proposal) bool { return f(ctx, p) }

// AllowAll is the default gate.
var AllowAll Gate = GateFunc(func(context.Context, Proposal) bool { return true })

// MaxSizeGate denies plaintexts longer than limit bytes.
func MaxSizeGate(limit int) Gate {
	return GateFunc(func(_ context.Context, p Proposal) bool { return len(p.Plaintext) <= limit })
}

// AllGates allows a commit only when every gate does. Gates run in order
// and evaluation stops at the first denial.
func AllGates(gates ...Gate) Gate {
	return GateFunc(func(ctx context.Context, p Proposal) bool {
		for _, g := range gates {
			if !g.Allow(ctx, p) {
				return false
			}
		}
		return true
	})
}

// RateGate limits commits to rate per second with bursts of up to burst,
// using a token bucket. A non-positive rate allows everything.
func RateGate(rate float64, burst int) Gate {
	return newRateGate(rate, burst, time.Now)
}

type rateGate struct {
	mu         sync.Mutex
	rate       float64
	burst      float64
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
}

func newRateGate(rate float64, burst int, now func() time.Time) *rateGate {
	if burst < 1 {
		burst = 1
	}
	return &rateGate{
		rate:       rate,
		burst:      float64(burst),
		tokens:     float64(burst),
		lastRefill: now(),
		now:        now,
	}
}

// Allow consumes one token.
func (g *rateGate) Allow(context.Context, Proposal) bool {
	if g.rate <= 0 {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.tokens += now.Sub(g.lastRefill).Seconds() * g.rate
	if g.tokens > g.burst {
		g.tokens = g.burst
	}
	g.lastRefill = now

	if g.tokens >= 1 {
		g.tokens--
		return true
	}
	return false
}
