package ledger

import "time"

// StateRecord returns the encoded state as it is persisted.
func (l *Ledger) StateRecord() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.MarshalBinary()
}

// NewRateGateAt is RateGate with a caller-controlled clock.
func NewRateGateAt(rate float64, burst int, now func() time.Time) Gate {
	return newRateGate(rate, burst, now)
}
