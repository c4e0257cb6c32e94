package usecase

import "github.com/vitos/binary_mg_bot/internal/domain"

// Metrics receives orchestrator counters.
type Metrics interface {
	StateChanged(state string)
	LevelResolved(outcome domain.Outcome)
	SequenceRecorded(seq *domain.Sequence, agg domain.SessionAggregates)
	GateBlocked(reason domain.GateReason)
	SignalRejected(check string)
	Reconnect(ok bool)
}

type NopMetrics struct{}

func (NopMetrics) StateChanged(string)                                          {}
func (NopMetrics) LevelResolved(domain.Outcome)                                 {}
func (NopMetrics) SequenceRecorded(*domain.Sequence, domain.SessionAggregates) {}
func (NopMetrics) GateBlocked(domain.GateReason)                                {}
func (NopMetrics) SignalRejected(string)                                        {}
func (NopMetrics) Reconnect(bool)                                               {}
