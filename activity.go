package auth

import "time"

// DecisionObserver consumes gate decisions and store lookups for
// telemetry. Observers run inline and must not block.
type DecisionObserver interface {
	ObserveDecision(policy string, decision Decision)
	ObserveLookup(strategy, outcome string, elapsed time.Duration)
}

// DecisionObserverFunc adapts a function to the DecisionObserver interface,
// lookups are ignored.
type DecisionObserverFunc func(policy string, decision Decision)

// ObserveDecision implements DecisionObserver.
func (f DecisionObserverFunc) ObserveDecision(policy string, decision Decision) {
	if f == nil {
		return
	}
	f(policy, decision)
}

// ObserveLookup implements DecisionObserver.
func (f DecisionObserverFunc) ObserveLookup(string, string, time.Duration) {}

type noopDecisionObserver struct{}

func (noopDecisionObserver) ObserveDecision(string, Decision)            {}
func (noopDecisionObserver) ObserveLookup(string, string, time.Duration) {}

func normalizeDecisionObserver(o DecisionObserver) DecisionObserver {
	if o == nil {
		return noopDecisionObserver{}
	}
	return o
}
