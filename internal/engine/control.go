package engine

import "github.com/deltran/settlement-core/internal/resilience"

// ActivateKillSwitch implements the §6 Control interface's manual override:
// an operator can halt all outbound sends for a corridor immediately.
func (s *Service) ActivateKillSwitch(corridor, actor, reason string) {
	s.registry.Kill(corridor).Activate(actor, reason)
}

// DeactivateKillSwitch reverses ActivateKillSwitch.
func (s *Service) DeactivateKillSwitch(corridor, actor, reason string) {
	s.registry.Kill(corridor).Deactivate(actor, reason)
}

// CorridorStatus reports one corridor's current resilience state for the
// ops Control interface.
type CorridorStatus struct {
	Corridor    string
	KillActive  bool
	BreakerOpen bool
	DLQDepth    int
}

// Corridors reports the resilience state of every corridor the registry
// has created state for (on a first Send, or a first Breaker, Kill or DLQ
// lookup), for dashboards or operator tooling built on top of
// this core (the UI itself is out of scope, per §1).
func (s *Service) Corridors() []CorridorStatus {
	names := s.registry.Corridors()
	out := make([]CorridorStatus, 0, len(names))
	for _, name := range names {
		out = append(out, CorridorStatus{
			Corridor:    name,
			KillActive:  s.registry.Kill(name).Active(),
			BreakerOpen: s.registry.Breaker(name).State() == resilience.StateOpen,
			DLQDepth:    s.registry.DLQ(name).Len(),
		})
	}
	return out
}
