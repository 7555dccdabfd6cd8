package hart

import "time"

// Stats accumulates run-level statistics the way original_source's
// Statistic type does (elapsed host time and a retired-instruction count),
// reported as a simulated frequency at run completion rather than on every
// instruction.
type Stats struct {
	started time.Time
	running bool
	Elapsed time.Duration
	Retired uint64
}

// Start begins (or resumes) timing. Safe to call once at the beginning of a
// run.
func (s *Stats) Start() {
	s.started = time.Now()
	s.running = true
}

// Stop accumulates elapsed time since the last Start and stops timing.
func (s *Stats) Stop() {
	if !s.running {
		return
	}
	s.Elapsed += time.Since(s.started)
	s.running = false
}

// Observe copies the hart's retired-instruction count into s. The ISS
// driver calls it once, at run completion.
func (s *Stats) Observe(h *Hart) {
	s.Retired = h.Retired
}

// HertzEquivalent reports the simulated clock frequency implied by retired
// instruction count over elapsed wall time, assuming one instruction per
// simulated cycle. Zero elapsed time reports zero rather than dividing by
// zero.
func (s *Stats) HertzEquivalent() float64 {
	seconds := s.Elapsed.Seconds()
	if seconds == 0 {
		return 0
	}
	return float64(s.Retired) / seconds
}
