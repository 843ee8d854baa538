package scenario

import "time"

// Arrivals walks the open-loop schedule. Arrival k of a stage sits at
// stageStart + k/target seconds; the interval is recomputed at every stage
// boundary and nothing is issued at or past the end of the schedule.
type Arrivals struct {
	stages []Stage
	idx    int
	k      int64
	base   time.Duration
}

// Arrivals returns a fresh iterator positioned before the first arrival.
func (c Config) Arrivals() *Arrivals {
	return &Arrivals{stages: c.Steps()}
}

// Next returns the offset of the next arrival from the start of the run and
// the stage it belongs to.
func (a *Arrivals) Next() (at time.Duration, stage int, ok bool) {
	for a.idx < len(a.stages) {
		st := a.stages[a.idx]
		off := time.Duration(float64(a.k) * float64(time.Second) / st.Target)
		if off < st.Duration {
			a.k++
			return a.base + off, a.idx, true
		}
		a.base += st.Duration
		a.idx++
		a.k = 0
	}
	return 0, 0, false
}
