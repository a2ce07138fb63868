package stats

import "sync"

//Snapshot is a read-only copy of the statistics.
type Snapshot struct {
	//TotalPeople is the number of people detected on the last tick.
	TotalPeople int `json:"total_people"`
	//ElectricitySaved is a heuristic estimate in kWh: UnitSaving per detected person per tick.
	//It is not a measurement.
	ElectricitySaved float64 `json:"electricity_saved"`
	Ticks            uint64  `json:"ticks"`
}

//Accumulator updates the statistics once per tick. ElectricitySaved never decreases.
type Accumulator struct {
	unitSaving float64

	mu   sync.RWMutex
	snap Snapshot
}

//NewAccumulator returns zeroed statistics. A negative unit saving is treated as zero.
func NewAccumulator(unitSaving float64) *Accumulator {
	if unitSaving < 0 {
		unitSaving = 0
	}
	return &Accumulator{unitSaving: unitSaving}
}

//Update records the people count of one tick.
func (a *Accumulator) Update(people int) Snapshot {
	if people < 0 {
		people = 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.snap.TotalPeople = people
	a.snap.ElectricitySaved += float64(people) * a.unitSaving
	a.snap.Ticks++
	return a.snap
}

//Snapshot returns the current statistics.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}
