package zone

import (
	"encoding/json"

	"gonum.org/v1/gonum/floats"

	"github.com/chenBenjamin97/smart-room/pkg/detection"
)

//OccupancySet is the set of zone ids with at least one person nearest to them.
type OccupancySet struct {
	occupied []bool
}

//NewOccupancySet returns an empty set over n zones.
func NewOccupancySet(n int) OccupancySet {
	return OccupancySet{occupied: make([]bool, n)}
}

//Add marks a zone occupied. Ids outside the set are ignored.
func (s OccupancySet) Add(id int) {
	if id >= 0 && id < len(s.occupied) {
		s.occupied[id] = true
	}
}

//Contains reports whether the zone is occupied.
func (s OccupancySet) Contains(id int) bool {
	return id >= 0 && id < len(s.occupied) && s.occupied[id]
}

//IDs returns the occupied zone ids in ascending order.
func (s OccupancySet) IDs() []int {
	ids := make([]int, 0, len(s.occupied))
	for id, ok := range s.occupied {
		if ok {
			ids = append(ids, id)
		}
	}
	return ids
}

//Len returns the number of occupied zones.
func (s OccupancySet) Len() int {
	return len(s.IDs())
}

//MarshalJSON encodes the set as its sorted ids.
func (s OccupancySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

//Assignment is the result of mapping one frame's detections onto the zone table.
type Assignment struct {
	Occupied OccupancySet
	//Zones[i] is the zone assigned to detection i.
	Zones []int
}

//Assign maps every detection to the zone whose point is nearest to the detection's box center.
//Equidistant zones resolve to the lowest zone id.
func Assign(dets []detection.Detection, table *Table) Assignment {
	a := Assignment{
		Occupied: NewOccupancySet(table.Len()),
		Zones:    make([]int, len(dets)),
	}

	for i, d := range dets {
		id := Nearest(table, d)
		a.Zones[i] = id
		a.Occupied.Add(id)
	}

	return a
}

//Nearest returns the id of the zone closest to the detection's center, -1 for an empty table.
func Nearest(table *Table, d detection.Detection) int {
	cx, cy := d.Center()
	center := []float64{cx, cy}

	best, bestDist := -1, 0.0
	for _, z := range table.zones {
		dist := floats.Distance(center, []float64{float64(z.Point.X), float64(z.Point.Y)}, 2)
		if best == -1 || dist < bestDist {
			best, bestDist = z.ID, dist
		}
	}

	return best
}
