package zone

import (
	"errors"
	"fmt"
	"image"

	"github.com/chenBenjamin97/smart-room/pkg/utils"
)

var (
	//ErrZoneCount is returned when the configured points do not match the zone count.
	ErrZoneCount = errors.New("zone: point count does not match zone count")
	//ErrActuatorCount is returned when actuator ids are given but not one per zone.
	ErrActuatorCount = errors.New("zone: actuator count does not match zone count")
)

//Zone is a calibrated control point in the room bound to one actuator.
type Zone struct {
	ID         int         `json:"id"`
	Point      image.Point `json:"point"`
	ActuatorID string      `json:"actuator_id"`
}

//Table is the immutable set of zones for a session.
type Table struct {
	zones []Zone
}

//NewTable builds a table of exactly n zones. When no points are given the default corner points are
//used (which only works for n == 4). Actuator ids default to the zone id when none are given.
func NewTable(n int, points []image.Point, actuators []string) (*Table, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: need at least one zone, got %d", ErrZoneCount, n)
	}

	if len(points) == 0 {
		points = utils.DefaultZonePoints
		if len(actuators) == 0 && n == len(utils.DefaultActuatorIDs) {
			actuators = utils.DefaultActuatorIDs
		}
	}

	if len(points) != n {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrZoneCount, n, len(points))
	}

	if len(actuators) != 0 && len(actuators) != n {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrActuatorCount, n, len(actuators))
	}

	zones := make([]Zone, n)
	for i, p := range points {
		zones[i] = Zone{ID: i, Point: p, ActuatorID: fmt.Sprint(i)}
		if len(actuators) != 0 {
			zones[i].ActuatorID = actuators[i]
		}
	}

	return &Table{zones: zones}, nil
}

//Len returns the number of zones.
func (t *Table) Len() int {
	return len(t.zones)
}

//Zone returns the zone with the given id.
func (t *Table) Zone(id int) (Zone, bool) {
	if id < 0 || id >= len(t.zones) {
		return Zone{}, false
	}
	return t.zones[id], true
}

//Zones returns a copy of all zones ordered by id.
func (t *Table) Zones() []Zone {
	out := make([]Zone, len(t.zones))
	copy(out, t.zones)
	return out
}

//ActuatorIDs returns the actuator id of every zone, ordered by zone id.
func (t *Table) ActuatorIDs() []string {
	ids := make([]string, len(t.zones))
	for i, z := range t.zones {
		ids[i] = z.ActuatorID
	}
	return ids
}
