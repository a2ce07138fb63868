package zone

import (
	"encoding/json"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenBenjamin97/smart-room/pkg/detection"
)

var roomPoints = []image.Point{{X: 520, Y: 108}, {X: 105, Y: 214}, {X: 820, Y: 255}, {X: 517, Y: 591}}

func centeredAt(x, y int) detection.Detection {
	return detection.Detection{Box: image.Rect(x-20, y-40, x+20, y+40), Confidence: 0.9}
}

func TestNewTableDefaults(t *testing.T) {
	table, err := NewTable(4, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, table.Len())
	z, ok := table.Zone(3)
	require.True(t, ok)
	assert.Equal(t, image.Pt(517, 591), z.Point)
	assert.Equal(t, []string{"13", "12", "11", "10"}, table.ActuatorIDs())
}

func TestNewTableRejectsIncompleteConfiguration(t *testing.T) {
	_, err := NewTable(4, roomPoints[:3], nil)
	assert.ErrorIs(t, err, ErrZoneCount)

	_, err = NewTable(5, nil, nil)
	assert.ErrorIs(t, err, ErrZoneCount)

	_, err = NewTable(0, nil, nil)
	assert.ErrorIs(t, err, ErrZoneCount)

	_, err = NewTable(4, roomPoints, []string{"a", "b"})
	assert.ErrorIs(t, err, ErrActuatorCount)
}

func TestNewTableActuatorIDs(t *testing.T) {
	table, err := NewTable(2, roomPoints[:2], nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, table.ActuatorIDs())

	table, err = NewTable(2, roomPoints[:2], []string{"kitchen", "desk"})
	require.NoError(t, err)
	assert.Equal(t, []string{"kitchen", "desk"}, table.ActuatorIDs())

	_, ok := table.Zone(2)
	assert.False(t, ok)
}

func TestAssignNearestZone(t *testing.T) {
	table, err := NewTable(4, roomPoints, nil)
	require.NoError(t, err)

	a := Assign([]detection.Detection{centeredAt(515, 595)}, table)
	assert.Equal(t, []int{3}, a.Occupied.IDs())
	assert.Equal(t, []int{3}, a.Zones)
}

func TestAssignManyPeopleOneZone(t *testing.T) {
	table, err := NewTable(4, roomPoints, nil)
	require.NoError(t, err)

	a := Assign([]detection.Detection{centeredAt(500, 100), centeredAt(540, 120)}, table)
	assert.Equal(t, []int{0}, a.Occupied.IDs())
	assert.Equal(t, []int{0, 0}, a.Zones)
	assert.Equal(t, 1, a.Occupied.Len())
}

func TestAssignTieGoesToLowestID(t *testing.T) {
	table, err := NewTable(2, []image.Point{{X: 200}, {X: 0}}, nil)
	require.NoError(t, err)

	a := Assign([]detection.Detection{centeredAt(100, 0)}, table)
	assert.Equal(t, []int{0}, a.Zones)
}

func TestAssignIsDeterministic(t *testing.T) {
	table, err := NewTable(4, roomPoints, nil)
	require.NoError(t, err)

	dets := []detection.Detection{centeredAt(300, 160), centeredAt(810, 260), centeredAt(110, 210), centeredAt(660, 420)}
	first := Assign(dets, table)
	for i := 0; i < 20; i++ {
		again := Assign(dets, table)
		assert.Equal(t, first.Occupied.IDs(), again.Occupied.IDs())
		assert.Equal(t, first.Zones, again.Zones)
	}
}

func TestAssignEmpty(t *testing.T) {
	table, err := NewTable(4, nil, nil)
	require.NoError(t, err)

	a := Assign(nil, table)
	assert.Empty(t, a.Occupied.IDs())
	assert.Empty(t, a.Zones)
}

func TestOccupancySetJSON(t *testing.T) {
	s := NewOccupancySet(4)
	s.Add(2)
	s.Add(0)
	s.Add(9)

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `[0,2]`, string(b))
	assert.False(t, s.Contains(9))
}
