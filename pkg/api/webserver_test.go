package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenBenjamin97/smart-room/pkg/detection"
	"github.com/chenBenjamin97/smart-room/pkg/metrics"
	"github.com/chenBenjamin97/smart-room/pkg/room"
	"github.com/chenBenjamin97/smart-room/pkg/zone"
)

type fakeFrames struct {
	jpeg []byte
}

func (f *fakeFrames) Snapshot() ([]byte, bool) {
	return f.jpeg, f.jpeg != nil
}

type stateResponse struct {
	Mode       string `json:"mode"`
	Occupied   []int  `json:"occupied"`
	Appliances int    `json:"appliances"`
	Zones      []struct {
		ID         int    `json:"id"`
		ActuatorID string `json:"actuator_id"`
		On         bool   `json:"on"`
		Occupied   bool   `json:"occupied"`
		People     int    `json:"people"`
	} `json:"zones"`
	Stats struct {
		TotalPeople      int     `json:"total_people"`
		ElectricitySaved float64 `json:"electricity_saved"`
	} `json:"stats"`
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestSession(t *testing.T, m *metrics.Metrics) *room.Session {
	t.Helper()

	table, err := zone.NewTable(4, nil, nil)
	require.NoError(t, err)

	return room.NewSession(room.Config{
		Table:      table,
		Filter:     detection.DefaultFilter(),
		UnitSaving: 0.1,
		Metrics:    m,
	})
}

//step feeds one frame with a single person standing next to the first default zone point.
func step(s *room.Session) {
	frame := detection.NewFrame(1, 1000, 1000, nil, nil)
	s.Step(frame, []detection.RawDetection{{
		CenterX:    0.52,
		CenterY:    0.11,
		Width:      0.05,
		Height:     0.1,
		Confidence: 0.9,
	}}, nil)
}

func do(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestState(t *testing.T) {
	s := newTestSession(t, nil)
	step(s)
	r := SetRouter(s, nil, nil)

	w := do(r, http.MethodGet, "/api/state")
	require.Equal(t, http.StatusOK, w.Code)

	var state stateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, "automatic", state.Mode)
	assert.Equal(t, []int{0}, state.Occupied)
	assert.Equal(t, 4, state.Appliances)
	require.Len(t, state.Zones, 4)
	assert.True(t, state.Zones[0].On)
	assert.True(t, state.Zones[0].Occupied)
	assert.Equal(t, 1, state.Zones[0].People)
	assert.Equal(t, "13", state.Zones[0].ActuatorID)
	assert.False(t, state.Zones[1].On)
	assert.Equal(t, 1, state.Stats.TotalPeople)
	assert.InDelta(t, 0.1, state.Stats.ElectricitySaved, 1e-9)
}

func TestZones(t *testing.T) {
	r := SetRouter(newTestSession(t, nil), nil, nil)

	w := do(r, http.MethodGet, "/api/zones")
	require.Equal(t, http.StatusOK, w.Code)

	var zones []zone.Zone
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &zones))
	require.Len(t, zones, 4)
	assert.Equal(t, 520, zones[0].Point.X)
	assert.Equal(t, "10", zones[3].ActuatorID)
}

func TestToggleModeAppliesOnNextTick(t *testing.T) {
	s := newTestSession(t, nil)
	r := SetRouter(s, nil, nil)

	w := do(r, http.MethodPost, "/api/mode/toggle")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "automatic", s.Snapshot().Mode.String())

	step(s)
	assert.Equal(t, "manual", s.Snapshot().Mode.String())
}

func TestToggleZone(t *testing.T) {
	s := newTestSession(t, nil)
	r := SetRouter(s, nil, nil)

	do(r, http.MethodPost, "/api/mode/toggle")
	step(s)

	w := do(r, http.MethodPost, "/api/zones/2/toggle")
	assert.Equal(t, http.StatusAccepted, w.Code)

	step(s)
	snap := s.Snapshot()
	assert.True(t, snap.Zones[2].On)
	assert.False(t, snap.Zones[3].On)
}

func TestToggleZoneRejectsBadIDs(t *testing.T) {
	r := SetRouter(newTestSession(t, nil), nil, nil)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/zones/first/toggle").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/zones/4/toggle").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/zones/-1/toggle").Code)
}

func TestToggleZoneConflictsInAutomaticMode(t *testing.T) {
	s := newTestSession(t, nil)
	r := SetRouter(s, nil, nil)

	w := do(r, http.MethodPost, "/api/zones/1/toggle")
	assert.Equal(t, http.StatusConflict, w.Code)

	step(s)
	snap := s.Snapshot()
	assert.Equal(t, "automatic", snap.Mode.String())
	assert.False(t, snap.Zones[1].On)
}

func TestSnapshot(t *testing.T) {
	s := newTestSession(t, nil)

	w := do(SetRouter(s, nil, nil), http.MethodGet, "/api/snapshot")
	assert.Equal(t, http.StatusNotFound, w.Code)

	frames := &fakeFrames{}
	r := SetRouter(s, frames, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/snapshot").Code)

	frames.jpeg = []byte{0xff, 0xd8, 0xff, 0xd9}
	w = do(r, http.MethodGet, "/api/snapshot")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, frames.jpeg, w.Body.Bytes())
}

func TestMetrics(t *testing.T) {
	m, err := metrics.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	s := newTestSession(t, m)
	step(s)
	r := SetRouter(s, nil, m.Registry())

	w := do(r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "smartroom_ticks_total 1"))
	assert.True(t, strings.Contains(w.Body.String(), "smartroom_people 1"))

	assert.Equal(t, http.StatusNotFound, do(SetRouter(s, nil, nil), http.MethodGet, "/metrics").Code)
}
