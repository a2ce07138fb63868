package room

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chenBenjamin97/smart-room/pkg/control"
	"github.com/chenBenjamin97/smart-room/pkg/detection"
	"github.com/chenBenjamin97/smart-room/pkg/metrics"
	"github.com/chenBenjamin97/smart-room/pkg/stats"
	"github.com/chenBenjamin97/smart-room/pkg/zone"
)

//CommandSink receives the actuator commands of each tick. It must not block.
type CommandSink interface {
	Send(cmds []control.Command)
}

//Observer is notified after every completed tick. It runs on the loop goroutine and must not keep
//the frame beyond the call without retaining it.
type Observer interface {
	Observe(frame *detection.Frame, result TickResult)
}

//ObserverFunc adapts a function to Observer
type ObserverFunc func(frame *detection.Frame, result TickResult)

//Observe calls f
func (f ObserverFunc) Observe(frame *detection.Frame, result TickResult) { f(frame, result) }

//TickResult is everything one tick produced.
type TickResult struct {
	Seq        uint64
	Detections []detection.Detection
	Assignment zone.Assignment
	Commands   []control.Command
	Mode       control.Mode
	States     []bool
	Stats      stats.Snapshot
}

//ZoneState is a zone with its committed actuator state.
type ZoneState struct {
	zone.Zone
	On       bool `json:"on"`
	Occupied bool `json:"occupied"`
	People   int  `json:"people"`
}

//Snapshot is the read-only view offered to UI and reporting.
type Snapshot struct {
	SessionID  string                `json:"session_id"`
	StartedAt  time.Time             `json:"started_at"`
	LastTick   time.Time             `json:"last_tick"`
	Mode       control.Mode          `json:"mode"`
	Occupied   zone.OccupancySet     `json:"occupied"`
	Zones      []ZoneState           `json:"zones"`
	Stats      stats.Snapshot        `json:"stats"`
	Appliances int                   `json:"appliances"`
	Detections []detection.Detection `json:"detections"`
}

//Config holds the collaborators of a session.
type Config struct {
	Table      *zone.Table
	Filter     detection.Filter
	UnitSaving float64
	Sink       CommandSink
	Metrics    *metrics.Metrics
}

//Session is the state owned by the control loop: zone table, controller and statistics. Reads and
//toggle requests are safe from any goroutine; Step is called only by the loop.
type Session struct {
	ID        string
	StartedAt time.Time

	table      *zone.Table
	filter     detection.Filter
	controller *control.Controller
	stats      *stats.Accumulator
	sink       CommandSink
	metrics    *metrics.Metrics

	mu        sync.RWMutex
	observers []Observer
	last      TickResult
	lastTick  time.Time
}

//NewSession returns a session in Automatic mode with zeroed statistics.
func NewSession(cfg Config) *Session {
	return &Session{
		ID:         uuid.New().String(),
		StartedAt:  time.Now(),
		table:      cfg.Table,
		filter:     cfg.Filter,
		controller: control.New(cfg.Table.ActuatorIDs()),
		stats:      stats.NewAccumulator(cfg.UnitSaving),
		sink:       cfg.Sink,
		metrics:    cfg.Metrics,
		last: TickResult{
			Assignment: zone.Assignment{Occupied: zone.NewOccupancySet(cfg.Table.Len())},
			States:     make([]bool, cfg.Table.Len()),
		},
	}
}

//Table returns the zone table.
func (s *Session) Table() *zone.Table {
	return s.table
}

//AddObserver registers an observer for every following tick.
func (s *Session) AddObserver(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

//ToggleMode requests a mode switch, applied at the next tick.
func (s *Session) ToggleMode() {
	s.controller.ToggleMode()
}

//ToggleZone requests flipping a zone in Manual mode, applied at the next tick.
func (s *Session) ToggleZone(id int) error {
	return s.controller.ToggleZone(id)
}

//Step runs one tick on a captured frame and the detector output for it. A detector error counts as
//zero detections.
func (s *Session) Step(frame *detection.Frame, raw []detection.RawDetection, detErr error) TickResult {
	if detErr != nil {
		log.Printf("Session: Detector error on frame %d, got '%v'", frame.Seq, detErr)
		raw = nil
	}

	dets := s.filter.Apply(raw, frame.Width, frame.Height)
	assignment := zone.Assign(dets, s.table)
	cmds := s.controller.Tick(assignment.Occupied)
	snap := s.stats.Update(len(dets))

	return s.commit(frame, dets, assignment, cmds, snap)
}

//Hold runs a tick for a frame without a new detector result: queued toggles are applied and
//Automatic mode refreshes every zone from the last occupancy, statistics are left unchanged.
func (s *Session) Hold(frame *detection.Frame) TickResult {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	cmds := s.controller.Tick(last.Assignment.Occupied)
	return s.commit(frame, last.Detections, last.Assignment, cmds, s.stats.Snapshot())
}

func (s *Session) commit(frame *detection.Frame, dets []detection.Detection, assignment zone.Assignment, cmds []control.Command, snap stats.Snapshot) TickResult {
	if s.sink != nil && len(cmds) > 0 {
		s.sink.Send(cmds)
	}

	result := TickResult{
		Seq:        frame.Seq,
		Detections: dets,
		Assignment: assignment,
		Commands:   cmds,
		Mode:       s.controller.Mode(),
		States:     s.controller.States(),
		Stats:      snap,
	}
	s.metrics.RecordTick(snap.TotalPeople, snap.ElectricitySaved, result.Mode == control.Manual, result.States)

	s.mu.Lock()
	s.last = result
	s.lastTick = time.Now()
	observers := s.observers
	s.mu.Unlock()

	for _, o := range observers {
		o.Observe(frame, result)
	}

	return result
}

//Snapshot returns the current occupancy, statistics, mode and per-zone state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	last := s.last
	lastTick := s.lastTick
	s.mu.RUnlock()

	people := make([]int, s.table.Len())
	for _, id := range last.Assignment.Zones {
		people[id]++
	}

	zones := s.table.Zones()
	states := make([]ZoneState, len(zones))
	for i, z := range zones {
		states[i] = ZoneState{
			Zone:     z,
			On:       last.States[i],
			Occupied: last.Assignment.Occupied.Contains(i),
			People:   people[i],
		}
	}

	return Snapshot{
		SessionID:  s.ID,
		StartedAt:  s.StartedAt,
		LastTick:   lastTick,
		Mode:       s.controller.Mode(),
		Occupied:   last.Assignment.Occupied,
		Zones:      states,
		Stats:      s.stats.Snapshot(),
		Appliances: len(zones),
		Detections: last.Detections,
	}
}
