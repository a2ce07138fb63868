package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/chenBenjamin97/smart-room/pkg/zone"
)

//ErrUnknownZone is returned for a toggle that names a zone outside the table.
var ErrUnknownZone = errors.New("control: unknown zone")

//Mode is the global operating mode.
type Mode int

const (
	//Automatic derives every actuator from the current occupancy on every tick.
	Automatic Mode = iota
	//Manual changes actuators only on explicit zone toggles.
	Manual
)

func (m Mode) String() string {
	switch m {
	case Automatic:
		return "automatic"
	case Manual:
		return "manual"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

//MarshalJSON encodes the mode by name.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

//Command is the desired state of one zone's actuator.
type Command struct {
	ZoneID     int    `json:"zone_id"`
	ActuatorID string `json:"actuator_id"`
	On         bool   `json:"on"`
}

type eventKind int

const (
	toggleMode eventKind = iota
	toggleZone
)

type event struct {
	kind   eventKind
	zoneID int
}

//Controller is the Automatic/Manual state machine. Toggle requests may come from any goroutine; they
//are queued and applied in arrival order by the next Tick, which only the control loop calls.
type Controller struct {
	actuators []string

	queueMu sync.Mutex
	queue   []event

	mu    sync.RWMutex
	mode  Mode
	state []bool
}

//New returns a controller in Automatic mode with every actuator off. actuators holds the actuator id
//of each zone, indexed by zone id.
func New(actuators []string) *Controller {
	ids := make([]string, len(actuators))
	copy(ids, actuators)

	return &Controller{
		actuators: ids,
		mode:      Automatic,
		state:     make([]bool, len(ids)),
	}
}

//ToggleMode requests a switch between Automatic and Manual at the next tick.
func (c *Controller) ToggleMode() {
	c.enqueue(event{kind: toggleMode})
}

//ToggleZone requests flipping one zone's actuator at the next tick. The request is dropped if the
//controller is not in Manual mode when it is applied.
func (c *Controller) ToggleZone(id int) error {
	if id < 0 || id >= len(c.actuators) {
		return fmt.Errorf("%w: %d", ErrUnknownZone, id)
	}

	c.enqueue(event{kind: toggleZone, zoneID: id})
	return nil
}

func (c *Controller) enqueue(e event) {
	c.queueMu.Lock()
	c.queue = append(c.queue, e)
	c.queueMu.Unlock()
}

//Tick applies queued toggles, then in Automatic mode sets every zone from occupancy. It returns the
//commands to send: one per zone in Automatic mode, one per applied zone toggle in Manual mode.
func (c *Controller) Tick(occupied zone.OccupancySet) []Command {
	c.queueMu.Lock()
	events := c.queue
	c.queue = nil
	c.queueMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	var cmds []Command
	for _, e := range events {
		switch e.kind {
		case toggleMode:
			if c.mode == Automatic {
				c.mode = Manual
			} else {
				c.mode = Automatic
			}
			log.Printf("Controller: Switched to %s mode", c.mode)
		case toggleZone:
			if c.mode != Manual {
				log.Printf("Controller: Ignoring toggle of zone %d, not in manual mode", e.zoneID)
				continue
			}
			c.state[e.zoneID] = !c.state[e.zoneID]
			cmds = append(cmds, c.command(e.zoneID))
		}
	}

	if c.mode == Automatic {
		for id := range c.state {
			c.state[id] = occupied.Contains(id)
			cmds = append(cmds, c.command(id))
		}
	}

	return cmds
}

func (c *Controller) command(id int) Command {
	return Command{ZoneID: id, ActuatorID: c.actuators[id], On: c.state[id]}
}

//Mode returns the active mode.
func (c *Controller) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

//States returns the last committed on/off state of every zone.
func (c *Controller) States() []bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]bool, len(c.state))
	copy(out, c.state)
	return out
}
