package actuator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/chenBenjamin97/smart-room/pkg/control"
	"github.com/chenBenjamin97/smart-room/pkg/metrics"
	"github.com/chenBenjamin97/smart-room/pkg/utils"
)

//Transport names accepted by New.
const (
	TransportLog    = "log"
	TransportSerial = "serial"
	TransportMQTT   = "mqtt"
)

//Transports lists every supported transport name
var Transports = []string{TransportLog, TransportSerial, TransportMQTT}

//ErrUnknownTransport is returned by New for an unsupported transport name.
var ErrUnknownTransport = errors.New("actuator: unknown transport")

//Transport switches one actuator on or off.
type Transport interface {
	Set(ctx context.Context, actuatorID string, on bool) error
	Close() error
}

//Options selects and configures a transport.
type Options struct {
	Kind   string
	Serial SerialConfig
	MQTT   MQTTConfig
}

//New opens the transport named by opts.Kind.
func New(opts Options) (Transport, error) {
	switch opts.Kind {
	case TransportLog, "":
		return LogTransport{}, nil
	case TransportSerial:
		s, err := OpenSerial(opts.Serial)
		if err != nil {
			return nil, err
		}
		return s, nil
	case TransportMQTT:
		m, err := ConnectMQTT(opts.MQTT)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: '%s', want one of %v", ErrUnknownTransport, opts.Kind, Transports)
	}
}

//IsKnown reports whether kind names a supported transport
func IsKnown(kind string) bool {
	return kind == "" || utils.InSlice(kind, Transports)
}

//LogTransport only logs commands. It is used when no hardware is attached.
type LogTransport struct{}

//Set logs the command.
func (LogTransport) Set(_ context.Context, actuatorID string, on bool) error {
	log.Printf("Actuator: Set '%s' to %s", actuatorID, onOff(on))
	return nil
}

//Close does nothing.
func (LogTransport) Close() error { return nil }

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

//Dispatcher queues commands from the control loop and sends them through a transport on its own
//goroutine so a slow transport never stalls a tick.
type Dispatcher struct {
	transport Transport
	queue     chan control.Command
	timeout   time.Duration
	metrics   *metrics.Metrics
}

//NewDispatcher returns a dispatcher with a queue of size commands. Each Set call is bounded by timeout.
func NewDispatcher(t Transport, size int, timeout time.Duration, m *metrics.Metrics) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	if timeout <= 0 {
		timeout = time.Second
	}

	return &Dispatcher{
		transport: t,
		queue:     make(chan control.Command, size),
		timeout:   timeout,
		metrics:   m,
	}
}

//Send queues commands without blocking. Commands that do not fit in the queue are dropped.
func (d *Dispatcher) Send(cmds []control.Command) {
	for _, cmd := range cmds {
		select {
		case d.queue <- cmd:
		default:
			log.Printf("Dispatcher: Queue full, dropping command for zone %d ('%s')", cmd.ZoneID, cmd.ActuatorID)
			d.metrics.RecordCommand("dropped")
		}
	}
}

//Run delivers queued commands until ctx is cancelled. Commands still queued at that point are not sent.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-d.queue:
			if ctx.Err() != nil {
				return nil
			}
			d.deliver(ctx, cmd)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, cmd control.Command) {
	setCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.transport.Set(setCtx, cmd.ActuatorID, cmd.On); err != nil {
		log.Printf("Dispatcher: Error setting zone %d ('%s') %s, got '%v'", cmd.ZoneID, cmd.ActuatorID, onOff(cmd.On), err)
		d.metrics.RecordCommand("failed")
		return
	}
	d.metrics.RecordCommand("sent")
}
