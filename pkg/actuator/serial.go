package actuator

import (
	"context"
	"fmt"
	"sync"

	"go.bug.st/serial"
)

//SerialConfig configures a relay board attached over a serial port.
type SerialConfig struct {
	Port     string
	BaudRate int
	//ActiveLow drives a relay on with a low level, as common relay boards expect.
	ActiveLow bool
}

//Serial writes one line per command, "<actuator id>:<level>\n", where level is 1 or 0 after applying
//the board polarity.
type Serial struct {
	port      serial.Port
	activeLow bool

	mu sync.Mutex
}

//OpenSerial opens the port at 8N1.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = 57600
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port '%s': %w", cfg.Port, err)
	}

	return NewSerial(port, cfg.ActiveLow), nil
}

//NewSerial wraps an already open port.
func NewSerial(port serial.Port, activeLow bool) *Serial {
	return &Serial{port: port, activeLow: activeLow}
}

//Set writes the command line for the actuator.
func (s *Serial) Set(ctx context.Context, actuatorID string, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	level := 0
	if on != s.activeLow {
		level = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.port.Write([]byte(fmt.Sprintf("%s:%d\n", actuatorID, level))); err != nil {
		return fmt.Errorf("write serial command: %w", err)
	}
	return nil
}

//Close closes the port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}
