package actuator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

//ErrPublishTimeout is returned when the broker does not acknowledge a publish in time.
var ErrPublishTimeout = errors.New("actuator: mqtt publish timeout")

//MQTTConfig configures the MQTT transport.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	//Topic may contain the {actuator_id} placeholder, e.g. "room/{actuator_id}/set".
	Topic string
	QoS   byte
}

//publisher is the part of mqtt.Client the transport uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

//MQTT publishes one message per command.
type MQTT struct {
	client publisher
	topic  string
	qos    byte

	disconnect func()
}

type statePayload struct {
	ActuatorID string `json:"actuator_id"`
	On         bool   `json:"on"`
	State      string `json:"state"`
	Time       int64  `json:"time"`
}

//ConnectMQTT connects to the broker and returns the transport.
func ConnectMQTT(cfg MQTTConfig) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Printf("MQTT: Connected to '%s'", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("MQTT: Connection lost, got '%v'", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker '%s': %w", cfg.Broker, token.Error())
	}

	t := NewMQTT(client, cfg.Topic, cfg.QoS)
	t.disconnect = func() { client.Disconnect(250) }
	return t, nil
}

//NewMQTT wraps a connected client.
func NewMQTT(client publisher, topic string, qos byte) *MQTT {
	if topic == "" {
		topic = "smartroom/{actuator_id}/set"
	}
	return &MQTT{client: client, topic: topic, qos: qos}
}

//Set publishes the actuator state and waits for the broker until ctx expires.
func (m *MQTT) Set(ctx context.Context, actuatorID string, on bool) error {
	payload, err := json.Marshal(statePayload{
		ActuatorID: actuatorID,
		On:         on,
		State:      onOff(on),
		Time:       time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal actuator state: %w", err)
	}

	token := m.client.Publish(formatTopic(m.topic, actuatorID), m.qos, false, payload)

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrPublishTimeout, ctx.Err())
	}
}

//Close disconnects from the broker.
func (m *MQTT) Close() error {
	if m.disconnect != nil {
		m.disconnect()
	}
	return nil
}

//formatTopic replaces the {actuator_id} placeholder with the actuator id
func formatTopic(pattern, actuatorID string) string {
	return strings.ReplaceAll(pattern, "{actuator_id}", actuatorID)
}
