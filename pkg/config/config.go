package config

import (
	"errors"
	"fmt"
	"image"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/chenBenjamin97/smart-room/pkg/actuator"
	"github.com/chenBenjamin97/smart-room/pkg/utils"
	"github.com/chenBenjamin97/smart-room/pkg/zone"
)

//EnvPrefix prefixes every environment override, e.g. SMARTROOM_HTTP_PORT.
const EnvPrefix = "SMARTROOM"

//ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid settings")

//Settings is the full application configuration.
type Settings struct {
	Camera    CameraSettings    `mapstructure:"camera"`
	Detector  DetectorSettings  `mapstructure:"detector"`
	Detection DetectionSettings `mapstructure:"detection"`
	Loop      LoopSettings      `mapstructure:"loop"`
	Zones     ZoneSettings      `mapstructure:"zones"`
	Stats     StatsSettings     `mapstructure:"stats"`
	Actuator  ActuatorSettings  `mapstructure:"actuator"`
	HTTP      HTTPSettings      `mapstructure:"http"`
	Render    RenderSettings    `mapstructure:"render"`
}

//CameraSettings selects the capture device.
type CameraSettings struct {
	Device string `mapstructure:"device"`
}

//DetectorSettings locate the YOLO model.
type DetectorSettings struct {
	Config        string  `mapstructure:"config"`
	Weights       string  `mapstructure:"weights"`
	InputSize     int     `mapstructure:"input_size"`
	Backend       string  `mapstructure:"backend"`
	Target        string  `mapstructure:"target"`
	MinConfidence float32 `mapstructure:"min_confidence"`
}

//DetectionSettings tune the detection filter.
type DetectionSettings struct {
	ConfidenceThreshold float32 `mapstructure:"confidence_threshold"`
	NMSThreshold        float64 `mapstructure:"nms_threshold"`
	PersonClass         int     `mapstructure:"person_class"`
	Async               bool    `mapstructure:"async"`
}

//LoopSettings tune the tick driver.
type LoopSettings struct {
	Period       time.Duration `mapstructure:"period"`
	MaxResultAge time.Duration `mapstructure:"max_result_age"`
}

//ZoneSettings hold the calibration. Points are "x,y" or "x:y" pixel pairs, one per zone. Environment
//overrides are split on commas, so SMARTROOM_ZONES_POINTS must use the "x:y" form.
type ZoneSettings struct {
	Count     int      `mapstructure:"count"`
	Points    []string `mapstructure:"points"`
	Actuators []string `mapstructure:"actuators"`
}

//StatsSettings configure the statistics heuristic.
type StatsSettings struct {
	UnitSaving float64 `mapstructure:"unit_saving"`
}

//ActuatorSettings select the actuator transport.
type ActuatorSettings struct {
	Transport string         `mapstructure:"transport"`
	QueueSize int            `mapstructure:"queue_size"`
	Timeout   time.Duration  `mapstructure:"timeout"`
	Serial    SerialSettings `mapstructure:"serial"`
	MQTT      MQTTSettings   `mapstructure:"mqtt"`
}

//SerialSettings configure the serial relay board.
type SerialSettings struct {
	Port      string `mapstructure:"port"`
	BaudRate  int    `mapstructure:"baud_rate"`
	ActiveLow bool   `mapstructure:"active_low"`
}

//MQTTSettings configure the MQTT transport.
type MQTTSettings struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Topic    string `mapstructure:"topic"`
	QoS      int    `mapstructure:"qos"`
}

//HTTPSettings configure the API server.
type HTTPSettings struct {
	Port string `mapstructure:"port"`
}

//RenderSettings configure the overlay snapshot.
type RenderSettings struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

//SetDefaults registers a default for every key, which also makes every key overridable from the
//environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("camera.device", "0")

	v.SetDefault("detector.config", "yolov3.cfg")
	v.SetDefault("detector.weights", "yolov3.weights")
	v.SetDefault("detector.input_size", utils.DefaultDetectorInputSize)
	v.SetDefault("detector.backend", "opencv")
	v.SetDefault("detector.target", "cpu")
	v.SetDefault("detector.min_confidence", 0.1)

	v.SetDefault("detection.confidence_threshold", utils.DefaultConfidenceThreshold)
	v.SetDefault("detection.nms_threshold", utils.DefaultNMSThreshold)
	v.SetDefault("detection.person_class", utils.PersonClass)
	v.SetDefault("detection.async", true)

	v.SetDefault("loop.period", utils.DefaultTickPeriod)
	v.SetDefault("loop.max_result_age", utils.DefaultMaxResultAge)

	v.SetDefault("zones.count", utils.DefaultZoneCount)
	v.SetDefault("zones.points", []string{})
	v.SetDefault("zones.actuators", []string{})

	v.SetDefault("stats.unit_saving", utils.DefaultUnitSaving)

	v.SetDefault("actuator.transport", actuator.TransportLog)
	v.SetDefault("actuator.queue_size", 64)
	v.SetDefault("actuator.timeout", time.Second)
	v.SetDefault("actuator.serial.port", "/dev/ttyACM0")
	v.SetDefault("actuator.serial.baud_rate", 57600)
	v.SetDefault("actuator.serial.active_low", true)
	v.SetDefault("actuator.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("actuator.mqtt.client_id", "smartroom")
	v.SetDefault("actuator.mqtt.username", "")
	v.SetDefault("actuator.mqtt.password", "")
	v.SetDefault("actuator.mqtt.topic", "smartroom/{actuator_id}/set")
	v.SetDefault("actuator.mqtt.qos", 1)

	v.SetDefault("http.port", "8080")

	v.SetDefault("render.enabled", true)
	v.SetDefault("render.interval", 200*time.Millisecond)
}

//Load reads the settings into v. An empty path looks for config.yaml in the working directory and
//falls back to defaults when there is none; an explicit path must exist.
func Load(v *viper.Viper, path string) (*Settings, error) {
	if err := godotenv.Load(); err == nil {
		log.Printf("Config: Loaded environment from .env")
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Printf("Config: No config file found, using defaults")
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

//Validate checks value ranges. Zone points are checked by ZoneTable.
func (s *Settings) Validate() error {
	switch {
	case s.Detection.ConfidenceThreshold < 0 || s.Detection.ConfidenceThreshold > 1:
		return fmt.Errorf("%w: detection.confidence_threshold must be within [0,1], got %v", ErrInvalid, s.Detection.ConfidenceThreshold)
	case s.Detection.NMSThreshold <= 0 || s.Detection.NMSThreshold > 1:
		return fmt.Errorf("%w: detection.nms_threshold must be within (0,1], got %v", ErrInvalid, s.Detection.NMSThreshold)
	case s.Loop.Period <= 0:
		return fmt.Errorf("%w: loop.period must be positive, got %v", ErrInvalid, s.Loop.Period)
	case s.Loop.MaxResultAge <= 0:
		return fmt.Errorf("%w: loop.max_result_age must be positive, got %v", ErrInvalid, s.Loop.MaxResultAge)
	case s.Zones.Count <= 0:
		return fmt.Errorf("%w: zones.count must be positive, got %d", ErrInvalid, s.Zones.Count)
	case s.Stats.UnitSaving < 0:
		return fmt.Errorf("%w: stats.unit_saving must not be negative, got %v", ErrInvalid, s.Stats.UnitSaving)
	case !actuator.IsKnown(s.Actuator.Transport):
		return fmt.Errorf("%w: actuator.transport '%s' is not one of %v", ErrInvalid, s.Actuator.Transport, actuator.Transports)
	case s.Actuator.MQTT.QoS < 0 || s.Actuator.MQTT.QoS > 2:
		return fmt.Errorf("%w: actuator.mqtt.qos must be 0, 1 or 2, got %d", ErrInvalid, s.Actuator.MQTT.QoS)
	case s.HTTP.Port == "":
		return fmt.Errorf("%w: http.port is empty", ErrInvalid)
	}
	return nil
}

//ZoneTable builds the zone table from the calibration points.
func (s *Settings) ZoneTable() (*zone.Table, error) {
	points := make([]image.Point, 0, len(s.Zones.Points))
	for _, raw := range s.Zones.Points {
		p, err := utils.ParsePoint(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		points = append(points, p)
	}

	return zone.NewTable(s.Zones.Count, points, s.Zones.Actuators)
}

//ActuatorOptions returns the transport options.
func (s *Settings) ActuatorOptions() actuator.Options {
	return actuator.Options{
		Kind: s.Actuator.Transport,
		Serial: actuator.SerialConfig{
			Port:      s.Actuator.Serial.Port,
			BaudRate:  s.Actuator.Serial.BaudRate,
			ActiveLow: s.Actuator.Serial.ActiveLow,
		},
		MQTT: actuator.MQTTConfig{
			Broker:   s.Actuator.MQTT.Broker,
			ClientID: s.Actuator.MQTT.ClientID,
			Username: s.Actuator.MQTT.Username,
			Password: s.Actuator.MQTT.Password,
			Topic:    s.Actuator.MQTT.Topic,
			QoS:      byte(s.Actuator.MQTT.QoS),
		},
	}
}
