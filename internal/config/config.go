package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/vgrau/excess2lambda/pkg/lambda_modbus"

	"go.uber.org/zap/zapcore"
)

// power source selector tags
const (
	SOURCE_TYPE_SOLAREDGE_INVERTER = "solaredge-inverter"
	SOURCE_TYPE_SMART_METER        = "smart-meter"
	SOURCE_TYPE_FIXED_VALUE        = "fixed-value"
)

type Config struct {
	LogLevel zapcore.Level

	// Daemon keeps the poll loop alive across read/write failures.
	// Without it the first failure terminates the process.
	Daemon              bool    `mapstructure:"daemon"`
	PollIntervalSeconds float64 `mapstructure:"poll_interval_seconds"`

	Source   SourceConfig   `mapstructure:"source"`
	HeatPump HeatPumpConfig `mapstructure:"heat_pump"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`

	Port    uint `mapstructure:"port"`
	HttpLog bool `mapstructure:"http_log"`
}

type SourceConfig struct {
	Type string
	Host string
	Port uint
	Unit uint
	// FixedValueWatt is the constant reported by the fixed-value source
	FixedValueWatt float64 `mapstructure:"fixed_value_watt"`
	// Invert flips the smart meter sign convention (export negative)
	// so surplus comes out positive
	Invert        bool
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

type HeatPumpConfig struct {
	Host          string
	Port          uint
	Transform     string
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

// ConfigurationError aborts startup in every run mode; it is never
// produced once the poll loop is running.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks every selector tag and bound before anything
// connects. Unknown tags fail here, never by silently defaulting.
func (cfg *Config) Validate() error {
	switch cfg.Source.Type {
	case SOURCE_TYPE_SOLAREDGE_INVERTER, SOURCE_TYPE_SMART_METER:
		if cfg.Source.Host == "" {
			return configErrorf("source.host is required for source type %q", cfg.Source.Type)
		}
	case SOURCE_TYPE_FIXED_VALUE:
	default:
		return configErrorf("unknown source type %q", cfg.Source.Type)
	}
	if cfg.HasHeatPump() {
		if _, err := lambda_modbus.ParseTransformPolicy(cfg.HeatPump.Transform); err != nil {
			return &ConfigurationError{Reason: err.Error()}
		}
	}
	if cfg.PollIntervalSeconds <= 0 {
		return configErrorf("poll_interval_seconds must be > 0")
	}
	if cfg.HasMQTT() {
		baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
		if err != nil {
			return configErrorf("invalid mqtt base topic: %v", err)
		}
		cfg.MQTT.BaseTopic = baseTopic
		if cfg.MQTT.HADiscoveryEnable {
			discoveryTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
			if err != nil {
				return configErrorf("invalid mqtt discovery topic: %v", err)
			}
			cfg.MQTT.HADiscoveryTopic = discoveryTopic
		}
	}
	return nil
}

// HasHeatPump reports whether a sink is configured. Without one the
// bridge runs read-only and only publishes telemetry.
func (cfg *Config) HasHeatPump() bool {
	return cfg.HeatPump.Host != ""
}

func (cfg *Config) HasMQTT() bool {
	return cfg.MQTT.Host != ""
}

func (cfg *Config) PollInterval() time.Duration {
	return time.Duration(cfg.PollIntervalSeconds * float64(time.Second))
}

func (cfg *SourceConfig) Timeout() time.Duration {
	return timeoutOrDefault(cfg.TimeoutMillis)
}

func (cfg *HeatPumpConfig) Timeout() time.Duration {
	return timeoutOrDefault(cfg.TimeoutMillis)
}

func timeoutOrDefault(millis uint32) time.Duration {
	if millis == 0 {
		return 1 * time.Second
	}
	return time.Duration(millis) * time.Millisecond
}

// ParseLogLevel maps the user-facing level tags onto zap levels.
// Unknown tags fail like every other selector.
func ParseLogLevel(level string) (zapcore.Level, error) {
	switch level {
	case "critical":
		return zapcore.FatalLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	default:
		return zapcore.InfoLevel, configErrorf("unknown log level %q", level)
	}
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
