package util

import (
	"github.com/vgrau/excess2lambda/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel:            zap.DebugLevel,
		Daemon:              true,
		PollIntervalSeconds: 0.05,
		Source: config.SourceConfig{
			Type:           config.SOURCE_TYPE_FIXED_VALUE,
			FixedValueWatt: 1250,
		},
		HeatPump: config.HeatPumpConfig{
			Host:      "-.-.-.-",
			Port:      502,
			Transform: "negative",
		},
		MQTT: config.MQTTConfig{
			Host: "localhost",
			Port: 1883,
		},
		Port: 8080,
	}
}

func TestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}
