package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	adactor "github.com/vgrau/excess2lambda/internal/adapter/actor"
	"github.com/vgrau/excess2lambda/internal/config"
	"github.com/vgrau/excess2lambda/internal/core/actor"
	"github.com/vgrau/excess2lambda/internal/core/domain"
	"github.com/vgrau/excess2lambda/internal/server"
	"github.com/vgrau/excess2lambda/internal/util/actorutil"
	"github.com/vgrau/excess2lambda/pkg/lambda_modbus"
	"github.com/vgrau/excess2lambda/pkg/sunspec_modbus"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, fatalCycle <-chan struct{}, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Println("shutting down gracefully, press Ctrl+C again to force")
	case <-fatalCycle:
		log.Println("fatal poll cycle failure, shutting down")
	}

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	sdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(sdCtx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	// event stream shared by the actor tree and main. Main watches for
	// fatal cycle failures to drive the exit code.
	es := &eventstream.EventStream{}

	var exitCode atomic.Int32
	fatalCycle := make(chan struct{})
	sub := es.Subscribe(func(evt any) {
		if failure, ok := evt.(domain.CycleFailedEvent); ok && failure.Fatal {
			exitCode.Store(1)
			select {
			case fatalCycle <- struct{}{}:
			default:
			}
		}
	})
	defer es.Unsubscribe(sub)

	// init Modbus actor provider
	modbusProv, err := modbusActorProvider(cfg, logger)
	if err != nil {
		logger.Fatal("could not init modbus clients", zap.Error(err))
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, es, modbusProv, mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Fatal("could not spawn master actor", zap.Error(err))
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, fatalCycle, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.Fatal("http server error", zap.Error(err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()

	os.Exit(int(exitCode.Load()))
}

func initConfig() (*config.Config, error) {

	// alias PORT => EXCESS2LAMBDA_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("EXCESS2LAMBDA_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("excess2lambda")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	logLevel, err := config.ParseLogLevel(viper.GetString("log_level"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = logLevel

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func modbusActorProvider(cfg *config.Config, logger *zap.Logger) (actor.ModbusActorProvider, error) {

	var source sunspec_modbus.PowerSourceReader
	var err error

	switch cfg.Source.Type {
	case config.SOURCE_TYPE_SOLAREDGE_INVERTER:
		source, err = sunspec_modbus.CreateSolarEdgeInverterReader(cfg.Source.Host,
			cfg.Source.Port, uint8(cfg.Source.Unit), cfg.Source.Timeout(), logger, nil)
	case config.SOURCE_TYPE_SMART_METER:
		source, err = sunspec_modbus.CreateSmartMeterModbusReader(cfg.Source.Host,
			cfg.Source.Port, uint8(cfg.Source.Unit), cfg.Source.Timeout(), cfg.Source.Invert, logger, nil)
	case config.SOURCE_TYPE_FIXED_VALUE:
		source, err = sunspec_modbus.CreateFixedValueReader(cfg.Source.FixedValueWatt)
	default:
		err = fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
	if err != nil {
		return nil, err
	}

	var sink lambda_modbus.HeatPumpWriter
	if cfg.HasHeatPump() {
		policy, err := lambda_modbus.ParseTransformPolicy(cfg.HeatPump.Transform)
		if err != nil {
			return nil, err
		}
		sink, err = lambda_modbus.CreateLambdaHeatPumpWriter(cfg.HeatPump.Host,
			cfg.HeatPump.Port, cfg.HeatPump.Timeout(), policy, logger, nil)
		if err != nil {
			return nil, err
		}
	}

	return func() *adactor.ModbusActor {
		return adactor.NewModbusActor(source, sink, logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	if !cfg.HasMQTT() {
		return nil
	}
	return func(es *eventstream.EventStream) pactor.Actor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("daemon", false)
	viper.SetDefault("poll_interval_seconds", 1.0)
	viper.SetDefault("source.type", config.SOURCE_TYPE_SMART_METER)
	viper.SetDefault("source.port", 502)
	viper.SetDefault("source.unit", 1)
	viper.SetDefault("source.fixed_value_watt", 2000)
	viper.SetDefault("source.invert", true)
	viper.SetDefault("heat_pump.port", 502)
	viper.SetDefault("heat_pump.transform", "negative")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "excess2lambda")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
