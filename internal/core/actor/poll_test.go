package actor

import (
	"errors"
	"sync"
	"testing"
	"time"

	adactor "github.com/vgrau/excess2lambda/internal/adapter/actor"
	"github.com/vgrau/excess2lambda/internal/config"
	"github.com/vgrau/excess2lambda/internal/core/domain"
	"github.com/vgrau/excess2lambda/internal/core/service"
	"github.com/vgrau/excess2lambda/internal/util"
	"github.com/vgrau/excess2lambda/pkg/lambda_modbus"
	"github.com/vgrau/excess2lambda/pkg/sunspec_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type cycleEventCollector struct {
	mu        sync.Mutex
	completed []domain.CycleCompletedEvent
	failed    []domain.CycleFailedEvent
}

func (c *cycleEventCollector) subscribe(es *eventstream.EventStream) *eventstream.Subscription {
	return es.Subscribe(func(evt any) {
		c.mu.Lock()
		defer c.mu.Unlock()
		switch ev := evt.(type) {
		case domain.CycleCompletedEvent:
			c.completed = append(c.completed, ev)
		case domain.CycleFailedEvent:
			c.failed = append(c.failed, ev)
		}
	})
}

func (c *cycleEventCollector) snapshot() ([]domain.CycleCompletedEvent, []domain.CycleFailedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.CycleCompletedEvent{}, c.completed...), append([]domain.CycleFailedEvent{}, c.failed...)
}

func spawnPollFixture(t *testing.T, context *actor.RootContext, cfg config.Config, es *eventstream.EventStream,
	sink lambda_modbus.HeatPumpWriter, source sunspec_modbus.PowerSourceReader, logger *zap.Logger) *actor.PID {
	t.Helper()

	modbusProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewModbusActor(source, sink, logger)
	})
	modbusPID := context.Spawn(modbusProps)

	policy := &service.RunModeFailurePolicy{
		Daemon: cfg.Daemon,
		Logger: logger,
	}
	pollProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollActor(&cfg, modbusPID, es, policy, logger)
	})
	return context.Spawn(pollProps)
}

func TestPollActorDaemonTolerantLoop(t *testing.T) {

	assert := assert.New(t)

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.Daemon = true
	logger := zap.Must(zap.NewDevelopment())

	es := &eventstream.EventStream{}
	collector := &cycleEventCollector{}
	sub := collector.subscribe(es)
	defer es.Unsubscribe(sub)

	// first two writes fail, the loop must keep going
	sink := &lambda_modbus.TestHeatPumpWriter{
		WriteErrs: []error{
			&lambda_modbus.WriteError{Register: 102, Cause: errors.New("timeout")},
			&lambda_modbus.DeviceOffError{},
		},
	}
	source := sunspec_modbus.CreateTestPowerSourceReader()

	pid := spawnPollFixture(t, context, cfg, es, sink, source, logger)

	time.Sleep(2 * time.Second)

	completed, failed := collector.snapshot()
	assert.GreaterOrEqual(len(failed), 2, "two failed cycles observed")
	for _, ev := range failed {
		assert.False(ev.Fatal, "daemon failures are not fatal")
		assert.Equal(domain.CYCLE_STAGE_WRITE, ev.Stage)
	}
	assert.NotEmpty(completed, "loop recovered after failures")
	assert.NotEmpty(sink.Written, "writes resumed")

	context.Stop(pid)
	as.Shutdown()
}

func TestPollActorDaemonReadFailures(t *testing.T) {

	assert := assert.New(t)

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.Daemon = true
	logger := zap.Must(zap.NewDevelopment())

	es := &eventstream.EventStream{}
	collector := &cycleEventCollector{}
	sub := collector.subscribe(es)
	defer es.Unsubscribe(sub)

	// first two reads fail, then the source recovers
	source := &sunspec_modbus.TestPowerSourceReader{
		Value: 1250,
		ReadErrs: []error{
			&sunspec_modbus.ConnectionError{Cause: errors.New("timeout")},
			&sunspec_modbus.ConnectionError{Cause: errors.New("timeout")},
		},
	}
	sink := &lambda_modbus.TestHeatPumpWriter{}

	pid := spawnPollFixture(t, context, cfg, es, sink, source, logger)

	time.Sleep(2 * time.Second)

	completed, failed := collector.snapshot()
	assert.GreaterOrEqual(len(failed), 2, "two failed cycles observed")
	for _, ev := range failed {
		assert.False(ev.Fatal, "daemon failures are not fatal")
		assert.Equal(domain.CYCLE_STAGE_READ, ev.Stage)
	}
	assert.NotEmpty(completed, "loop recovered after failures")
	assert.NotEmpty(sink.Written, "writes resumed")

	context.Stop(pid)
	as.Shutdown()
}

func TestPollActorOneShotFatalFailure(t *testing.T) {

	assert := assert.New(t)

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.Daemon = false
	logger := zap.Must(zap.NewDevelopment())

	es := &eventstream.EventStream{}
	collector := &cycleEventCollector{}
	sub := collector.subscribe(es)
	defer es.Unsubscribe(sub)

	sink := &lambda_modbus.TestHeatPumpWriter{
		WriteErrs: []error{&lambda_modbus.DeviceFaultError{Status: 3}},
	}
	source := sunspec_modbus.CreateTestPowerSourceReader()

	pid := spawnPollFixture(t, context, cfg, es, sink, source, logger)

	time.Sleep(2 * time.Second)

	completed, failed := collector.snapshot()
	assert.Len(failed, 1, "exactly one failed cycle")
	assert.True(failed[0].Fatal, "one-shot failure is fatal")
	assert.Empty(completed, "no completed cycles")
	assert.Empty(sink.Written, "no writes after the fatal cycle")

	context.Stop(pid)
	as.Shutdown()
}

func TestPollActorReadOnly(t *testing.T) {

	assert := assert.New(t)

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.HeatPump.Host = ""
	logger := zap.Must(zap.NewDevelopment())

	es := &eventstream.EventStream{}
	collector := &cycleEventCollector{}
	sub := collector.subscribe(es)
	defer es.Unsubscribe(sub)

	source := sunspec_modbus.CreateTestPowerSourceReader()

	pid := spawnPollFixture(t, context, cfg, es, nil, source, logger)

	time.Sleep(1 * time.Second)

	completed, failed := collector.snapshot()
	assert.Empty(failed)
	assert.NotEmpty(completed, "read-only cycles complete")
	for _, ev := range completed {
		assert.False(ev.Written, "nothing written in read-only mode")
		assert.Equal(1250.0, ev.PowerWatt)
	}

	context.Stop(pid)
	as.Shutdown()
}
