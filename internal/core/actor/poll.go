package actor

import (
	"fmt"
	"time"

	"github.com/vgrau/excess2lambda/internal/config"
	"github.com/vgrau/excess2lambda/internal/core/domain"
	"github.com/vgrau/excess2lambda/internal/core/port"
	"github.com/vgrau/excess2lambda/internal/events"
	. "github.com/vgrau/excess2lambda/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// PollActor drives the read/transform/write cycle. A tick starts a
// cycle, the next tick is scheduled only after the current one fully
// completes, so the configured interval is a floor on the cycle
// period and cycles never overlap.
type PollActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	modbusActor *actor.PID
	config      *config.Config
	eventStream *eventstream.EventStream
	policy      port.CycleFailurePolicy
	lastPower   float64
	stopped     bool

	logger *zap.Logger
}

type pollTick struct {
}

func NewPollActor(config *config.Config, modbusActor *actor.PID, eventStream *eventstream.EventStream,
	policy port.CycleFailurePolicy, logger *zap.Logger) *PollActor {
	act := &PollActor{
		config:      config,
		modbusActor: modbusActor,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger("poll", logger),
		eventStream: eventStream,
		policy:      policy,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *PollActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PollActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("poll@starting started")

		state.scheduler = scheduler.NewTimerScheduler(ctx)
		// first cycle runs immediately
		ctx.Send(ctx.Self(), pollTick{})

		state.behavior.Become(state.DefaultReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("poll@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("poll@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLL,
			Healthy: !state.stopped,
			State:   "idle",
		})
	case pollTick:
		state.logger.Debug("poll@default tick")
		if state.stopped {
			return
		}
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.modbusActor, domain.ReadPowerRequest{}, 5*time.Second), func(err error) any {
			return domain.ReadPowerResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.Become(state.WaitingReadReceive)
	default:
		state.logger.Debug("poll@default: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollActor) WaitingReadReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLL,
			Healthy: !state.stopped,
			State:   "polling",
		})
	case domain.ReadPowerResponse:
		if msg.HasResponseError() {
			state.cycleFailed(ctx, domain.CYCLE_STAGE_READ, msg.GetResponseError())
			return
		}
		state.logger.Debug("poll@waitingRead ReadPowerResponse", zap.Float64("power", msg.PowerWatt))

		state.eventStream.Publish(domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: events.SENSOR_ID_SURPLUS_POWER,
			},
			Value: msg.PowerWatt,
		})

		if !state.config.HasHeatPump() {
			// read-only mode, cycle done after the read
			state.cycleCompleted(ctx, domain.CycleCompletedEvent{
				PowerWatt: msg.PowerWatt,
				Written:   false,
			})
			return
		}

		power := msg.PowerWatt
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.modbusActor, domain.WritePowerRequest{PowerWatt: power}, 5*time.Second), func(err error) any {
			return domain.WritePowerResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.lastPower = power
		state.behavior.Become(state.WaitingWriteReceive)
	default:
		state.logger.Debug("poll@waitingRead: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollActor) WaitingWriteReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLL,
			Healthy: !state.stopped,
			State:   "polling",
		})
	case domain.WritePowerResponse:
		if msg.HasResponseError() {
			state.cycleFailed(ctx, domain.CYCLE_STAGE_WRITE, msg.GetResponseError())
			return
		}
		state.logger.Debug("poll@waitingWrite WritePowerResponse", zap.Uint16("control", msg.ControlValue))

		state.eventStream.Publish(domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: events.SENSOR_ID_CONTROL_VALUE,
			},
			Value: float64(msg.ControlValue),
		})

		state.cycleCompleted(ctx, domain.CycleCompletedEvent{
			PowerWatt:    state.lastPower,
			ControlValue: msg.ControlValue,
			Written:      true,
		})
	default:
		state.logger.Debug("poll@waitingWrite: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollActor) cycleCompleted(ctx actor.Context, event domain.CycleCompletedEvent) {
	state.policy.OnSuccess()
	state.eventStream.Publish(event)
	if event.Written {
		state.eventStream.Publish(domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: events.SENSOR_ID_HEAT_PUMP_POWER,
			},
			Value: event.PowerWatt,
		})
	}
	state.eventStream.Publish(domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: events.SENSOR_ID_CYCLE_FAILURES,
		},
		Value: 0,
	})
	state.eventStream.Publish(domain.TextSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: events.SENSOR_ID_LAST_CYCLE_RESULT,
		},
		Value: "ok",
	})
	state.scheduleNext(ctx)
	state.becomeDefault(ctx)
}

func (state *PollActor) cycleFailed(ctx actor.Context, stage string, cause error) {
	event := state.policy.OnFailure(stage, cause)
	state.eventStream.Publish(event)
	state.eventStream.Publish(domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: events.SENSOR_ID_CYCLE_FAILURES,
		},
		Value: float64(state.policy.ConsecutiveFailures()),
	})
	state.eventStream.Publish(domain.TextSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: events.SENSOR_ID_LAST_CYCLE_RESULT,
		},
		Value: fmt.Sprintf("%s failed", stage),
	})
	if event.Fatal {
		// main observes the fatal event and terminates the process
		state.stopped = true
	} else {
		state.scheduleNext(ctx)
	}
	state.becomeDefault(ctx)
}

func (state *PollActor) scheduleNext(ctx actor.Context) {
	state.scheduler.RequestOnce(state.config.PollInterval(), ctx.Self(), pollTick{})
}

func (state *PollActor) becomeDefault(ctx actor.Context) {
	state.behavior.Become(state.DefaultReceive)
	state.stash.UnstashAll(ctx)
}
