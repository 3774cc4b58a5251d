package actor

import (
	"fmt"
	"time"

	"github.com/vgrau/excess2lambda/internal/core/domain"
	"github.com/vgrau/excess2lambda/internal/util/actorutil"
	"github.com/vgrau/excess2lambda/pkg/lambda_modbus"
	"github.com/vgrau/excess2lambda/pkg/sunspec_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

const (
	MODBUS_ACTOR_ID = "modbus"
)

// ModbusActor owns the power source and the heat pump connection.
// All modbus IO runs as background tasks while requests are stashed,
// so the source and the sink are never used concurrently.
type ModbusActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	source   sunspec_modbus.PowerSourceReader
	heatPump lambda_modbus.HeatPumpWriter
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewModbusActor(source sunspec_modbus.PowerSourceReader, heatPump lambda_modbus.HeatPumpWriter, logger *zap.Logger) *ModbusActor {
	act := &ModbusActor{
		source:   source,
		heatPump: heatPump,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger("modbus", logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *ModbusActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ModbusActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("modbus@starting started")
		err := state.source.Open()
		if err != nil {
			panic(err)
		}
		if state.heatPump != nil {
			err := state.heatPump.Open()
			if err != nil {
				panic(err)
			}
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.source.Close()
		if state.heatPump != nil {
			state.heatPump.Close()
		}
	default:
		state.logger.Debug("modbus@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ModbusActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("modbus@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      MODBUS_ACTOR_ID,
			Healthy: true,
			State:   "idle",
		})
	case domain.ReadPowerRequest:
		state.logger.Debug("modbus@default: ReadPowerRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.readPower),
			mapTaskResult[domain.ReadPowerResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.ReadPowerResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(2 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case domain.WritePowerRequest:
		state.logger.Debug("modbus@default: WritePowerRequest", zap.Float64("power", msg.PowerWatt))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.WritePowerResponse, error) {
			return state.writePower(msg.PowerWatt)
		}),
			mapTaskResult[domain.WritePowerResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.WritePowerResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(2 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case *actor.Stopping:
		state.source.Close()
		if state.heatPump != nil {
			state.heatPump.Close()
		}
	default:
		state.logger.Debug("modbus@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ModbusActor) WaitingModbus(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("modbus@WaitingModbus backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.source.Close()
		if state.heatPump != nil {
			state.heatPump.Close()
		}
	default:
		state.logger.Debug("modbus@WaitingModbus stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *ModbusActor) readPower() (*domain.ReadPowerResponse, error) {
	power, err := a.source.ReadPowerWatt()
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.ReadPowerResponse{
		PowerWatt: power,
	}, nil
}

func (a *ModbusActor) writePower(powerWatt float64) (*domain.WritePowerResponse, error) {
	if a.heatPump == nil {
		// read-only mode, nothing to write
		return &domain.WritePowerResponse{}, nil
	}
	encoded, err := a.heatPump.WritePowerWatt(powerWatt)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.WritePowerResponse{
		ControlValue: encoded,
	}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
