package domain

import "fmt"

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

type BinarySensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

// poll cycle stages
const (
	CYCLE_STAGE_READ      = "read"
	CYCLE_STAGE_TRANSFORM = "transform"
	CYCLE_STAGE_WRITE     = "write"
)

// CycleCompletedEvent is published after every successful poll cycle.
type CycleCompletedEvent struct {
	PowerWatt    float64
	ControlValue uint16
	// Written is false when no sink is configured (read-only mode)
	Written bool
}

// CycleFailedEvent is published when a poll cycle fails at any stage.
// Fatal means the run mode does not tolerate the failure and the
// process should terminate.
type CycleFailedEvent struct {
	Stage string
	Cause error
	Fatal bool
}
