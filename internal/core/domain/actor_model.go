package domain

const (
	ACTOR_ID_MASTER = "master"
	ACTOR_ID_MODBUS = "modbus"
	ACTOR_ID_POLL   = "poll"
	ACTOR_ID_MQTT   = "mqtt"
)

type ReadPowerRequest struct {
	ActorRequestMixIn
}

type ReadPowerResponse struct {
	ActorResponseMixIn
	PowerWatt float64
}

type WritePowerRequest struct {
	ActorRequestMixIn
	PowerWatt float64
}

type WritePowerResponse struct {
	ActorResponseMixIn
	// ControlValue is the encoded register value written to the heat pump
	ControlValue uint16
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
