package mqtt

import (
	"testing"

	"github.com/vgrau/excess2lambda/internal/events"

	"github.com/stretchr/testify/assert"
)

func TestStateTopics(t *testing.T) {

	assert := assert.New(t)

	client := &MQTTClient{}
	client.cfg.BaseTopic = "loremtopic"

	assert.Equal("loremtopic/bridge/state", client.BridgeStateTopic())
	assert.Equal("loremtopic/sensor/surplus_power/state", client.SensorStateTopic(events.SENSOR_ID_SURPLUS_POWER))
	assert.Equal("loremtopic/binary_sensor/bridge/state", client.BinarySensorStateTopic(events.SENSOR_ID_BRIDGE_STATE))
}

func TestHADiscoveryMessages(t *testing.T) {

	assert := assert.New(t)

	client := &MQTTClient{}
	client.cfg.BaseTopic = "loremtopic"

	device := events.BridgeDevice(client.baseTopic())
	sensors := events.BridgeSensors(device)
	assert.NotEmpty(sensors)

	for _, sensor := range sensors {
		msg := GenericSensorToHADiscoveryMessage(client, sensor)
		assert.Equal("mqtt", msg.Platform)
		assert.Equal(client.BridgeStateTopic(), msg.AvTopic)
		assert.NotEmpty(msg.StateTopic)
		assert.NotEmpty(msg.UniqueId)

		topic := HADiscoverySensorTopic("homeassistant", sensor)
		assert.Contains(topic, "homeassistant/")
		assert.Contains(topic, sensor.Id)
	}
}

func TestHADiscoveryBridgeStatePayloads(t *testing.T) {

	assert := assert.New(t)

	client := &MQTTClient{}
	client.cfg.BaseTopic = "loremtopic"

	device := events.BridgeDevice(client.baseTopic())
	for _, sensor := range events.BridgeSensors(device) {
		if sensor.Id != events.SENSOR_ID_BRIDGE_STATE {
			continue
		}
		msg := GenericSensorToHADiscoveryMessage(client, sensor)
		assert.Equal(MQTT_PAYLOAD_ONLINE, msg.PayloadOn)
		assert.Equal(MQTT_PAYLOAD_OFFLINE, msg.PayloadOff)
		assert.Equal(client.BridgeStateTopic(), msg.StateTopic)
	}
}
