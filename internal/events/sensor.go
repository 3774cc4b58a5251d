package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/vgrau/excess2lambda/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE      = "bridge"
	SENSOR_ID_SURPLUS_POWER     = "surplus_power"
	SENSOR_ID_CONTROL_VALUE     = "heat_pump_control_value"
	SENSOR_ID_HEAT_PUMP_POWER   = "heat_pump_power"
	SENSOR_ID_CYCLE_FAILURES    = "cycle_failures"
	SENSOR_ID_LAST_CYCLE_RESULT = "last_cycle_result"

	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"

	DEVICE_CLASS_POWER        = "power"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"

	ENTITY_CLASS_DIAGNOSTIC = "diagnostic"

	SENSOR_TYPE_SENSOR = "sensor"
	SENSOR_TYPE_BINARY = "binary_sensor"
)

func BridgeDevice(baseTopic string) domain.Device {
	return domain.Device{
		Id:           fmt.Sprintf("e2l_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "vgrau",
		Model:        "Excess2Lambda",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Excess2Lambda %s", md5HashShort(baseTopic)),
	}
}

// BridgeSensors is the full telemetry catalog published via HA discovery.
func BridgeSensors(bridgeDevice domain.Device) []domain.GenericSensor {

	var sensors []domain.GenericSensor

	// Bridge connection state
	sensors = append(sensors, domain.GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	// Surplus power read from the source
	sensors = append(sensors, domain.GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_SURPLUS_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Surplus power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		Icon:              "mdi:solar-power",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_SURPLUS_POWER),
	})

	// Encoded control register value
	sensors = append(sensors, domain.GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_CONTROL_VALUE,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Heat pump control value",
		StateClass:     STATE_CLASS_MEASUREMENT,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_CONTROL_VALUE),
	})

	// Power value sent to the heat pump
	sensors = append(sensors, domain.GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_HEAT_PUMP_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Heat pump power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		Icon:              "mdi:heat-pump",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_HEAT_PUMP_POWER),
	})

	// Consecutive cycle failures
	sensors = append(sensors, domain.GenericSensor{
		Device:           bridgeDevice,
		Id:               SENSOR_ID_CYCLE_FAILURES,
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "Consecutive cycle failures",
		StateClass:       STATE_CLASS_MEASUREMENT,
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(bridgeDevice.Id, SENSOR_ID_CYCLE_FAILURES),
	})

	// Last cycle result
	sensors = append(sensors, domain.GenericSensor{
		Device:           bridgeDevice,
		Id:               SENSOR_ID_LAST_CYCLE_RESULT,
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "Last cycle result",
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(bridgeDevice.Id, SENSOR_ID_LAST_CYCLE_RESULT),
	})

	return sensors
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
