package sunspec_modbus

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// SunSpec smart meter register map (Fronius Smart Meter and
// compatibles). Power and its scale factor are paired registers and
// are always read within the same cycle.
const (
	SMART_METER_POWER_REGISTER    = 40087
	SMART_METER_POWER_SF_REGISTER = 40091
)

// SmartMeterModbusReader reads the instantaneous power of a SunSpec
// smart meter from two fixed holding registers (raw int16 magnitude
// plus base-10 scale factor exponent).
type SmartMeterModbusReader struct {
	ModbusClient
	invert bool
	logger *zap.Logger
}

func CreateSmartMeterModbusReader(ip string, port uint, unitId uint8, timeout time.Duration,
	invert bool, logger *zap.Logger, instrumentation *ModbusInstrument) (PowerSourceReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", ip, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	// instrumentation
	var inst []ModbusInstrument
	logInst := debugLoggerInstrumentation(logger.With(zap.String("target", "smartMeter")).With(zap.Uint8("unit", unitId)))
	if logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	// set meter address
	err = client.SetUnitId(unitId)
	if err != nil {
		return nil, err
	}
	reader := SmartMeterModbusReader{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: inst,
		},
		invert: invert,
		logger: logger,
	}
	return &reader, nil
}

func (reader *SmartMeterModbusReader) Open() error {
	if err := reader.client.Open(); err != nil {
		return &ConnectionError{Cause: err}
	}
	return nil
}

func (reader *SmartMeterModbusReader) Close() error {
	return reader.client.Close()
}

// Validate checks the SunSpec marker so a misconfigured address fails
// loudly instead of producing garbage readings.
func (reader *SmartMeterModbusReader) Validate() error {
	str, err := reader.readString(40000, 4)
	if err != nil {
		return classifyReadError(err)
	}
	if str != "SunS" {
		return &ProtocolError{Reason: "could not find a SunSpec smart meter"}
	}
	return nil
}

// ReadPowerWatt reads the raw power and scale-factor registers and
// combines them. With invert set, the meter's sign convention
// (export negative) is flipped so that surplus comes out positive.
func (reader *SmartMeterModbusReader) ReadPowerWatt() (float64, error) {
	rawPower, err := reader.readRegister(SMART_METER_POWER_REGISTER, modbus.HOLDING_REGISTER)
	if err != nil {
		return 0, classifyReadError(err)
	}
	rawScale, err := reader.readRegister(SMART_METER_POWER_SF_REGISTER, modbus.HOLDING_REGISTER)
	if err != nil {
		return 0, classifyReadError(err)
	}
	power := ScaledPower(rawPower, rawScale)
	reader.logger.Debug("smart meter read",
		zap.Uint16("raw", rawPower),
		zap.Int16("decoded", DecodeInt16(rawPower)),
		zap.Int16("scaleFactor", DecodeInt16(rawScale)),
		zap.Float64("watt", power))
	if reader.invert {
		power = -power
	}
	return power, nil
}

// classifyReadError maps transport errors onto the source error
// taxonomy: modbus exception responses are protocol errors, anything
// else (unreachable peer, timeout, short frame) is a connection error.
func classifyReadError(err error) error {
	if err == modbus.ErrIllegalFunction ||
		err == modbus.ErrIllegalDataAddress ||
		err == modbus.ErrIllegalDataValue ||
		err == modbus.ErrServerDeviceFailure ||
		err == modbus.ErrMemoryParityError ||
		err == modbus.ErrServerDeviceBusy ||
		err == modbus.ErrGWPathUnavailable ||
		err == modbus.ErrGWTargetFailedToRespond {
		return &ProtocolError{Reason: err.Error()}
	}
	return &ConnectionError{Cause: err}
}
