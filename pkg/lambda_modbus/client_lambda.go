package lambda_modbus

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// registerIO is the minimal transport surface the writer needs. The
// production implementation wraps a Modbus TCP client; tests swap in
// an in-memory fake.
type registerIO interface {
	Open() error
	Close() error
	ReadRegister(addr uint16) (uint16, error)
	WriteRegister(addr uint16, value uint16) error
}

type modbusRegisterIO struct {
	client     *modbus.ModbusClient
	instrument []ModbusInstrument
}

type ModbusInstrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

func (conn *modbusRegisterIO) Open() error {
	return conn.client.Open()
}

func (conn *modbusRegisterIO) Close() error {
	return conn.client.Close()
}

func (conn *modbusRegisterIO) ReadRegister(addr uint16) (uint16, error) {
	defer recordTimer("ReadRegister", conn.instrument)()
	return conn.client.ReadRegister(addr, modbus.HOLDING_REGISTER)
}

func (conn *modbusRegisterIO) WriteRegister(addr uint16, value uint16) error {
	defer recordTimer("WriteRegister", conn.instrument)()
	return conn.client.WriteRegister(addr, value)
}

func recordTimer(name string, instrument []ModbusInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

// LambdaHeatPumpWriter drives a Lambda heat pump's power-control
// register over Modbus TCP.
type LambdaHeatPumpWriter struct {
	conn   registerIO
	policy TransformPolicy
	logger *zap.Logger
}

func CreateLambdaHeatPumpWriter(ip string, port uint, timeout time.Duration,
	policy TransformPolicy, logger *zap.Logger, instrumentation *ModbusInstrument) (HeatPumpWriter, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", ip, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	// instrumentation
	var inst []ModbusInstrument
	inst = append(inst, ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus op", zap.String("target", "heatPump"),
				zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	})
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	switch policy {
	case TransformNegative, TransformPositive:
	default:
		return nil, fmt.Errorf("unknown value transform %s", policy)
	}

	writer := LambdaHeatPumpWriter{
		conn: &modbusRegisterIO{
			client:     client,
			instrument: inst,
		},
		policy: policy,
		logger: logger,
	}
	return &writer, nil
}

func (writer *LambdaHeatPumpWriter) Open() error {
	if err := writer.conn.Open(); err != nil {
		return &ConnectionError{Cause: err}
	}
	return nil
}

func (writer *LambdaHeatPumpWriter) Close() error {
	return writer.conn.Close()
}

// WritePowerWatt checks device health, transforms the signed power
// value through the configured policy and writes the encoding to the
// power-control register. Health is read fresh on every call.
func (writer *LambdaHeatPumpWriter) WritePowerWatt(watt float64) (uint16, error) {
	if err := writer.checkHealth(); err != nil {
		return 0, err
	}
	encoded := writer.policy.Apply(watt)
	writer.logger.Debug("heat pump write",
		zap.Float64("watt", watt),
		zap.String("transform", writer.policy.String()),
		zap.String("encoded", fmt.Sprintf("%#04x", encoded)))
	if err := writer.conn.WriteRegister(HEAT_PUMP_POWER_CONTROL_REGISTER, encoded); err != nil {
		return 0, &WriteError{Register: HEAT_PUMP_POWER_CONTROL_REGISTER, Cause: err}
	}
	return encoded, nil
}

// checkHealth reads the status register. A transport failure is
// retried exactly once after a reconnect; a second failure is final
// for this cycle.
func (writer *LambdaHeatPumpWriter) checkHealth() error {
	status, err := writer.conn.ReadRegister(HEAT_PUMP_STATUS_REGISTER)
	if err != nil {
		writer.logger.Warn("heat pump status read failed, reconnecting", zap.Error(err))
		writer.conn.Close()
		if err := writer.conn.Open(); err != nil {
			return &ConnectionError{Cause: err}
		}
		status, err = writer.conn.ReadRegister(HEAT_PUMP_STATUS_REGISTER)
		if err != nil {
			return &ConnectionError{Cause: err}
		}
	}
	switch status {
	case HEAT_PUMP_STATUS_OFF:
		return &DeviceOffError{}
	case HEAT_PUMP_STATUS_ERROR:
		return &DeviceFaultError{Status: status}
	}
	return nil
}
