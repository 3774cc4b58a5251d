package sunspec_modbus

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

const (
	SUNSPEC_WK_COMMON        = 1
	SUNSPEC_WK_INVERTERS_MIN = 101
	SUNSPEC_WK_INVERTERS_MAX = 103
	SUNSPEC_WK_METERS_MIN    = 201
	SUNSPEC_WK_METERS_MAX    = 204
)

// register offsets inside a SunSpec AC meter model, relative to the
// block base address (including the 2-register model header)
const (
	meterBlockPowerOffset   = 18
	meterBlockPowerSFOffset = 22
)

type subMeter struct {
	blockId  uint16
	baseAddr uint16
}

// SolarEdgeInverterReader aggregates the instantaneous power of every
// AC meter attached to a SolarEdge-style inverter. The meter set is
// surveyed once on Open and not refreshed per read; sub-meter values
// are summed, so iteration order does not matter.
type SolarEdgeInverterReader struct {
	ModbusClient
	meters    map[uint16]subMeter
	connected bool
	logger    *zap.Logger
}

func CreateSolarEdgeInverterReader(ip string, port uint, unitId uint8, timeout time.Duration,
	logger *zap.Logger, instrumentation *ModbusInstrument) (PowerSourceReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", ip, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	// instrumentation
	var inst []ModbusInstrument
	logInst := debugLoggerInstrumentation(logger.With(zap.String("target", "inverter")).With(zap.Uint8("unit", unitId)))
	if logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	err = client.SetUnitId(unitId)
	if err != nil {
		return nil, err
	}
	reader := SolarEdgeInverterReader{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: inst,
		},
		logger: logger,
	}
	return &reader, nil
}

func (reader *SolarEdgeInverterReader) Open() error {
	if err := reader.client.Open(); err != nil {
		return &ConnectionError{Cause: err}
	}
	if err := reader.survey(); err != nil {
		return err
	}
	reader.connected = true
	return nil
}

func (reader *SolarEdgeInverterReader) Close() error {
	reader.connected = false
	return reader.client.Close()
}

// ReadPowerWatt sums the scaled power of every surveyed sub-meter.
// If the link is down it performs exactly one reconnect attempt
// before reading; further recovery is up to the caller.
func (reader *SolarEdgeInverterReader) ReadPowerWatt() (float64, error) {
	if !reader.connected {
		if err := reader.reconnect(); err != nil {
			return 0, err
		}
	}
	var total float64
	for _, meter := range reader.meters {
		rawPower, err := reader.readRegister(meter.baseAddr+meterBlockPowerOffset, modbus.HOLDING_REGISTER)
		if err != nil {
			reader.connected = false
			return 0, classifyReadError(err)
		}
		rawScale, err := reader.readRegister(meter.baseAddr+meterBlockPowerSFOffset, modbus.HOLDING_REGISTER)
		if err != nil {
			reader.connected = false
			return 0, classifyReadError(err)
		}
		total += ScaledPower(rawPower, rawScale)
	}
	return total, nil
}

func (reader *SolarEdgeInverterReader) reconnect() error {
	reader.client.Close()
	if err := reader.client.Open(); err != nil {
		return &ConnectionError{Cause: err}
	}
	reader.connected = true
	return nil
}

// survey walks the SunSpec model chain and records every attached AC
// meter model. The inverter model itself is skipped: only meter
// readings feed the aggregate.
func (reader *SolarEdgeInverterReader) survey() error {

	// check SunSpec
	str, err := reader.readString(40000, 4)
	if err != nil {
		return classifyReadError(err)
	}
	if str != "SunS" {
		return &ProtocolError{Reason: "could not find a SunSpec inverter"}
	}

	meters := make(map[uint16]subMeter)
	var baseAddr uint16 = 40002
	n := 0
	for {
		block, err := surveyModbusBlock(reader.client, baseAddr)
		if err != nil {
			return classifyReadError(err)
		}
		if block.isEndBlock() {
			break
		}
		if block.id >= SUNSPEC_WK_METERS_MIN && block.id <= SUNSPEC_WK_METERS_MAX {
			meters[uint16(len(meters))] = subMeter{
				blockId:  block.id,
				baseAddr: block.baseAddr,
			}
		}
		baseAddr = baseAddr + block.length + 2
		// ensure the loop has an ending
		if n > 20 {
			break
		}
		n++
	}
	if len(meters) == 0 {
		return &ProtocolError{Reason: "could not find any attached sunspec meter model"}
	}
	reader.logger.Info("surveyed inverter sub-meters", zap.Int("count", len(meters)))
	reader.meters = meters
	return nil
}

type modbusBlock struct {
	id       uint16
	baseAddr uint16
	length   uint16
}

func (block *modbusBlock) isEndBlock() bool {
	return block.id == 0xFFFF
}

func surveyModbusBlock(client registerIO, baseAddr uint16) (*modbusBlock, error) {
	wellKnownValue, err := client.ReadRegister(baseAddr, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	length, err := client.ReadRegister(baseAddr+1, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	return &modbusBlock{
		id:       wellKnownValue,
		length:   length,
		baseAddr: baseAddr,
	}, nil
}
