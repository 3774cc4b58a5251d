package sunspec_modbus

import (
	"errors"
	"testing"

	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeRegisterIO struct {
	regs     map[uint16]uint16
	raw      map[uint16][]byte
	readErrs []error
	openErr  error

	opens  int
	closes int
	reads  int
}

func (f *fakeRegisterIO) Open() error {
	f.opens++
	return f.openErr
}

func (f *fakeRegisterIO) Close() error {
	f.closes++
	return nil
}

func (f *fakeRegisterIO) ReadRegister(addr uint16, _ modbus.RegType) (uint16, error) {
	i := f.reads
	f.reads++
	if i < len(f.readErrs) && f.readErrs[i] != nil {
		return 0, f.readErrs[i]
	}
	return f.regs[addr], nil
}

func (f *fakeRegisterIO) ReadRawBytes(addr uint16, quantity uint16, _ modbus.RegType) ([]byte, error) {
	return f.raw[addr], nil
}

func testSmartMeterReader(conn registerIO, invert bool) *SmartMeterModbusReader {
	return &SmartMeterModbusReader{
		ModbusClient: ModbusClient{client: conn},
		invert:       invert,
		logger:       zap.NewNop(),
	}
}

func TestSmartMeterReadScaledInverted(t *testing.T) {

	assert := assert.New(t)

	// raw 200 with SF -1 is 20 W; the meter reports export negative,
	// invert flips it to surplus-positive
	conn := &fakeRegisterIO{regs: map[uint16]uint16{
		SMART_METER_POWER_REGISTER:    200,
		SMART_METER_POWER_SF_REGISTER: 0xffff,
	}}
	reader := testSmartMeterReader(conn, true)

	power, err := reader.ReadPowerWatt()
	assert.NoError(err)
	assert.Equal(-20.0, power)
	// power and scale factor are paired reads of the same cycle
	assert.Equal(2, conn.reads)

	reader = testSmartMeterReader(conn, false)
	power, err = reader.ReadPowerWatt()
	assert.NoError(err)
	assert.Equal(20.0, power)
}

func TestSmartMeterReadFailureNoRetry(t *testing.T) {

	assert := assert.New(t)

	conn := &fakeRegisterIO{readErrs: []error{modbus.ErrRequestTimedOut}}
	reader := testSmartMeterReader(conn, true)

	_, err := reader.ReadPowerWatt()
	var connErr *ConnectionError
	assert.ErrorAs(err, &connErr)
	// a failed register read is not retried by the reader itself
	assert.Equal(1, conn.reads)
	assert.Zero(conn.opens)
}

func TestSmartMeterValidate(t *testing.T) {

	assert := assert.New(t)

	conn := &fakeRegisterIO{raw: map[uint16][]byte{40000: []byte("SunS")}}
	reader := testSmartMeterReader(conn, true)
	assert.NoError(reader.Validate())

	conn.raw[40000] = []byte("nope")
	var protoErr *ProtocolError
	assert.ErrorAs(reader.Validate(), &protoErr)
}

func TestInverterSurveyAndSum(t *testing.T) {

	assert := assert.New(t)

	// model chain: inverter model (skipped), two ac meters, end marker
	conn := &fakeRegisterIO{
		raw: map[uint16][]byte{40000: []byte("SunS")},
		regs: map[uint16]uint16{
			40002: 101, 40003: 50,
			40054: 203, 40055: 105,
			40072: 1500, 40076: 0,
			40161: 201, 40162: 105,
			40179: 500, 40183: 0,
			40268: 0xffff,
		},
	}
	reader := &SolarEdgeInverterReader{
		ModbusClient: ModbusClient{client: conn},
		logger:       zap.NewNop(),
	}

	assert.NoError(reader.Open())
	assert.Len(reader.meters, 2)

	power, err := reader.ReadPowerWatt()
	assert.NoError(err)
	assert.Equal(2000.0, power)
}

func TestInverterSurveyNoMeters(t *testing.T) {

	assert := assert.New(t)

	conn := &fakeRegisterIO{
		raw: map[uint16][]byte{40000: []byte("SunS")},
		regs: map[uint16]uint16{
			40002: 101, 40003: 50,
			40054: 0xffff,
		},
	}
	reader := &SolarEdgeInverterReader{
		ModbusClient: ModbusClient{client: conn},
		logger:       zap.NewNop(),
	}

	var protoErr *ProtocolError
	assert.ErrorAs(reader.Open(), &protoErr)
}

func TestInverterReconnectOnceOnDisconnect(t *testing.T) {

	assert := assert.New(t)

	conn := &fakeRegisterIO{openErr: errors.New("connection refused")}
	reader := &SolarEdgeInverterReader{
		ModbusClient: ModbusClient{client: conn},
		meters:       map[uint16]subMeter{0: {blockId: 203, baseAddr: 40054}},
		logger:       zap.NewNop(),
	}

	// link down: exactly one reconnect attempt per read
	_, err := reader.ReadPowerWatt()
	var connErr *ConnectionError
	assert.ErrorAs(err, &connErr)
	assert.Equal(1, conn.opens)
	assert.Equal(1, conn.closes)
	assert.Zero(conn.reads)

	_, err = reader.ReadPowerWatt()
	assert.ErrorAs(err, &connErr)
	assert.Equal(2, conn.opens)
}

func TestInverterReadFailureMarksDisconnected(t *testing.T) {

	assert := assert.New(t)

	conn := &fakeRegisterIO{
		regs: map[uint16]uint16{
			40072: 1500, 40076: 0,
		},
		readErrs: []error{modbus.ErrRequestTimedOut},
	}
	reader := &SolarEdgeInverterReader{
		ModbusClient: ModbusClient{client: conn},
		meters:       map[uint16]subMeter{0: {blockId: 203, baseAddr: 40054}},
		connected:    true,
		logger:       zap.NewNop(),
	}

	_, err := reader.ReadPowerWatt()
	var connErr *ConnectionError
	assert.ErrorAs(err, &connErr)
	assert.False(reader.connected)

	// next read reconnects once and succeeds
	power, err := reader.ReadPowerWatt()
	assert.NoError(err)
	assert.Equal(1500.0, power)
	assert.Equal(1, conn.opens)
}
