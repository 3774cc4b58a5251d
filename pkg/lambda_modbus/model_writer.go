package lambda_modbus

// Lambda heat pump register map. Fixed by the device firmware.
const (
	HEAT_PUMP_STATUS_REGISTER        = 1
	HEAT_PUMP_POWER_CONTROL_REGISTER = 102
)

// heat pump status register values: 0 = off, 3 = error, anything
// else is treated as healthy
const (
	HEAT_PUMP_STATUS_OFF   = 0
	HEAT_PUMP_STATUS_ERROR = 3
)

// HeatPumpWriter is the capability shared by all heat pump sinks:
// push one signed power value per call. Implementations check device
// health immediately before every write and never cache it across
// cycles. The returned value is the register encoding actually
// written, for diagnostics.
type HeatPumpWriter interface {
	Open() error
	Close() error
	WritePowerWatt(watt float64) (uint16, error)
}
