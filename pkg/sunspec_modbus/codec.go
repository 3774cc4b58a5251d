package sunspec_modbus

import (
	"math"
)

// DecodeInt16 reinterprets a raw 16-bit register value as a signed
// integer using two's complement: if bit 15 is set the result is
// raw - 2^16, otherwise the value is returned as is.
func DecodeInt16(raw uint16) int16 {
	return int16(raw)
}

// ScaledPower combines a raw magnitude register with its SunSpec
// scale-factor register into a physical value:
// decode(raw) * 10^decode(sf). Both registers must come from the
// same poll cycle.
func ScaledPower(raw uint16, sf uint16) float64 {
	return float64(DecodeInt16(raw)) * math.Pow(10, float64(DecodeInt16(sf)))
}
