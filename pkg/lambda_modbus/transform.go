package lambda_modbus

import (
	"fmt"
)

// TransformPolicy maps a signed surplus/deficit power value onto the
// heat pump's unsigned power-control register encoding.
type TransformPolicy uint8

const (
	// TransformNegative encodes surplus as the negative distance from
	// the unsigned wrap point (two's-complement style), so the device
	// sees excess power as a negative quantity.
	TransformNegative TransformPolicy = iota + 1
	// TransformPositive passes surplus through unchanged, clamped to
	// the register range.
	TransformPositive
)

const (
	TransformNegativeStr = "negative"
	TransformPositiveStr = "positive"
)

// ParseTransformPolicy resolves a policy selector tag. Unknown tags
// are a configuration fault and never default silently.
func ParseTransformPolicy(name string) (TransformPolicy, error) {
	switch name {
	case TransformNegativeStr:
		return TransformNegative, nil
	case TransformPositiveStr:
		return TransformPositive, nil
	default:
		return 0, fmt.Errorf("unknown value transform %q", name)
	}
}

func (p TransformPolicy) String() string {
	switch p {
	case TransformNegative:
		return TransformNegativeStr
	case TransformPositive:
		return TransformPositiveStr
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// Apply truncates the power value to an integer number of watts and
// applies the policy. The result always fits the 16-bit register.
func (p TransformPolicy) Apply(watt float64) uint16 {
	v := int(watt)
	if p == TransformNegative {
		return NegativeTransform(v)
	}
	return PositiveTransform(v)
}

// NegativeTransform encodes a signed watt value for a device that
// expects excess power as a negative register value:
//   - deficit (v <= 0): the device may draw up to -v, saturated at
//     0x7fff so the value never aliases with the surplus half.
//   - surplus below 0x8000: the 16-bit two's-complement encoding of
//     -v, i.e. 0x10000 - v.
//   - surplus at or above 0x8000: saturated at 0x8000 instead of
//     wrapping back into the deficit range.
func NegativeTransform(v int) uint16 {
	if v <= 0 {
		return uint16(min(-v, 0x7fff))
	} else if v < 0x8000 {
		return uint16(0x10000 - v)
	}
	return 0x8000
}

// PositiveTransform passes the watt value through, clamped to the
// register range [0, 0xFFFF].
func PositiveTransform(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xffff {
		return 0xffff
	}
	return uint16(v)
}
