package lambda_modbus

func CreateTestHeatPumpWriter() HeatPumpWriter {
	return &TestHeatPumpWriter{}
}

// TestHeatPumpWriter records every write. WriteErrs scripts the
// outcome of consecutive writes the same way TestPowerSourceReader
// scripts reads.
type TestHeatPumpWriter struct {
	Policy    TransformPolicy
	Written   []uint16
	WriteErrs []error
	calls     int
}

func (writer *TestHeatPumpWriter) Open() error {
	return nil
}

func (writer *TestHeatPumpWriter) Close() error {
	return nil
}

func (writer *TestHeatPumpWriter) WritePowerWatt(watt float64) (uint16, error) {
	i := writer.calls
	writer.calls++
	if i < len(writer.WriteErrs) && writer.WriteErrs[i] != nil {
		return 0, writer.WriteErrs[i]
	}
	policy := writer.Policy
	if policy == 0 {
		policy = TransformNegative
	}
	encoded := policy.Apply(watt)
	writer.Written = append(writer.Written, encoded)
	return encoded, nil
}
