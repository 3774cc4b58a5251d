package sunspec_modbus

// FixedValueReader always reports the same power value. Used to
// exercise a heat pump installation without a real metering source.
type FixedValueReader struct {
	value float64
}

func CreateFixedValueReader(valueWatt float64) (PowerSourceReader, error) {
	return &FixedValueReader{value: valueWatt}, nil
}

func (reader *FixedValueReader) Open() error {
	return nil
}

func (reader *FixedValueReader) Close() error {
	return nil
}

func (reader *FixedValueReader) ReadPowerWatt() (float64, error) {
	return reader.value, nil
}
