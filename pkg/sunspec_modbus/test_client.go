package sunspec_modbus

func CreateTestPowerSourceReader() PowerSourceReader {
	return &TestPowerSourceReader{Value: 1250}
}

// TestPowerSourceReader is an in-memory source. ReadErrs scripts the
// outcome of consecutive reads: entry i is returned by read i, a nil
// entry (or running past the end) yields Value.
type TestPowerSourceReader struct {
	Value    float64
	ReadErrs []error
	Reads    int
}

func (reader *TestPowerSourceReader) Open() error {
	return nil
}

func (reader *TestPowerSourceReader) Close() error {
	return nil
}

func (reader *TestPowerSourceReader) ReadPowerWatt() (float64, error) {
	i := reader.Reads
	reader.Reads++
	if i < len(reader.ReadErrs) && reader.ReadErrs[i] != nil {
		return 0, reader.ReadErrs[i]
	}
	return reader.Value, nil
}
