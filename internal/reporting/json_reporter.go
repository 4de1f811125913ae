package reporting

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/lancet/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONReporter writes the scan report as indented JSON. The output shape is
// the ScanReport wire schema, suitable for machine consumption.
type JSONReporter struct {
	writer io.WriteCloser
	report *schemas.ScanReport
}

// NewJSONReporter creates a reporter that takes ownership of the writer.
func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	return &JSONReporter{writer: writer}
}

// Write buffers the report; serialization happens on Close.
func (r *JSONReporter) Write(report *schemas.ScanReport) error {
	r.report = report
	return nil
}

// Close serializes the buffered report and closes the writer.
func (r *JSONReporter) Close() error {
	encodeErr := error(nil)
	if r.report != nil {
		enc := json.NewEncoder(r.writer)
		enc.SetIndent("", "  ")
		encodeErr = enc.Encode(r.report)
	}
	closeErr := r.writer.Close()

	if encodeErr != nil {
		return fmt.Errorf("failed to encode JSON output: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
