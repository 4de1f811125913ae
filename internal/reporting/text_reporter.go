package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/xkilldash9x/lancet/api/schemas"
)

// TextReporter writes a human readable summary of the scan, one line per
// finding plus a trailing totals block. Intended for terminal use.
type TextReporter struct {
	writer io.WriteCloser
}

// NewTextReporter creates a reporter that takes ownership of the writer.
func NewTextReporter(writer io.WriteCloser) *TextReporter {
	return &TextReporter{writer: writer}
}

// Write renders the report immediately.
func (r *TextReporter) Write(report *schemas.ScanReport) error {
	var b strings.Builder

	for _, file := range report.Files {
		if file.Result.Failed() {
			fmt.Fprintf(&b, "%s: analysis failed: %s\n", file.Path, *file.Result.Error)
			continue
		}
		for _, vuln := range file.Result.Vulnerabilities {
			fmt.Fprintf(&b, "%s:%d:%d: [%s] %s: %q tainted by %s reaches %s sink\n",
				file.Path, vuln.Location.Line, vuln.Location.Column,
				vuln.Severity, vuln.VulnerabilityType,
				vuln.TaintedVariable, vuln.Source, vuln.SinkType)
			if len(vuln.PropagationPath) > 0 {
				fmt.Fprintf(&b, "    path: %s\n", strings.Join(vuln.PropagationPath, " -> "))
			}
			if len(vuln.SanitizersBypassed) > 0 {
				fmt.Fprintf(&b, "    sanitizers bypassed: %s\n", strings.Join(vuln.SanitizersBypassed, ", "))
			}
		}
	}

	fmt.Fprintf(&b, "\nscan %s: %d files, %d findings, %d failed\n",
		report.ScanID, len(report.Files), report.TotalVulnerabilities, report.FailedFiles)

	if _, err := io.WriteString(r.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}
	return nil
}

// Close releases the underlying writer.
func (r *TextReporter) Close() error {
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}
