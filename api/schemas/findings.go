package schemas

import "time"

// -- Finding Schemas --

// Severity represents the severity level of a security finding. The values are
// uppercase to align with the wire format consumed by downstream tool handlers.
type Severity string

// Constants defining the standard severity levels for findings.
const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Location pinpoints a finding within a source unit.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Vulnerability encapsulates all the details of a single taint flow from an
// untrusted source to a dangerous sink. It is immutable: created once by the
// analyzer and never modified afterwards.
type Vulnerability struct {
	ID string `json:"id"` // Unique identifier for the finding.

	// VulnerabilityType is a descriptive name for the class of vulnerability
	// (e.g., "SQL Injection", "Server-Side Request Forgery").
	VulnerabilityType string `json:"vulnerability_type"`

	// SinkType is the registry category of the sink that was reached
	// (e.g., "SQL_QUERY", "SSRF").
	SinkType string `json:"sink_type"`

	Severity Severity `json:"severity"`
	Location Location `json:"location"`

	// TaintedVariable is the identifier that carried the taint into the sink.
	TaintedVariable string `json:"tainted_variable"`

	// Source is the taint origin category (e.g., "USER_INPUT", "NETWORK").
	Source string `json:"source"`

	// PropagationPath lists the identifiers and calls the taint flowed
	// through, in first-seen order, deduplicated.
	PropagationPath []string `json:"propagation_path"`

	// SanitizersBypassed lists sanitizers that were applied to the value but
	// did not clear the sink category that was ultimately reached.
	SanitizersBypassed []string `json:"sanitizers_bypassed,omitempty"`
}

// AnalysisResult is the per-unit return value of the security analyzer. It is
// JSON-serializable and never persisted by the engine itself.
type AnalysisResult struct {
	HasVulnerabilities bool            `json:"has_vulnerabilities"`
	Error              *string         `json:"error"`
	Vulnerabilities    []Vulnerability `json:"vulnerabilities"`
}

// Failed reports whether the unit could not be analyzed at all.
func (r *AnalysisResult) Failed() bool {
	return r.Error != nil
}

// FileResult pairs an analysis result with the unit it was produced from.
type FileResult struct {
	Path     string         `json:"path"`
	Language string         `json:"language"`
	Result   AnalysisResult `json:"result"`
}

// ScanReport aggregates the per-file results of one batch scan.
type ScanReport struct {
	ScanID     string       `json:"scan_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Files      []FileResult `json:"files"`

	// TotalVulnerabilities is derived at aggregation time.
	TotalVulnerabilities int `json:"total_vulnerabilities"`
	// FailedFiles counts units whose result carried a build error.
	FailedFiles int `json:"failed_files"`
}

// Totals recomputes the derived counters from the per-file results.
func (s *ScanReport) Totals() {
	s.TotalVulnerabilities = 0
	s.FailedFiles = 0
	for _, f := range s.Files {
		s.TotalVulnerabilities += len(f.Result.Vulnerabilities)
		if f.Result.Failed() {
			s.FailedFiles++
		}
	}
}
