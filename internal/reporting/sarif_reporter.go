package reporting

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/observability"
	"github.com/xkilldash9x/lancet/internal/reporting/sarif"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "Lancet"
	ToolInfoURI  = "https://github.com/xkilldash9x/lancet"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

// ruleIDSanitizer replaces characters not allowed in SARIF rule IDs. Alphanumeric,
// underscore and dot pass through; everything else collapses to a single hyphen.
var ruleIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.]+`)

// SARIFReporter implements the Reporter interface for the SARIF 2.1.0 format.
// It is thread safe.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	// mu protects the log structure and the rule map.
	mu sync.Mutex
	// ruleIDs maps a vulnerability type to its registered rule ID.
	ruleIDs map[string]string
}

// NewSARIFReporter creates a new reporter that writes SARIF output.
// The tool version is passed in so the reporting package does not depend on cmd.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string) *SARIFReporter {
	logger := observability.GetLogger().Named("sarif_reporter")
	log := &sarif.Log{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(toolVersion),
						InformationURI: pString(ToolInfoURI),
						// Empty slices rather than nil for proper JSON marshalling.
						Rules: []*sarif.ReportingDescriptor{},
					},
				},
				Results: []*sarif.Result{},
			},
		},
	}

	return &SARIFReporter{
		writer:  writer,
		logger:  logger,
		log:     log,
		ruleIDs: make(map[string]string),
	}
}

// Write converts a ScanReport into SARIF results and adds them to the log.
func (r *SARIFReporter) Write(report *schemas.ScanReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	resultCount := 0

	for _, file := range report.Files {
		for _, vuln := range file.Result.Vulnerabilities {
			ruleID := r.ensureRule(vuln)

			messageText := fmt.Sprintf("%s: tainted value from %s reaches %s sink via %q",
				vuln.VulnerabilityType, vuln.Source, vuln.SinkType, vuln.TaintedVariable)

			sarifResult := &sarif.Result{
				RuleID:    ruleID,
				Message:   &sarif.Message{Text: pString(messageText)},
				Level:     mapSeverityToSARIFLevel(vuln.Severity),
				Locations: createLocations(file.Path, vuln),
			}
			run.Results = append(run.Results, sarifResult)
			resultCount++
		}
	}

	r.logger.Debug("buffered findings into SARIF log",
		zap.Int("results", resultCount),
		zap.Int("files", len(report.Files)),
	)
	return nil
}

// Close finalizes the SARIF log and writes it to the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var resultsCount, rulesCount int
	if len(r.log.Runs) > 0 && r.log.Runs[0] != nil {
		resultsCount = len(r.log.Runs[0].Results)
		if r.log.Runs[0].Tool != nil && r.log.Runs[0].Tool.Driver != nil {
			rulesCount = len(r.log.Runs[0].Tool.Driver.Rules)
		}
	}
	r.logger.Info("finalizing SARIF report",
		zap.Int("total_results", resultsCount),
		zap.Int("total_rules", rulesCount),
	)

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")

	encodeErr := encoder.Encode(r.log)
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("failed to encode SARIF log", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// ensureRule registers a rule for the vulnerability type if one does not exist
// yet and returns its ID. Must be called while holding the mutex.
func (r *SARIFReporter) ensureRule(vuln schemas.Vulnerability) string {
	if ruleID, ok := r.ruleIDs[vuln.VulnerabilityType]; ok {
		return ruleID
	}

	ruleID := "LANCET-" + sanitizeRuleName(vuln.VulnerabilityType)
	r.logger.Debug("registering SARIF rule", zap.String("rule_id", ruleID))

	shortDesc := strings.ReplaceAll(vuln.VulnerabilityType, "_", " ")
	fullDesc := fmt.Sprintf("Untrusted data reaches a %s sink without sanitization.", vuln.SinkType)

	driver := r.log.Runs[0].Tool.Driver
	driver.Rules = append(driver.Rules, &sarif.ReportingDescriptor{
		ID:               ruleID,
		Name:             pString(vuln.VulnerabilityType),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(shortDesc)},
		FullDescription:  &sarif.MultiformatMessageString{Text: pString(fullDesc)},
		Properties: &sarif.PropertyBag{
			"tags":      []string{"security", "taint-analysis"},
			"sink_type": vuln.SinkType,
		},
	})
	r.ruleIDs[vuln.VulnerabilityType] = ruleID
	return ruleID
}

// sanitizeRuleName creates a standardized base name for the rule ID.
func sanitizeRuleName(name string) string {
	if name == "" {
		return "UNNAMED-VULNERABILITY"
	}
	sanitized := strings.ToUpper(name)
	sanitized = ruleIDSanitizer.ReplaceAllString(sanitized, "-")
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		return "UNKNOWN-VULNERABILITY"
	}
	return sanitized
}

// createLocations converts finding details into SARIF location objects.
func createLocations(path string, vuln schemas.Vulnerability) []*sarif.Location {
	msgText := fmt.Sprintf("tainted variable %q", vuln.TaintedVariable)

	return []*sarif.Location{
		{
			PhysicalLocation: &sarif.PhysicalLocation{
				ArtifactLocation: &sarif.ArtifactLocation{
					URI: pString(path),
				},
				Region: &sarif.Region{
					StartLine:   vuln.Location.Line,
					StartColumn: vuln.Location.Column,
				},
			},
			Message: &sarif.Message{Text: pString(msgText)},
		},
	}
}

// mapSeverityToSARIFLevel converts lancet severities to the SARIF standard.
func mapSeverityToSARIFLevel(severity schemas.Severity) sarif.Level {
	switch severity {
	case schemas.SeverityCritical, schemas.SeverityHigh:
		return sarif.LevelError
	case schemas.SeverityMedium:
		return sarif.LevelWarning
	case schemas.SeverityLow:
		return sarif.LevelNote
	default:
		return sarif.LevelNote
	}
}

// pString returns a pointer to the given string value. Helper for optional SARIF fields.
func pString(s string) *string {
	return &s
}
