// Package core holds the shared taint taxonomy and the pure value algebra
// used by the graph builder, the tracker and the analyzer. Everything in this
// package is side-effect free and safe to share across concurrent analyses.
package core

import "github.com/xkilldash9x/lancet/api/schemas"

// TaintSource categorizes the origin of untrusted data.
type TaintSource string

// Known taint origins.
const (
	SourceUserInput   TaintSource = "USER_INPUT"
	SourceNetwork     TaintSource = "NETWORK"
	SourceFile        TaintSource = "FILE"
	SourceEnvironment TaintSource = "ENVIRONMENT"
	SourceDatabase    TaintSource = "DATABASE"
	SourceArgv        TaintSource = "ARGV"
	// SourceUnknown is used when taint is propagated without a clear origin.
	SourceUnknown TaintSource = "UNKNOWN"
)

// TaintLevel is the totally ordered confidence/strength lattice for taint.
type TaintLevel int

const (
	LevelNone TaintLevel = iota
	LevelLow
	LevelMedium
	LevelHigh
)

func (l TaintLevel) String() string {
	switch l {
	case LevelNone:
		return "NONE"
	case LevelLow:
		return "LOW"
	case LevelMedium:
		return "MEDIUM"
	case LevelHigh:
		return "HIGH"
	default:
		return "NONE"
	}
}

// SinkType categorizes the impact of a security sink. The taxonomy is open:
// registry overlay files may introduce new categories without code changes.
type SinkType string

const (
	SinkSQLQuery        SinkType = "SQL_QUERY"
	SinkShellCommand    SinkType = "SHELL_COMMAND"
	SinkCodeEval        SinkType = "CODE_EVAL"
	SinkXXE             SinkType = "XXE"
	SinkSSTI            SinkType = "SSTI"
	SinkSSRF            SinkType = "SSRF"
	SinkWeakCrypto      SinkType = "WEAK_CRYPTO"
	SinkPathTraversal   SinkType = "PATH_TRAVERSAL"
	SinkDeserialization SinkType = "DESERIALIZATION"
	SinkLDAPQuery       SinkType = "LDAP_QUERY"
	SinkNoSQLQuery      SinkType = "NOSQL_QUERY"
	SinkHeaderInjection SinkType = "HEADER_INJECTION"
	SinkLogInjection    SinkType = "LOG_INJECTION"
	SinkOpenRedirect    SinkType = "OPEN_REDIRECT"
	SinkHTMLInjection   SinkType = "HTML_INJECTION"
)

// dangerThresholds is per-sink policy data: the minimum taint level required
// before a flow into the sink is flagged. Categories not listed use
// defaultDangerThreshold.
var dangerThresholds = map[SinkType]TaintLevel{
	SinkWeakCrypto:   LevelLow,
	SinkLogInjection: LevelLow,
}

const defaultDangerThreshold = LevelMedium

// DangerThreshold returns the minimum taint level at which the given sink
// category is flagged.
func DangerThreshold(sink SinkType) TaintLevel {
	if lvl, ok := dangerThresholds[sink]; ok {
		return lvl
	}
	return defaultDangerThreshold
}

// severityBySink maps sink categories to reported severity. Unlisted
// categories report MEDIUM.
var severityBySink = map[SinkType]schemas.Severity{
	SinkShellCommand:    schemas.SeverityCritical,
	SinkCodeEval:        schemas.SeverityCritical,
	SinkDeserialization: schemas.SeverityCritical,
	SinkSQLQuery:        schemas.SeverityHigh,
	SinkSSRF:            schemas.SeverityHigh,
	SinkXXE:             schemas.SeverityHigh,
	SinkSSTI:            schemas.SeverityHigh,
	SinkPathTraversal:   schemas.SeverityHigh,
	SinkNoSQLQuery:      schemas.SeverityHigh,
	SinkLDAPQuery:       schemas.SeverityHigh,
	SinkHTMLInjection:   schemas.SeverityHigh,
	SinkWeakCrypto:      schemas.SeverityLow,
	SinkLogInjection:    schemas.SeverityLow,
}

// SeverityFor maps a sink category to the severity reported for findings.
func SeverityFor(sink SinkType) schemas.Severity {
	if sev, ok := severityBySink[sink]; ok {
		return sev
	}
	return schemas.SeverityMedium
}

// vulnerabilityNames gives the human-readable class name per sink category.
var vulnerabilityNames = map[SinkType]string{
	SinkSQLQuery:        "SQL Injection",
	SinkShellCommand:    "Command Injection",
	SinkCodeEval:        "Code Injection",
	SinkXXE:             "XML External Entity Injection",
	SinkSSTI:            "Server-Side Template Injection",
	SinkSSRF:            "Server-Side Request Forgery",
	SinkWeakCrypto:      "Weak Cryptographic Algorithm",
	SinkPathTraversal:   "Path Traversal",
	SinkDeserialization: "Unsafe Deserialization",
	SinkLDAPQuery:       "LDAP Injection",
	SinkNoSQLQuery:      "NoSQL Injection",
	SinkHeaderInjection: "HTTP Header Injection",
	SinkLogInjection:    "Log Injection",
	SinkOpenRedirect:    "Open Redirect",
	SinkHTMLInjection:   "HTML Injection",
}

// VulnerabilityName returns the descriptive class name for a sink category.
func VulnerabilityName(sink SinkType) string {
	if name, ok := vulnerabilityNames[sink]; ok {
		return name
	}
	return string(sink)
}
