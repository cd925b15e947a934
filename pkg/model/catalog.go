package model

import (
	"sort"
	"strings"
)

// Severity of a stored diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Dependency is one edge of the dependency graph gathered for an export:
// Export needs Target before it can be serialized.
type Dependency struct {
	SessionID     string `json:"session_id" db:"session_id"`
	Package       string `json:"package" db:"package"`
	Export        string `json:"export" db:"export"`
	Target        string `json:"target" db:"target"`
	TargetPackage string `json:"target_package" db:"target_package"`
}

// CrossPackage reports whether the edge leaves the exporting package.
func (d Dependency) CrossPackage() bool {
	return !strings.EqualFold(d.Package, d.TargetPackage)
}

// Diagnostic is a problem recorded while loading a package.
type Diagnostic struct {
	SessionID string   `json:"session_id" db:"session_id"`
	Package   string   `json:"package" db:"package"`
	Severity  Severity `json:"severity" db:"severity"`
	Code      string   `json:"code,omitempty" db:"code"`
	Kind      string   `json:"kind,omitempty" db:"kind"`
	Object    string   `json:"object,omitempty" db:"object"`
	Message   string   `json:"message" db:"message"`
}

// DiagnosticSummary counts diagnostics by severity and code.
type DiagnosticSummary struct {
	Errors   int            `json:"errors"`
	Warnings int            `json:"warnings"`
	ByCode   map[string]int `json:"by_code"`
}

// Summarize counts diags.
func Summarize(diags []Diagnostic) DiagnosticSummary {
	s := DiagnosticSummary{ByCode: make(map[string]int)}
	for _, d := range diags {
		if d.Severity == SeverityError {
			s.Errors++
		} else {
			s.Warnings++
		}
		if d.Code != "" {
			s.ByCode[d.Code]++
		}
	}
	return s
}

// Codes returns the codes present in the summary, most frequent first.
func (s DiagnosticSummary) Codes() []string {
	codes := make([]string, 0, len(s.ByCode))
	for c := range s.ByCode {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool {
		if s.ByCode[codes[i]] != s.ByCode[codes[j]] {
			return s.ByCode[codes[i]] > s.ByCode[codes[j]]
		}
		return codes[i] < codes[j]
	})
	return codes
}

// GroupByTarget groups dependency edges by target package.
func GroupByTarget(deps []Dependency) map[string][]Dependency {
	out := make(map[string][]Dependency)
	for _, d := range deps {
		out[d.TargetPackage] = append(out[d.TargetPackage], d)
	}
	return out
}
