// Package export implements the result export core: header schema discovery
// across deliveries, per-execution row materialization and the orchestration
// that turns both into CSV artifacts.
package export

import (
	"fmt"
	"strings"
)

// ReportType classifies an export report.
type ReportType int

const (
	ReportSuccess ReportType = iota
	ReportInfo
	ReportError
)

func (t ReportType) String() string {
	switch t {
	case ReportSuccess:
		return "success"
	case ReportInfo:
		return "info"
	default:
		return "error"
	}
}

// Report is the structured outcome of an export run: a type, a human
// readable message, the machine readable row count and nested sub-reports.
type Report struct {
	Type     ReportType
	Message  string
	Rows     int
	Children []*Report
}

func NewSuccess(message string) *Report {
	return &Report{Type: ReportSuccess, Message: message}
}

func NewInfo(message string) *Report {
	return &Report{Type: ReportInfo, Message: message}
}

func NewError(format string, args ...interface{}) *Report {
	return &Report{Type: ReportError, Message: fmt.Sprintf(format, args...)}
}

// Add appends a child report.
func (r *Report) Add(child *Report) {
	if child != nil {
		r.Children = append(r.Children, child)
	}
}

// ContainsError reports whether the report or any descendant is an error.
func (r *Report) ContainsError() bool {
	if r.Type == ReportError {
		return true
	}
	for _, c := range r.Children {
		if c.ContainsError() {
			return true
		}
	}
	return false
}

// Render flattens the report tree into an indented human readable summary.
func (r *Report) Render() string {
	var b strings.Builder
	r.render(&b, 0)
	return strings.TrimRight(b.String(), "\n")
}

func (r *Report) render(b *strings.Builder, depth int) {
	fmt.Fprintf(b, "%s[%s] %s\n", strings.Repeat("  ", depth), r.Type, r.Message)
	for _, c := range r.Children {
		c.render(b, depth+1)
	}
}
