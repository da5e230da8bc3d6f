package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/morozRed/engview/internal/parser"
	"github.com/morozRed/engview/internal/scanner"
)

// FailedEntries returns the file paths of listing entries that carry a
// parse error, sorted.
func FailedEntries(entries []scanner.ProjectEntry) []string {
	var failed []string
	for _, entry := range entries {
		if entry.Error != "" {
			failed = append(failed, entry.FilePath)
		}
	}
	sort.Strings(failed)
	return failed
}

func ReportEntryErrors(w io.Writer, entries []scanner.ProjectEntry) {
	for _, entry := range entries {
		if entry.Error == "" {
			continue
		}
		fmt.Fprintf(w, "[error] %s (%s): %s\n", entry.FilePath, entry.Format, entry.Error)
	}
}

func ReportParseIssues(w io.Writer, issues []parser.ParseIssue) {
	for _, issue := range issues {
		if issue.Format != "" {
			fmt.Fprintf(w, "[%s] %s (%s): %s\n", issue.Severity, issue.File, issue.Format, issue.Message)
			continue
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", issue.Severity, issue.File, issue.Message)
	}
}

func CountFormat(entries []scanner.ProjectEntry, format parser.Format) int {
	n := 0
	for _, entry := range entries {
		if entry.Format == format {
			n++
		}
	}
	return n
}

func PrintProjectTable(w io.Writer, entries []scanner.ProjectEntry) {
	for _, entry := range entries {
		engine := entry.EngineType
		if engine == "" {
			engine = "-"
		}
		fmt.Fprintf(w, "%-28s %-10s cyl=%-2d %-8s calcs=%-3d %s  %s\n",
			entry.ID,
			entry.Format,
			entry.NumCylinders,
			engine,
			entry.CalculationsCount,
			scanner.FormatFileSize(entry.FileSize),
			entry.ModifiedAt.Format("2006-01-02 15:04"),
		)
	}
}

func PrintRecordSummary(w io.Writer, record *parser.ProjectRecord) {
	fmt.Fprintf(w, "%s (%s)\n", record.FileName, record.Format)
	if record.Metadata.NumCylinders > 0 || record.Metadata.EngineType != "" {
		fmt.Fprintf(w, "engine: cylinders=%d type=%s\n", record.Metadata.NumCylinders, record.Metadata.EngineType)
	}

	switch {
	case record.Specs != nil:
		e := record.Specs.Engine
		fmt.Fprintf(w, "name: %s\n", e.Name)
		fmt.Fprintf(w, "configuration: %s %s bore=%.2f stroke=%.2f displacement=%.3fL\n",
			e.Configuration, e.Type, e.Bore, e.Stroke, e.Displacement)
		if record.Specs.Combustion != nil {
			fmt.Fprintf(w, "combustion curve: %d points\n", len(record.Specs.Combustion.Points))
		}
	case record.Diagram != nil:
		fmt.Fprintf(w, "rpm: %d samples: %d\n", record.Diagram.RPM, len(record.Diagram.Samples))
	default:
		fmt.Fprintf(w, "columns: %d calculations: %d points: %d\n",
			len(record.ColumnHeaders), len(record.Calculations), record.DataPointCount())
		for _, calc := range record.Calculations {
			fmt.Fprintf(w, "  %s: %d points\n", calc.Name, len(calc.DataPoints))
		}
	}
}
