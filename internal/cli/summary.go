package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/morozRed/engview/internal/fileutil"
)

type RunSummary struct {
	Mode        string   `json:"mode"`
	RootPath    string   `json:"root_path"`
	Scanned     int      `json:"scanned"`
	Projects    int      `json:"projects,omitempty"`
	Merged      int      `json:"merged,omitempty"`
	Stale       int      `json:"stale,omitempty"`
	Extracted   int      `json:"extracted,omitempty"`
	Failed      int      `json:"failed"`
	DurationMS  int64    `json:"duration_ms"`
	FailedFiles []string `json:"failed_files,omitempty"`
}

func PrintRunSummary(w io.Writer, summary RunSummary, asJSON bool) error {
	if asJSON {
		return fileutil.PrintJSON(w, summary)
	}

	switch summary.Mode {
	case "queue":
		fmt.Fprintf(w,
			"queue: scanned=%d stale=%d extracted=%d failed=%d duration=%dms\n",
			summary.Scanned,
			summary.Stale,
			summary.Extracted,
			summary.Failed,
			summary.DurationMS,
		)
	default:
		fmt.Fprintf(w,
			"%s: scanned=%d projects=%d merged=%d failed=%d duration=%dms\n",
			summary.Mode,
			summary.Scanned,
			summary.Projects,
			summary.Merged,
			summary.Failed,
			summary.DurationMS,
		)
	}

	if len(summary.FailedFiles) > 0 {
		fmt.Fprintf(w, "failed files (%d): %s\n", len(summary.FailedFiles), SummarizePaths(summary.FailedFiles, 8))
	}
	return nil
}

func SummarizePaths(paths []string, max int) string {
	if len(paths) <= max {
		return strings.Join(paths, ", ")
	}
	return fmt.Sprintf("%s ... (+%d more)", strings.Join(paths[:max], ", "), len(paths)-max)
}
