package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/morozRed/engview/internal/fileutil"
	"github.com/morozRed/engview/internal/parser"
	"github.com/morozRed/engview/internal/scanner"
)

func RunScan(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	asJSON, err := BoolFlag(cmd, "json")
	if err != nil {
		return err
	}
	asJSONL, err := BoolFlag(cmd, "jsonl")
	if err != nil {
		return err
	}
	if asJSON && asJSONL {
		return fmt.Errorf("--json and --jsonl are mutually exclusive")
	}

	root, err := a.dataDir(args)
	if err != nil {
		return err
	}
	store, err := a.store()
	if err != nil {
		return err
	}

	start := time.Now()
	sc := a.scanner(root, store, nil)
	entries, err := sc.ScanProjects(cmdContext(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case asJSONL:
		return fileutil.WriteJSONL(out, entries)
	case asJSON:
		return fileutil.PrintJSON(out, entries)
	}

	PrintProjectTable(out, entries)
	ReportEntryErrors(cmd.ErrOrStderr(), entries)
	failed := FailedEntries(entries)
	return PrintRunSummary(out, RunSummary{
		Mode:        "scan",
		RootPath:    root,
		Scanned:     len(entries),
		Projects:    len(entries) - len(failed),
		Merged:      CountFormat(entries, parser.FormatMerged),
		Failed:      len(failed),
		DurationMS:  time.Since(start).Milliseconds(),
		FailedFiles: failed,
	}, false)
}

func RunDiagrams(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	asJSON, err := BoolFlag(cmd, "json")
	if err != nil {
		return err
	}
	root, err := a.dataDir(args)
	if err != nil {
		return err
	}
	store, err := a.store()
	if err != nil {
		return err
	}

	entries, err := a.scanner(root, store, nil).ScanDiagrams(cmdContext(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return fileutil.PrintJSON(out, entries)
	}
	for _, entry := range entries {
		if entry.Error != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "[error] %s: %s\n", entry.FilePath, entry.Error)
			continue
		}
		fmt.Fprintf(out, "%-28s rpm=%-6d cyl=%-2d samples=%-5d %s\n",
			entry.FileName, entry.RPM, entry.Cylinders, entry.Samples, scanner.FormatFileSize(entry.FileSize))
	}
	return nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeOutput(path string, value any) error {
	if err := fileutil.WriteJSON(path, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", path)
	return nil
}
