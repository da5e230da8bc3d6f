package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/morozRed/engview/internal/fileutil"
	"github.com/morozRed/engview/internal/ignore"
	"github.com/morozRed/engview/internal/merge"
)

func RunParse(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	asJSON, err := BoolFlag(cmd, "json")
	if err != nil {
		return err
	}
	info, err := os.Stat(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if info.IsDir() {
		return parseDirectory(cmd, a, args[0], asJSON)
	}

	record, err := a.registry.ParseFile(args[0])
	if err != nil {
		return err
	}
	if asJSON {
		return fileutil.PrintJSON(out, record)
	}
	PrintRecordSummary(out, record)
	return nil
}

func parseDirectory(cmd *cobra.Command, a *app, root string, asJSON bool) error {
	rules, err := ignore.Load(root)
	if err != nil {
		return err
	}
	start := time.Now()
	result, err := a.registry.ParseDirectory(root, rules)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return fileutil.PrintJSON(out, result)
	}
	for i := range result.Records {
		PrintRecordSummary(out, &result.Records[i])
	}
	ReportParseIssues(cmd.ErrOrStderr(), result.Issues)

	failed := make([]string, 0, len(result.Issues))
	for _, issue := range result.Issues {
		if issue.Severity == "error" {
			failed = append(failed, issue.File)
		}
	}
	return PrintRunSummary(out, RunSummary{
		Mode:        "parse",
		RootPath:    root,
		Scanned:     len(result.Records) + len(failed),
		Projects:    len(result.Records),
		Failed:      len(failed),
		DurationMS:  time.Since(start).Milliseconds(),
		FailedFiles: failed,
	}, false)
}

func RunMerge(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	asJSON, err := BoolFlag(cmd, "json")
	if err != nil {
		return err
	}
	outPath, err := OptionalStringFlag(cmd, "out")
	if err != nil {
		return err
	}

	superset, err := a.registry.ParseFile(args[0])
	if err != nil {
		return err
	}
	basic, err := a.registry.ParseFile(args[1])
	if err != nil {
		return err
	}

	merged, stats, err := merge.New(a.logger).Merge(superset, basic)
	if err != nil {
		return err
	}

	if outPath != "" {
		if err := writeOutput(outPath, merged); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return fileutil.PrintJSON(out, merged)
	}
	PrintRecordSummary(out, merged)
	fmt.Fprintf(out, "merge: calculations=%d unmatched=%d matched=%d superset_only=%d basic_only=%d\n",
		stats.Calculations, stats.UnmatchedCalcs, stats.MatchedPoints, stats.SupersetOnlyPoints, stats.BasicOnlyPoints)
	if stats.EngineTypeMismatch {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: engine types differ between the two files")
	}
	return nil
}
