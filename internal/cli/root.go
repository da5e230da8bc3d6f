package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "engview",
		Short: "Browse and index engine simulation results",
		Long: `engview reads the .det, .pou, .prt and .pvd files an engine simulation
tool writes, merges the two tabular exports of one project, and keeps a
per-project metadata cache under .metadata/.

Run "engview serve" for the HTTP API and live watcher, or use the other
commands for one-off inspection.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./config.yaml when present)")
	rootCmd.PersistentFlags().String("log-level", "", "Override log level: debug|info|warn|error")

	// Inspect Commands
	scanCmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "List projects in a data directory, refreshing stale narrative metadata",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunScan,
	}
	scanCmd.Flags().Bool("json", false, "Print machine-readable project listing")
	scanCmd.Flags().Bool("jsonl", false, "Print one JSON project per line")

	parseCmd := &cobra.Command{
		Use:   "parse <file|dir>",
		Short: "Parse an engine file, or every engine file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  RunParse,
	}
	parseCmd.Flags().Bool("json", false, "Print the full parsed record(s) as JSON")

	mergeCmd := &cobra.Command{
		Use:   "merge <pou> <det>",
		Short: "Merge a superset .pou export with its basic .det export",
		Args:  cobra.ExactArgs(2),
		RunE:  RunMerge,
	}
	mergeCmd.Flags().Bool("json", false, "Print the merged record as JSON")
	mergeCmd.Flags().StringP("out", "o", "", "Write the merged record to this JSON file")

	diagramsCmd := &cobra.Command{
		Use:   "diagrams [dir]",
		Short: "List pressure-volume diagram files",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunDiagrams,
	}
	diagramsCmd.Flags().Bool("json", false, "Print machine-readable diagram listing")

	// Metadata Commands
	metaCmd := &cobra.Command{
		Use:   "meta",
		Short: "Read and edit project metadata",
	}
	metaGetCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print the metadata document of a project",
		Args:  cobra.ExactArgs(1),
		RunE:  RunMetaGet,
	}
	metaSetCmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Update the manual metadata of a project",
		Args:  cobra.ExactArgs(1),
		RunE:  RunMetaSet,
	}
	metaSetCmd.Flags().String("display-name", "", "Display name shown instead of the file name")
	metaSetCmd.Flags().String("description", "", "Free-text description")
	metaSetCmd.Flags().String("client", "", "Client name")
	metaSetCmd.Flags().StringSlice("tags", nil, "Tags (comma-separated)")
	metaSetCmd.Flags().String("status", "", "Status: active|completed|archived|testing")
	metaSetCmd.Flags().String("notes", "", "Notes")
	metaSetCmd.Flags().String("color", "", "Card colour, e.g. #ff8800")
	metaDeleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete the metadata document of a project",
		Args:  cobra.ExactArgs(1),
		RunE:  RunMetaDelete,
	}
	metaListCmd := &cobra.Command{
		Use:   "list",
		Short: "List every metadata document",
		RunE:  RunMetaList,
	}
	metaListCmd.Flags().Bool("json", false, "Print machine-readable documents")
	metaCmd.AddCommand(metaGetCmd, metaSetCmd, metaDeleteCmd, metaListCmd)

	// Background Commands
	queueCmd := &cobra.Command{
		Use:   "queue [dir]",
		Short: "Extract metadata from every stale narrative file through the queue",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunQueue,
	}
	queueCmd.Flags().Bool("json", false, "Print machine-readable run summary")
	queueCmd.Flags().Int("concurrency", 0, "Parallel extractions (default from config)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the startup scan and the file watcher",
		RunE:  RunServe,
	}
	serveCmd.Flags().String("addr", "", "Listen address (default host:port from config)")
	serveCmd.Flags().Bool("no-watch", false, "Disable the file watcher")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE:  RunConfig,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "engview %s\n", version)
		},
	}

	rootCmd.AddCommand(
		scanCmd,
		parseCmd,
		mergeCmd,
		diagramsCmd,
		metaCmd,
		queueCmd,
		serveCmd,
		configCmd,
		versionCmd,
	)

	return rootCmd
}
