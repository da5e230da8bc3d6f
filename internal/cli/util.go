package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/morozRed/engview/internal/config"
	"github.com/morozRed/engview/internal/formats"
	"github.com/morozRed/engview/internal/logging"
	"github.com/morozRed/engview/internal/metadata"
	"github.com/morozRed/engview/internal/parser"
	"github.com/morozRed/engview/internal/queue"
	"github.com/morozRed/engview/internal/scanner"
)

// app bundles what every command needs: settings, a logger and the
// long-lived services built from them.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *parser.Registry
}

func loadApp(cmd *cobra.Command) (*app, error) {
	configPath, err := OptionalStringFlag(cmd, "config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level, err := OptionalStringFlag(cmd, "log-level")
	if err != nil {
		return nil, err
	}
	if level != "" {
		cfg.Log.Level = level
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, registry: formats.NewDefaultRegistry(logger)}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// dataDir picks the directory argument, falling back to files.path.
func (a *app) dataDir(args []string) (string, error) {
	dir := a.cfg.Files.Path
	if len(args) > 0 && args[0] != "" {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	return abs, nil
}

func (a *app) store() (*metadata.Store, error) {
	return metadata.NewStore(a.cfg.Metadata.Dir, a.logger)
}

func (a *app) scanner(root string, store *metadata.Store, q *queue.Queue) *scanner.Scanner {
	return scanner.New(scanner.Options{
		Root:        root,
		Extensions:  a.cfg.Files.Extensions,
		MaxFileSize: a.cfg.Files.MaxSize,
		Parallelism: a.cfg.Files.Parallelism,
	}, a.registry, store, q, a.logger)
}

func RunConfig(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	if a.cfg.File != "" {
		fmt.Fprintf(out, "# loaded from %s\n", a.cfg.File)
	}
	return a.cfg.WriteYAML(out)
}
