// Package main is pipectl, a command line tool that edits and inspects a
// stored pipeline through the graph engine.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pipeweave/core/internal/config"
	"github.com/pipeweave/core/internal/graph"
	"github.com/pipeweave/core/internal/logging"
	"github.com/pipeweave/core/internal/snapshot"
)

type app struct {
	configPath  string
	storeDriver string
	storePath   string
	verbose     bool

	cfg    *config.Config
	logger *zap.Logger
	store  snapshot.Store
	reg    *graph.Registry
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:           "pipectl",
		Short:         "Inspect and edit a stored pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file")
	flags.StringVar(&a.storeDriver, "driver", "", "snapshot store driver (file or sqlite)")
	flags.StringVarP(&a.storePath, "store", "s", "", "snapshot store path")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		a.summaryCmd(),
		a.auditCmd(),
		a.addCmd(),
		a.renameCmd(),
		a.removeCmd(),
		a.setKindCmd(),
		a.submitCmd(),
	)
	return root, a
}

// run executes root and releases the store and logger whether or not the
// command failed.
func (a *app) run(root *cobra.Command) error {
	defer a.close()
	return root.Execute()
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("driver") {
		cfg.Store.Driver = a.storeDriver
	}
	if cmd.Flags().Changed("store") {
		cfg.Store.Path = a.storePath
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	a.cfg = cfg

	if a.logger, err = logging.New(cfg.Log.Level); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.reg = graph.DefaultRegistry()
	if cfg.Registry.Path != "" {
		if a.reg, err = graph.LoadRegistryFile(cfg.Registry.Path); err != nil {
			return err
		}
	}

	a.store, err = snapshot.Open(cfg.Store.Driver, cfg.Store.Path)
	return err
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
		a.store = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
		a.logger = nil
	}
}

// manager loads the stored pipeline. A store without a pipeline yields an
// empty one.
func (a *app) manager(ctx context.Context) (*graph.Manager, error) {
	m := graph.NewManager(a.reg, graph.WithLogger(a.logger))

	g, err := a.store.Load(ctx)
	if errors.Is(err, snapshot.ErrNotFound) {
		return m, nil
	}
	if err != nil {
		return nil, err
	}

	m.Load(g)
	return m, nil
}

func (a *app) save(ctx context.Context, m *graph.Manager) error {
	if err := a.store.Save(ctx, m.Snapshot()); err != nil {
		return err
	}
	a.logger.Debug("pipeline saved", zap.String("driver", a.cfg.Store.Driver), zap.String("path", a.cfg.Store.Path))
	return nil
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func main() {
	root, a := newRootCmd()
	if err := a.run(root); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
