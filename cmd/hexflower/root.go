package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talgya/hexflower/internal/config"
	"github.com/talgya/hexflower/internal/engine"
	"github.com/talgya/hexflower/internal/entropy"
	"github.com/talgya/hexflower/internal/persistence"
)

// app holds the state shared by every subcommand.
type app struct {
	cfg     config.Config
	dbPath  string
	verbose bool

	db  *persistence.DB
	eng *engine.Engine
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:          "hexflower",
		Short:        "Navigate Hex Flowers with two six-sided dice",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	cmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (default $HEXFLOWER_DB_PATH)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newServeCmd(a),
		newCreateCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newNavigateCmd(a),
		newPreviewCmd(a),
		newSetCmd(a),
		newResetCmd(a),
		newDeleteCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newBoundaryCmd(a),
		newLogCmd(a),
		newKeyCmd(),
	)
	return cmd
}

// open loads configuration, opens the store and restores the engine.
func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.SlogLevel()
	if a.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if a.dbPath == "" {
		a.dbPath = cfg.DBPath
	}
	if dir := filepath.Dir(a.dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(a.dbPath)
	if err != nil {
		return err
	}
	a.db = db
	slog.Debug("database opened", "path", a.dbPath)

	eng, err := engine.New(engine.Options{
		MinRadius:     cfg.MinRadius,
		MaxRadius:     cfg.MaxRadius,
		DefaultRadius: cfg.DefaultRadius,
		Boundary:      a.boundary(ctx),
		Roller:        newRoller(cfg),
		Store:         db,
		Observers:     []engine.Observer{db},
	})
	if err != nil {
		return err
	}
	if err := eng.Load(ctx); err != nil {
		return err
	}
	a.eng = eng
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// boundary prefers a policy saved by the boundary command or the API
// over HEXFLOWER_WRAP.
func (a *app) boundary(ctx context.Context) engine.Policy {
	stored, err := a.db.GetMeta(ctx, persistence.MetaBoundary)
	switch {
	case err == nil && engine.Policy(stored).Valid():
		return engine.Policy(stored)
	case err != nil && !errors.Is(err, persistence.ErrNoMeta):
		slog.Warn("failed to read stored boundary policy", "error", err)
	}
	if a.cfg.Wrap {
		return engine.Wrapping
	}
	return engine.Bounded
}

// newRoller picks random.org when a key is configured, a seeded source
// when a seed is set, and crypto/rand otherwise.
func newRoller(cfg config.Config) engine.Roller {
	if client := entropy.NewClient(cfg.RandomOrgKey); client != nil {
		slog.Debug("rolling with random.org")
		return client
	}
	if cfg.RollSeed != 0 {
		slog.Debug("rolling with seeded source", "seed", cfg.RollSeed)
		return entropy.NewSeeded(cfg.RollSeed)
	}
	return entropy.Crypto{}
}

// resolveID accepts a full flower id or a unique prefix of one.
func (a *app) resolveID(arg string) (string, error) {
	if _, ok := a.eng.Get(arg); ok {
		return arg, nil
	}
	var matches []string
	for _, s := range a.eng.List() {
		if strings.HasPrefix(s.ID, arg) {
			matches = append(matches, s.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no flower matches %q", arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q is ambiguous (%d flowers)", arg, len(matches))
	}
}
