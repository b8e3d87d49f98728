package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pos/internal/catalog"
	"github.com/roach88/pos/internal/clock"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	SeedPath string
	NoSeed   bool
}

// InitResult is the JSON payload of init.
type InitResult struct {
	Database string `json:"database"`
	Seeded   bool   `json:"seeded"`
	Items    int    `json:"items"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the schema and load the menu seed",
		Long: `Create the database schema (idempotent) and, if the menu is empty,
load a catalog seed with opening stock.

Without --seed the built-in sample menu is used.

Examples:
  pos init --db ./pos.db
  pos init --db ./pos.db --seed ./menu.yaml
  pos init --driver postgres --db postgres://pos@localhost/pos --no-seed`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SeedPath, "seed", "", "path to a YAML catalog seed")
	cmd.Flags().BoolVar(&opts.NoSeed, "no-seed", false, "only create the schema")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	e, err := opts.setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	ctx := cmdContext(cmd)

	res := InitResult{Database: e.cfg.Database.DSN}
	if !opts.NoSeed {
		seed, err := catalog.DefaultSeed()
		if opts.SeedPath != "" {
			seed, err = catalog.LoadSeed(opts.SeedPath)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load seed", err)
		}
		e.out.VerboseLog("applying seed with %d items", len(seed.Items))
		res.Seeded, err = catalog.Apply(ctx, e.store, seed, clock.System{})
		if err != nil {
			return e.out.Fail("failed to apply seed", err)
		}
	}

	res.Items, err = catalog.Count(ctx, e.store)
	if err != nil {
		return e.out.Fail("failed to count menu items", err)
	}
	e.logger.Info("database initialized", "dsn", res.Database, "seeded", res.Seeded, "items", res.Items)

	text := fmt.Sprintf("Initialized %s (%d menu items)\n", res.Database, res.Items)
	if !res.Seeded && !opts.NoSeed {
		text = fmt.Sprintf("Initialized %s (menu already has %d items, seed skipped)\n", res.Database, res.Items)
	}
	return e.out.Success(res, text)
}
