package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/noah-isme/leadflow-api/internal/service"
	"github.com/noah-isme/leadflow-api/pkg/config"
)

type seedOptions struct {
	count   int
	ifEmpty bool
	seed    int64
}

func newSeedCmd() *cobra.Command {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate sample leads",
		Long:  "Append randomly generated sample leads to the configured store, spread over the last 30 days and assigned across the admin counselors.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("count") {
				opts.count = cfg.Seed.Count
			}
			return runSeed(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	cmd.Flags().IntVar(&opts.count, "count", 30, "number of leads to generate (default: SEED_COUNT)")
	cmd.Flags().BoolVar(&opts.ifEmpty, "if-empty", false, "only seed when the store holds no leads")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "random seed for reproducible data (0 picks one)")

	return cmd
}

func runSeed(ctx context.Context, out io.Writer, cfg *config.Config, opts seedOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.count <= 0 {
		return fmt.Errorf("count must be positive")
	}

	logr, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	a, err := bootstrap(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer a.close()

	gen := service.NewSampleGenerator(opts.seed, a.auth.Counselors(), nil)
	n, err := service.SeedLeads(ctx, a.store, gen, opts.count, opts.ifEmpty, logr)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d leads (%d total) into %s store\n", n, a.store.Len(), cfg.Persistence.Driver)
	return nil
}
