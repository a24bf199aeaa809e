package cli

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"clio/internal/clipboard"
	"clio/internal/rules"
	"clio/internal/watch"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the clipboard watch daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			provider, err := clipboard.NewSystemProvider()
			if err != nil {
				return err
			}

			log := slog.Default()
			ruleSet := rules.CompileAll(cfg.Rules, cfg.CommandTimeout.Std(), log)
			if len(ruleSet) > 0 {
				log.Info("loaded action rules", "count", len(ruleSet))
			}

			w := watch.New(st, provider, clipboard.NewSourceDetector(), ruleSet, watch.Options{
				Interval:      cfg.WatchInterval(),
				PruneInterval: cfg.EffectivePruneInterval(),
				SyncMode:      cfg.SyncMode,
				MaxEntrySize:  cfg.MaxEntrySize(),
				Capacity:      cfg.MaxHistory,
				MaxAge:        cfg.MaxAge.Std(),
			}, log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return w.Run(ctx)
		},
	}
}
