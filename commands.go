package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"sjsage522/dealalert/config"
	"sjsage522/dealalert/helpers"
	"sjsage522/dealalert/internal/deal"
	"sjsage522/dealalert/internal/history"
	"sjsage522/dealalert/internal/registry"
	"sjsage522/dealalert/internal/store"
	"sjsage522/dealalert/logger"
	perrors "sjsage522/dealalert/pkg/errors"
	"sjsage522/dealalert/services/worker"
)

// dealsPerPage is the page size of the mydeals listing
const dealsPerPage = 5

var (
	cfg    config.Config
	dryRun bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "dealalert",
		Short:        "Marketplace deal ingestion and notification fan-out",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.LoadConfig()
			if err := cfg.Validate(); err != nil {
				return perrors.NewConfiguration("invalid configuration", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "log messages instead of sending them")

	keywordCmd := &cobra.Command{
		Use:   "keyword",
		Short: "Manage keyword subscriptions",
	}
	keywordCmd.AddCommand(keywordAddCmd(), keywordRemoveCmd(), keywordListCmd())

	rootCmd.AddCommand(
		runCmd(),
		daemonCmd(),
		trackCmd(),
		untrackCmd(),
		setDiscountCmd(),
		keywordCmd,
		myDealsCmd(),
		historyCmd(),
	)
	return rootCmd
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := initializeServices(ctx, &cfg, dryRun)
			if err != nil {
				return err
			}
			defer services.Cleanup()

			result, err := buildOrchestrator(&cfg, services).Run(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: %d candidates, %d accepted, %d rejected\n",
				result.RunID, result.Candidates, result.Accepted, len(result.Rejected))
			fmt.Fprintf(out, "new %d, improved %d, unchanged %d\n", result.New, result.Improved, result.Unchanged)
			fmt.Fprintf(out, "broadcasts %d, notifications %d, failures %d\n",
				result.Broadcasts, result.Notifications, len(result.Failures))
			for _, f := range result.Failures {
				fmt.Fprintf(out, "  %v\n", f)
			}
			return nil
		},
	}
}

func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the pipeline on POST_INTERVAL_SECONDS until interrupted",
		Long: `Runs the pipeline immediately and then on every interval.
Handles SIGINT/SIGTERM for graceful shutdown: deals the current run already
recorded are still delivered, the rest are picked up by the next start.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.Default

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// Set up signal handling
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			services, err := initializeServices(ctx, &cfg, dryRun)
			if err != nil {
				return err
			}
			defer services.Cleanup()

			log.Info().
				Str("environment", cfg.Environment).
				Dur("interval", cfg.PostInterval).
				Msg("Starting deal worker")

			w := worker.NewWorker(buildOrchestrator(&cfg, services), services.Publisher, cfg.PostInterval)
			workerDone := make(chan struct{})
			go func() {
				w.Start(ctx)
				close(workerDone)
			}()

			// Wait for shutdown signal
			select {
			case sig := <-sigChan:
				log.Info().
					Str("signal", sig.String()).
					Msg("Received shutdown signal")
				cancel()
				<-workerDone
			case <-workerDone:
			}

			log.Info().Msg("Shutting down gracefully...")
			return nil
		},
	}
}

// withStore opens the store for a user command and closes it afterwards
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store) error) error {
	ctx := cmd.Context()
	st, err := openStore(ctx, &cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st)
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID %q: %w", raw, err)
	}
	return id, nil
}

// parseItemID accepts a bare item key or a product link containing /dp/<key>
func parseItemID(raw string) (string, error) {
	itemID := strings.TrimSpace(raw)
	if strings.Contains(itemID, "/dp/") {
		id, err := helpers.ItemIDFromPath(itemID, "/dp/")
		if err != nil {
			return "", fmt.Errorf("invalid product link %q: %w", raw, err)
		}
		itemID = id
	}
	itemID = strings.ToUpper(itemID)
	if !deal.ASINPattern.MatchString(itemID) {
		return "", fmt.Errorf("invalid item ID %q", raw)
	}
	return itemID, nil
}

func trackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track <user-id> <item-id|link>",
		Short: "Track an item for a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			itemID, err := parseItemID(args[1])
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				added, err := st.Track(ctx, userID, itemID)
				if err != nil {
					return err
				}
				if added {
					fmt.Fprintf(cmd.OutOrStdout(), "✅ Deal tracked: %s\n", itemID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "✅ Already tracking: %s\n", itemID)
				}
				return nil
			})
		},
	}
}

func untrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "untrack <user-id> <item-id|link>",
		Short: "Stop tracking an item for a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			itemID, err := parseItemID(args[1])
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				removed, err := st.Untrack(ctx, userID, itemID)
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintf(cmd.OutOrStdout(), "❌ Deal with ASIN %s has been untracked.\n", itemID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Not tracking %s.\n", itemID)
				}
				return nil
			})
		},
	}
}

func setDiscountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setdiscount <user-id> [percent]",
		Short: "Show or set a user's minimum discount (1-99) for tracked items",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					current, err := registry.New(st, nil, cfg.DefaultMinDiscount).MinDiscountOf(ctx, userID)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Your current alert is set for deals with %d%% or more discount.\n", current)
					return nil
				}

				percent, err := strconv.Atoi(strings.TrimSuffix(args[1], "%"))
				if err != nil {
					return fmt.Errorf("invalid percent %q: %w", args[1], err)
				}
				if err := st.SetMinDiscount(ctx, userID, percent); err != nil {
					return err
				}
				fmt.Fprintf(out, "✅ Success! You will now be notified for deals with %d%% or more discount.\n", percent)
				return nil
			})
		},
	}
}

func keywordAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <user-id> <keyword>",
		Short: "Subscribe a user to a keyword or category name",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			keyword := strings.Join(args[1:], " ")
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				added, err := st.AddKeyword(ctx, userID, keyword)
				if err != nil {
					return err
				}
				if added {
					fmt.Fprintf(cmd.OutOrStdout(), "🔔 Subscribed to %q\n", store.NormalizeKeyword(keyword))
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Already subscribed to %q\n", store.NormalizeKeyword(keyword))
				}
				return nil
			})
		},
	}
}

func keywordRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <user-id> <keyword>",
		Short: "Unsubscribe a user from a keyword",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			keyword := strings.Join(args[1:], " ")
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				removed, err := st.RemoveKeyword(ctx, userID, keyword)
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Unsubscribed from %q\n", store.NormalizeKeyword(keyword))
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Not subscribed to %q\n", store.NormalizeKeyword(keyword))
				}
				return nil
			})
		},
	}
}

func keywordListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's keyword subscriptions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				keywords, err := st.KeywordsOf(ctx, userID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(keywords) == 0 {
					fmt.Fprintln(out, "No keyword subscriptions.")
					return nil
				}
				for _, kw := range keywords {
					fmt.Fprintf(out, "- %s\n", kw)
				}
				return nil
			})
		},
	}
}

func myDealsCmd() *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "mydeals <user-id>",
		Short: "List a user's tracked deals, five per page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			if page < 1 {
				page = 1
			}
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				items, total, err := st.TrackedItems(ctx, userID, dealsPerPage, (page-1)*dealsPerPage)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if total == 0 {
					fmt.Fprintln(out, "You are not tracking any deals.")
					return nil
				}
				totalPages := (total + dealsPerPage - 1) / dealsPerPage
				if len(items) == 0 {
					fmt.Fprintf(out, "❓ No deals found on page %d.\n", page)
					return nil
				}

				fmt.Fprintf(out, "📖 Page %d/%d of your tracked deals:\n", page, totalPages)
				for _, it := range items {
					title := it.Title
					if title == "" {
						title = "(not seen yet)"
					}
					fmt.Fprintf(out, "- %s  %s", it.ItemID, helpers.Truncate(title, 60))
					if it.Discount > 0 {
						fmt.Fprintf(out, "  best %d%% off", it.Discount)
					}
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <item-id|link>",
		Short: "Show an item's recent prices and price badge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				out := cmd.OutOrStdout()
				if state, err := st.GetDealState(ctx, itemID); err == nil {
					fmt.Fprintf(out, "%s\n%s, best %d%% off, last seen %s\n",
						state.Title, state.Category, state.BestDiscountPercent, state.LastSeenAt.Format("2006-01-02 15:04"))
				}

				recent, err := history.NewIndex(st).Recent(ctx, itemID, cfg.HistoryWindowDays)
				if err != nil {
					return err
				}
				if len(recent) == 0 {
					fmt.Fprintf(out, "No prices recorded for %s in the last %d days.\n", itemID, cfg.HistoryWindowDays)
					return nil
				}
				for _, p := range recent {
					fmt.Fprintf(out, "%s  %s%s\n", p.ObservedAt.Format("2006-01-02 15:04"), cfg.CurrencySymbol, p.Price.StringFixedBank(2))
				}
				if badge := history.Classify(recent[0].Price, recent[1:]); badge.Kind != history.NoBadge {
					fmt.Fprintf(out, "Latest: %s\n", badge)
				}
				return nil
			})
		},
	}
}
