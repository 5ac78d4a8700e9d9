package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/yikai/QuorumGo/config"
	"github.com/yikai/QuorumGo/internal/debug"
	"github.com/yikai/QuorumGo/internal/engine"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "quorumgo",
		Short: "QuorumGo - Multi-Agent Stock Consensus",
		Long: `QuorumGo asks several independent AI reasoning backends about a stock and
only commits to a recommendation they agree on. It meters every paid call
against a daily budget, caches fresh analyses, challenges past theses against
realized performance, and feeds the lessons back into future prompts.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debugFlag, _ := cmd.Flags().GetBool("debug"); debugFlag {
				cfg.Debug = true
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}
			return debug.NewEinoDebugger(cfg).Initialize()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractiveMode(cfg)
		},
	}

	rootCmd.AddCommand(newAnalyzeCmd(cfg))
	rootCmd.AddCommand(newChallengeCmd(cfg))
	rootCmd.AddCommand(newInsightsCmd(cfg))
	rootCmd.AddCommand(newUsageCmd(cfg))
	rootCmd.AddCommand(newPositionCmd(cfg))
	rootCmd.AddCommand(newConfigCmd(cfg))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")

	return rootCmd
}

// withEngine runs fn against a fully wired engine and closes it afterwards.
func withEngine(cfg *config.Config, fn func(ctx context.Context, eng *engine.Engine) error) error {
	ctx := context.Background()
	eng, err := engine.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()
	return fn(ctx, eng)
}

func newAnalyzeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Ask the backend panel for a consensus on a stock",
		Long: `Fan the question out to every configured reasoning backend and reduce the
answers to one recommendation. A fresh cached consensus answers for free.
Example: quorumgo analyze AAPL --refresh`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refresh, _ := cmd.Flags().GetBool("refresh")
			userContext, _ := cmd.Flags().GetString("context")
			return withEngine(cfg, func(ctx context.Context, eng *engine.Engine) error {
				return runAnalyze(ctx, eng, args[0], userContext, refresh)
			})
		},
	}
	cmd.Flags().Bool("refresh", false, "Bypass the cache and replace any live entry")
	cmd.Flags().String("context", "", "Extra framing passed to every backend (part of the cache identity)")
	return cmd
}

func runAnalyze(ctx context.Context, eng *engine.Engine, symbol, userContext string, refresh bool) error {
	if refresh {
		res, err := eng.ForceRefresh(ctx, symbol, userContext)
		if err != nil {
			return err
		}
		DisplayConsensus(res, false)
		return nil
	}
	res, fromCache, err := eng.GetConsensus(ctx, symbol, userContext)
	if err != nil {
		return err
	}
	DisplayConsensus(res, fromCache)
	return nil
}

func newChallengeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "challenge TICKER",
		Short: "Re-score the latest thesis against realized performance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cfg, func(ctx context.Context, eng *engine.Engine) error {
				tc, err := eng.ChallengeThesis(ctx, args[0])
				if err != nil {
					return err
				}
				DisplayChallenge(tc)
				return nil
			})
		},
	}
}

func newInsightsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "List the lessons currently injected into analysis prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cfg, func(ctx context.Context, eng *engine.Engine) error {
				list, err := eng.RecentInsights(ctx)
				if err != nil {
					return err
				}
				DisplayInsights(list)
				return nil
			})
		},
	}
	extract := &cobra.Command{
		Use:   "extract",
		Short: "Mine the trailing challenge window for new patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			windowDays, _ := cmd.Flags().GetInt("window-days")
			return withEngine(cfg, func(ctx context.Context, eng *engine.Engine) error {
				minted, err := eng.ExtractInsights(ctx, time.Duration(windowDays)*24*time.Hour)
				if err != nil {
					return err
				}
				if len(minted) == 0 {
					fmt.Println("No new patterns met the sample-size bar.")
					return nil
				}
				DisplayInsights(minted)
				return nil
			})
		},
	}
	extract.Flags().Int("window-days", 0, "Trailing window in days (0 uses the configured default)")
	cmd.AddCommand(extract)
	return cmd
}

func newUsageCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show today's metered spend against the daily cap",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cfg, func(ctx context.Context, eng *engine.Engine) error {
				stats, err := eng.GetUsageStats(ctx)
				if err != nil {
					return err
				}
				DisplayUsage(stats, cfg.DailyCallCap)
				return nil
			})
		},
	}
}

func newPositionCmd(cfg *config.Config) *cobra.Command {
	positionCmd := &cobra.Command{
		Use:   "position",
		Short: "Manage the locally tracked portfolio",
	}

	positionCmd.AddCommand(&cobra.Command{
		Use:   "set SYMBOL QUANTITY ENTRY_PRICE",
		Short: "Record or replace a holding",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q: %w", args[1], err)
			}
			entryPrice, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid entry price %q: %w", args[2], err)
			}
			return withEngine(cfg, func(ctx context.Context, eng *engine.Engine) error {
				if err := eng.SetPosition(ctx, args[0], quantity, entryPrice); err != nil {
					return err
				}
				fmt.Printf("Recorded %s x %s @ %s\n", args[0], quantity, entryPrice)
				return nil
			})
		},
	})

	positionCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tracked holdings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cfg, func(ctx context.Context, eng *engine.Engine) error {
				rows, err := eng.Portfolio(ctx)
				if err != nil {
					return err
				}
				DisplayPortfolio(rows)
				return nil
			})
		},
	})

	return positionCmd
}

func newConfigCmd(cfg *config.Config) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			showConfig(cfg)
		},
	})

	return configCmd
}

func showConfig(cfg *config.Config) {
	fmt.Println("Current QuorumGo configuration:")
	fmt.Printf("Project directory:     %s\n", cfg.ProjectDir)
	fmt.Printf("Database path:         %s\n", cfg.DBPath)
	fmt.Println()
	fmt.Printf("Daily call cap:        %d\n", cfg.DailyCallCap)
	fmt.Printf("Estimated cost/call:   $%.4f\n", cfg.EstimatedCostUSD)
	fmt.Printf("Cache TTL:             %s\n", cfg.CacheTTL())
	fmt.Printf("Per-backend timeout:   %s\n", cfg.AgentTimeout())
	fmt.Printf("Overall timeout:       %s\n", cfg.OverallTimeout())
	fmt.Printf("Min agent responses:   %d\n", cfg.MinAgentResponses)
	fmt.Println()
	fmt.Printf("Hold threshold:        %.2f\n", cfg.HoldAccuracyThreshold)
	fmt.Printf("Sell threshold:        %.2f\n", cfg.SellAccuracyThreshold)
	fmt.Printf("Insight min samples:   %d\n", cfg.InsightMinSamples)
	fmt.Printf("Insight window:        %d days\n", cfg.InsightWindowDays)
	fmt.Println()
	fmt.Println("Backends:")
	fmt.Printf("  OpenAI:              %s\n", configured(cfg.OpenAIAPIKey))
	fmt.Printf("  DeepSeek:            %s\n", configured(cfg.DeepSeekAPIKey))
	fmt.Printf("  REST:                %s\n", configured(cfg.RestBackendURL))
	fmt.Printf("  Longport positions:  %s\n", configured(cfg.LongportAppKey))
}

func configured(val string) string {
	if val == "" {
		return "not configured"
	}
	return "configured"
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("QuorumGo v1.0.0")
			fmt.Println("Multi-Agent Stock Consensus Engine")
		},
	}
}
