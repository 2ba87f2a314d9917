// Command flowdesk is an interactive off-chain trading client: open a
// session, trade with natural-language commands, close to settle.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/flowdesk/flowdesk/internal/config"
	"github.com/flowdesk/flowdesk/internal/domain"
	"github.com/flowdesk/flowdesk/internal/infrastructure/clearnode"
	"github.com/flowdesk/flowdesk/internal/infrastructure/logging"
	"github.com/flowdesk/flowdesk/internal/usecases"
	"github.com/flowdesk/flowdesk/internal/usecases/engine"
	"github.com/flowdesk/flowdesk/pkg/client"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "flowdesk",
		Short:         "Off-chain trading over state channels",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.AddCommand(newRunCmd(), newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "flowdesk", version)
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the interactive trading session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runREPL(cmd.Context(), cfg)
		},
	}
}

func runREPL(ctx context.Context, cfg *config.Config) error {
	logCfg := logging.ProductionConfig()
	if cfg.Debug {
		logCfg = logging.DevelopmentConfig()
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	wallet, err := loadWallet(cfg)
	if err != nil {
		return err
	}

	managerCfg := usecases.DefaultManagerConfig()
	managerCfg.Application = cfg.Application
	managerCfg.ChainID = cfg.ChainID
	managerCfg.SettlementAsset = cfg.SettlementAsset
	managerCfg.RequestTimeout = cfg.RequestTimeout

	opts := []client.Option{
		client.WithLogger(logger),
		client.WithManagerConfig(managerCfg),
		client.WithHermesURL(cfg.HermesURL),
	}
	if cfg.Simulated {
		opts = append(opts, client.WithSimulatedTransport())
	} else {
		opts = append(opts, client.WithClearnodeURL(cfg.ClearnodeURL))
	}

	c, err := client.New(wallet, opts...)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.Prices().Poll(pollCtx, cfg.PriceInterval)

	unsubscribe := c.Subscribe(func(s domain.Session) {
		fmt.Printf("[session] %s", s.Status)
		if s.Status == domain.StatusActive {
			fmt.Printf("  channel=%s", s.ChannelID)
		}
		fmt.Println()
	})
	defer unsubscribe()

	fmt.Printf("flowdesk %s  wallet=%s\n", version, wallet.Address().Hex())
	fmt.Println(`Type "open <amount>" to start, "help" for commands, "exit" to quit.`)

	prefs := domain.DefaultPreferences()
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "exit" || line == "quit":
			return nil
		case strings.HasPrefix(line, "open"):
			handleOpen(ctx, c, line)
		case line == "close":
			if err := c.CloseSession(ctx); err != nil {
				fmt.Println("close failed:", err)
			}
		default:
			handleChat(ctx, c, prefs, line)
		}
	}
}

func handleOpen(ctx context.Context, c *client.Client, line string) {
	fields := strings.Fields(line)
	deposit := decimal.NewFromInt(500)
	if len(fields) > 1 {
		d, err := decimal.NewFromString(fields[1])
		if err != nil {
			fmt.Println("amount must be a number, e.g. open 500")
			return
		}
		deposit = d
	}
	if err := c.OpenSession(ctx, deposit); err != nil {
		fmt.Println("open failed:", err)
	}
}

func handleChat(ctx context.Context, c *client.Client, prefs domain.DeFiPreferences, line string) {
	session := c.Session()
	quotes := c.Prices().Latest()

	reply := engine.Parse(line, session.Balance, quotes)
	if reply.Intent == nil {
		fmt.Println(reply.Message)
		return
	}

	if session.Status != domain.StatusActive {
		fmt.Println(`Please open a trading session first: "open 500".`)
		return
	}
	if err := engine.ValidateIntent(*reply.Intent, prefs, session.Balance, quotes); err != nil {
		fmt.Println(err)
		return
	}

	trade, err := c.ExecuteTrade(ctx, reply.Intent.Type, reply.Intent.TokenIn, reply.Intent.TokenOut, reply.Intent.Amount, quotes)
	if err != nil {
		fmt.Println("trade failed:", err)
		return
	}
	fmt.Printf("executed: %s %s %s -> %s %s (pnl %s)\n",
		trade.Type, trade.AmountIn, trade.TokenIn, trade.AmountOut, trade.TokenOut,
		c.Session().PnL.StringFixed(2))
}

func loadWallet(cfg *config.Config) (*clearnode.LocalWallet, error) {
	if cfg.WalletKey != "" {
		return clearnode.NewLocalWalletFromHex(cfg.WalletKey)
	}
	return clearnode.NewLocalWallet()
}
