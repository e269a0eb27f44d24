// Package main provides btcwallet, a command line front end for the
// single-address wallet engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/klingon-exchange/vaultwallet/internal/chain"
	"github.com/klingon-exchange/vaultwallet/internal/config"
	"github.com/klingon-exchange/vaultwallet/internal/wallet"
	"github.com/klingon-exchange/vaultwallet/pkg/helpers"
	"github.com/klingon-exchange/vaultwallet/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

// PhraseEnv holds the seed phrase; it is never taken from the command line.
const PhraseEnv = "BTCWALLET_PHRASE"

const usage = `usage: btcwallet [flags] <command> [args]

commands:
  new-phrase                              generate a 12-word seed phrase
  address                                 print the wallet address
  validate <address>                      check an address for the active network
  balance [address]                       scan and print the wallet balance, or any address's balance
  utxos                                   scan and list unspent outputs
  history [address]                       list recent transactions of the wallet or any address
  fees [memo]                             quote fees for spending every output
  send <address> <btc> [rate]             send a normal transaction
  vault <address> <btc> <memo> [rate]     send a transaction with a memo output

flags:
`

func main() {
	var (
		dataDir     = flag.String("data-dir", config.DefaultDataDir, "Data directory")
		configFile  = flag.String("config", "", "Config file path (default: <data-dir>/config.yaml)")
		testnet     = flag.Bool("testnet", false, "Use testnet")
		backendURL  = flag.String("backend-url", "", "Chain data provider URL, overrides config")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logging.New(&logging.Config{Level: "warn", TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if *showVersion {
		fmt.Printf("btcwallet %s (commit: %s)\n", version, commit)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
	} else {
		cfg, err = config.LoadConfig(*dataDir)
	}
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	// CLI flags take precedence over the config file
	if *testnet {
		cfg.Network = chain.Testnet
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid config", "error", err)
	}

	log = logging.New(cfg.LoggerConfig())
	logging.SetDefault(log)

	client, err := wallet.NewClient(&wallet.ClientConfig{
		Network:       cfg.Network,
		BackendConfig: cfg.BackendConfig(),
		Logger:        log.Component("wallet"),
	})
	if err != nil {
		log.Fatal("Failed to create wallet", "error", err)
	}
	if *backendURL != "" {
		client.SetBaseURL(*backendURL)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cli := &cli{client: client, cfg: cfg, log: log}
	if err := cli.run(ctx, args[0], args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		log.Error("Command failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

type cli struct {
	client *wallet.Client
	cfg    *config.Config
	log    *logging.Logger
}

// providerCommands talk to the chain data provider.
var providerCommands = map[string]bool{
	"balance": true,
	"utxos":   true,
	"history": true,
	"fees":    true,
	"send":    true,
	"vault":   true,
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	if providerCommands[cmd] {
		if err := c.client.Connect(ctx); err != nil {
			return err
		}
		defer c.client.Close()
	}

	switch cmd {
	case "new-phrase":
		phrase, err := c.client.GenerateMnemonic()
		if err != nil {
			return err
		}
		fmt.Println(phrase)
		return nil

	case "validate":
		if len(args) != 1 {
			return errUsage
		}
		fmt.Printf("%t (%s)\n", c.client.ValidateAddress(args[0]), c.params().Name)
		return nil

	case "balance":
		if len(args) == 1 {
			return c.printAddressInfo(ctx, args[0])
		}

	case "history":
		if len(args) == 1 {
			return c.printHistory(ctx, args[0])
		}
	}

	if err := c.loadPhrase(); err != nil {
		return err
	}

	switch cmd {
	case "address":
		address, err := c.client.Address()
		if err != nil {
			return err
		}
		fmt.Println(address)
		return nil

	case "balance":
		if err := c.client.ScanUTXOs(ctx); err != nil {
			return err
		}
		fmt.Printf("%s (%d outputs)\n", c.formatAmount(c.client.Balance()), c.client.UTXOs().Len())
		return nil

	case "utxos":
		if err := c.client.ScanUTXOs(ctx); err != nil {
			return err
		}
		for _, u := range c.client.UTXOs().Outputs() {
			fmt.Printf("%s:%d\t%s\n", u.TxID, u.Vout, c.formatAmount(u.Value))
		}
		return nil

	case "history":
		if len(args) > 1 {
			return errUsage
		}
		address, err := c.client.Address()
		if err != nil {
			return err
		}
		return c.printHistory(ctx, address)

	case "fees":
		memo := ""
		if len(args) > 0 {
			memo = args[0]
		}
		return c.printFees(ctx, memo)

	case "send":
		if len(args) < 2 || len(args) > 3 {
			return errUsage
		}
		return c.send(ctx, args[0], args[1], "", false, args[2:])

	case "vault":
		if len(args) < 3 || len(args) > 4 {
			return errUsage
		}
		return c.send(ctx, args[0], args[1], args[2], true, args[3:])

	default:
		return errUsage
	}
}

func (c *cli) params() *chain.Params {
	return c.client.Network().Params()
}

func (c *cli) formatAmount(satoshis int64) string {
	p := c.params()
	return helpers.FormatAmount(satoshis, p.Decimals) + " " + p.Symbol
}

func (c *cli) printAddressInfo(ctx context.Context, address string) error {
	info, err := c.client.AddressInfo(ctx, address)
	if err != nil {
		return err
	}
	fmt.Printf("confirmed:   %s\n", c.formatAmount(info.Balance()))
	fmt.Printf("unconfirmed: %s\n", c.formatAmount(info.MempoolBalance))
	fmt.Printf("txs:         %d (%d outputs funded, %d spent)\n", info.TxCount, info.FundedTxCount, info.SpentTxCount)
	return nil
}

func (c *cli) printHistory(ctx context.Context, address string) error {
	txs, err := c.client.Transactions(ctx, address)
	if err != nil {
		return err
	}
	tip, err := c.client.TipHeight(ctx)
	if err != nil {
		return err
	}

	for _, tx := range txs {
		status := "unconfirmed"
		if tx.Confirmed && tx.BlockHeight > 0 {
			status = fmt.Sprintf("%d confirmations", tip-tx.BlockHeight+1)
		}
		fmt.Printf("%s\t%s\tfee %d sat\n", tx.TxID, status, tx.Fee)
	}
	return nil
}

func (c *cli) loadPhrase() error {
	phrase := os.Getenv(PhraseEnv)
	if phrase == "" {
		return fmt.Errorf("%w: set %s", wallet.ErrPhraseNotSet, PhraseEnv)
	}
	_, err := c.client.SetPhrase(phrase)
	return err
}

func (c *cli) printFees(ctx context.Context, memo string) error {
	if err := c.client.ScanUTXOs(ctx); err != nil {
		return err
	}
	schedule, err := c.client.CalcFees(ctx, memo)
	if err != nil {
		return err
	}

	tiers := make([]string, 0, len(schedule))
	for tier := range schedule {
		tiers = append(tiers, string(tier))
	}
	sort.Strings(tiers)
	for _, tier := range tiers {
		q := schedule[wallet.FeeTier(tier)]
		fmt.Printf("%-8s %8.2f sat/byte  %s\n", tier, q.FeeRate, c.formatAmount(q.TotalFee))
	}
	return nil
}

func (c *cli) send(ctx context.Context, address, amount, memo string, vault bool, rateArg []string) error {
	value, err := helpers.ParseAmount(amount, c.params().Decimals)
	if err != nil {
		return fmt.Errorf("%w: %v", wallet.ErrInvalidAmount, err)
	}

	if err := c.client.ScanUTXOs(ctx); err != nil {
		return err
	}

	rate, err := c.feeRate(ctx, memo, rateArg)
	if err != nil {
		return err
	}

	var txid string
	if vault {
		txid, err = c.client.VaultTx(ctx, address, value, memo, rate)
	} else {
		txid, err = c.client.NormalTx(ctx, address, value, rate)
	}
	if err != nil {
		return err
	}

	fmt.Println(txid)
	return nil
}

// feeRate takes the rate from the command line, or quotes the configured tier.
func (c *cli) feeRate(ctx context.Context, memo string, rateArg []string) (float64, error) {
	if len(rateArg) == 1 {
		rate, err := strconv.ParseFloat(rateArg[0], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", wallet.ErrInvalidFeeRate, err)
		}
		return rate, nil
	}

	tier, err := c.cfg.DefaultTier()
	if err != nil {
		return 0, err
	}
	schedule, err := c.client.CalcFees(ctx, memo)
	if err != nil {
		return 0, err
	}
	rate := schedule[tier].FeeRate
	c.log.Info("Using quoted fee rate", "tier", tier, "rate", rate)
	return rate, nil
}
