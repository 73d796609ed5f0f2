// main.go - Command-line entrypoint for the shielded pool client
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"shieldpool"
)

var consoleWriter = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC1123,
	FormatLevel: func(i interface{}) string {
		return fmt.Sprintf("[%-6s]", i)
	},
	FormatMessage: func(i interface{}) string {
		return fmt.Sprintf(" %s", i)
	},
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: shieldctl [flags] <command> [args]

Commands:
  balance                        show the private native balance
  balance-token <token>          show a private token balance
  deposit <lamports>             shield native funds
  deposit-token <token> <units>  shield token funds
  withdraw <lamports> [to]       unshield native funds
  withdraw-all [to]              unshield the full native balance
  clear-cache                    drop scan checkpoints

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "shieldctl.json", "path to the config file")
	logLevel := flag.String("log-level", "", "override the configured log level")
	referrer := flag.String("referrer", "", "referral wallet address for deposits")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shieldctl: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(consoleWriter).Level(level).With().Timestamp().Logger()

	seed, err := loadSeed(cfg.WalletSeedFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("load wallet seed")
	}

	client, err := shieldpool.New(shieldpool.Options{
		RelayerURL:    cfg.RelayerURL,
		RPCURL:        cfg.RPCURL,
		WalletSeed:    seed,
		ProgramID:     cfg.ProgramID,
		FeeRecipient:  cfg.FeeRecipient,
		StoragePath:   cfg.StoragePath,
		KeyDir:        cfg.KeyDir,
		ProverCommand: cfg.ProverCommand,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialize client")
	}
	logger.Info().Str("address", client.Address()).Msg("wallet loaded")

	ctx := context.Background()
	if err := run(ctx, client, logger, *referrer, flag.Args()); err != nil {
		logger.Fatal().Err(err).Msg(flag.Arg(0))
	}
}

func run(ctx context.Context, client *shieldpool.Client, logger zerolog.Logger, referrer string, args []string) error {
	switch args[0] {
	case "balance":
		balance, err := client.PrivateBalance(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("private balance: %d lamports\n", balance.Lamports)
		return nil

	case "balance-token":
		if len(args) < 2 {
			return fmt.Errorf("balance-token needs a token name")
		}
		balance, err := client.PrivateTokenBalance(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("private %s balance: %d base units (%.6f)\n",
			strings.ToUpper(args[1]), balance.BaseUnits, balance.Amount)
		return nil

	case "deposit":
		amount, err := parseAmount(args, 1, "deposit")
		if err != nil {
			return err
		}
		result, err := client.DepositWithReferrer(ctx, amount, referrer)
		if err != nil {
			return err
		}
		logger.Info().Str("signature", result.Signature).Uint64("shielded", result.OutputAmount).Msg("deposit confirmed")
		return nil

	case "deposit-token":
		if len(args) < 3 {
			return fmt.Errorf("deposit-token needs a token name and amount")
		}
		amount, err := parseAmount(args, 2, "deposit-token")
		if err != nil {
			return err
		}
		result, err := client.DepositToken(ctx, args[1], amount)
		if err != nil {
			return err
		}
		logger.Info().Str("signature", result.Signature).Msg("token deposit confirmed")
		return nil

	case "withdraw":
		amount, err := parseAmount(args, 1, "withdraw")
		if err != nil {
			return err
		}
		result, err := client.Withdraw(ctx, amount, optionalArg(args, 2))
		if err != nil {
			return err
		}
		logger.Info().Str("signature", result.Signature).Msg("withdraw confirmed")
		return nil

	case "withdraw-all":
		result, err := client.WithdrawAll(ctx, optionalArg(args, 1))
		if err != nil {
			return err
		}
		logger.Info().Str("signature", result.Signature).Msg("withdraw-all confirmed")
		return nil

	case "clear-cache":
		return client.ClearCache()

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func parseAmount(args []string, index int, command string) (uint64, error) {
	if len(args) <= index {
		return 0, fmt.Errorf("%s needs an amount", command)
	}
	amount, err := strconv.ParseUint(args[index], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", args[index], err)
	}
	return amount, nil
}

func optionalArg(args []string, index int) string {
	if len(args) > index {
		return args[index]
	}
	return ""
}

// loadSeed reads a 32-byte wallet seed stored as hex.
func loadSeed(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("wallet seed is not hex: %w", err)
	}
	return seed, nil
}
