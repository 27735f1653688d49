package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/card_ledger/internal/command"
	"github.com/congo-pay/card_ledger/internal/config"
	"github.com/congo-pay/card_ledger/internal/infra"
	"github.com/congo-pay/card_ledger/internal/journal"
	"github.com/congo-pay/card_ledger/internal/ledger"
	"github.com/congo-pay/card_ledger/internal/logging"
)

const usage = `Usage of processor:
  Interactive mode, one command per line, finish with an empty line:
      processor
  Apply every command in a file:
      processor <PATH TO INPUT FILE> [-d]

Commands:
  Add <name> <card number> $<limit>
  Charge <name> $<amount>
  Credit <name> $<amount>

Flags:
  -d    enable debug logging on stderr
`

var errHelp = errors.New("help requested")

type options struct {
	path  string
	debug bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args)
	if errors.Is(err, errHelp) {
		fmt.Fprint(stdout, usage)
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n\n%s", err, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	level := cfg.LogLevel
	if opts.debug {
		level = "debug"
	}
	logger := logging.New(level, stderr)

	var input io.Reader = stdin
	dispatchOpts := []command.Option{command.WithLogger(logger)}
	if opts.path != "" {
		f, err := os.Open(opts.path)
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: file does not exist (%s), please confirm it exists\n\n%s", opts.path, usage)
			return 1
		}
		defer f.Close()
		input = f
		logger.Debug("loading file", "path", opts.path)
	} else {
		dispatchOpts = append(dispatchOpts, command.StopOnBlank())
		logger.Debug("starting interactive mode")
	}

	sink, cleanup, err := openJournal(ctx, cfg, logger)
	if err != nil {
		logger.Error("open journal", "error", err)
		return 1
	}
	defer cleanup()
	dispatchOpts = append(dispatchOpts, command.WithJournal(sink, journal.NewFingerprinter(cfg.JournalPepper)))

	proc := ledger.New(ledger.WithLogger(logger))
	d := command.NewDispatcher(proc, dispatchOpts...)

	stats, err := d.Run(ctx, input)
	if err != nil {
		logger.Error("process commands", "error", err)
		return 1
	}
	logger.Debug("commands processed", "lines", stats.Lines, "applied", stats.Applied, "failed", stats.Failed, "malformed", stats.Malformed)

	fmt.Fprint(stdout, d.Report())
	return 0
}

// parseArgs accepts the flag before or after the file argument.
func parseArgs(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("processor", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&opts.debug, "d", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return options{}, errHelp
		}
		return options{}, err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return opts, nil
	}

	switch rest[0] {
	case "help", "--help", "-h", "--h":
		return options{}, errHelp
	}
	opts.path = rest[0]

	if err := fs.Parse(rest[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return options{}, errHelp
		}
		return options{}, err
	}
	if extra := fs.Args(); len(extra) > 0 {
		return options{}, fmt.Errorf("unexpected arguments %v", extra)
	}
	return opts, nil
}

// openJournal connects the optional journal backends named in cfg.
func openJournal(ctx context.Context, cfg config.Config, logger *slog.Logger) (journal.Sink, func(), error) {
	var (
		db    *pgxpool.Pool
		cache *redis.Client
		err   error
	)
	cleanup := func() {
		if db != nil {
			db.Close()
		}
		if cache != nil {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}
	}

	if cfg.DatabaseURL != "" {
		if db, err = infra.NewPostgresPool(ctx, cfg); err != nil {
			return nil, func() {}, err
		}
	}
	if cfg.RedisURL != "" {
		if cache, err = infra.NewRedisClient(ctx, cfg); err != nil {
			cleanup()
			return nil, func() {}, err
		}
	}

	sink, err := journal.Build(ctx, db, cache, cfg.JournalStream)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return sink, cleanup, nil
}
