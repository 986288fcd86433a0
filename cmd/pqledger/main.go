package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/config"
	"github.com/pzverkov/quantum-agility/pkg/ledger"
	"github.com/pzverkov/quantum-agility/pkg/metrics"
	pkgversion "github.com/pzverkov/quantum-agility/pkg/version"
	"github.com/pzverkov/quantum-agility/pkg/workspace"
)

// Build-time variables (set via -ldflags)
var (
	version   = ""        // Set via -ldflags "-X main.version=x.y.z"
	buildTime = "unknown" // Set via -ldflags "-X main.buildTime=..."
)

func getVersion() string {
	if version != "" {
		return version
	}
	return pkgversion.String()
}

type command struct {
	name  string
	short string
	run   func(args []string) error
}

var commands = []command{
	{"init", "Create a ledger in the data directory", initCommand},
	{"commit", "Append an entry", commitCommand},
	{"read", "Print the plaintext of an entry", readCommand},
	{"log", "List entries and the modes they were written with", logCommand},
	{"status", "Show ledger identity, modes and tip", statusCommand},
	{"verify", "Verify the hash chain and every signature", verifyCommand},
	{"migrate", "Switch new commits to another KEM or signature mode", migrateCommand},
	{"retire", "Erase the secret key of a past KEM epoch", retireCommand},
	{"export", "Write an xz-compressed archive of the entries", exportCommand},
	{"import", "Load an archive into an empty data directory", importCommand},
	{"serve", "Serve the ledger API, metrics and health endpoints", serveCommand},
	{"algorithms", "List the algorithm families of this build", algorithmsCommand},
	{"selftest", "Run the power-on self-tests", selftestCommand},
	{"bench", "Benchmark commit, read and verify per mode", benchCommand},
	{"demo", "Walk through a migration on an in-memory ledger", demoCommand},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	switch name {
	case "version":
		fmt.Printf("pqledger version %s\n", getVersion())
		info := pkgversion.Build()
		fmt.Printf("Format: %s\n", info.Format)
		fmt.Printf("Go: %s\n", info.GoVersion)
		if buildTime != "unknown" {
			fmt.Printf("Built: %s\n", buildTime)
		}
		if info.Revision != "" {
			fmt.Printf("Commit: %s\n", info.Revision)
		}
		return
	case "help", "--help", "-h":
		printUsage()
		return
	}

	for _, c := range commands {
		if c.name == name {
			if err := c.run(os.Args[2:]); err != nil {
				fatal(err)
			}
			return
		}
	}
	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
	printUsage()
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`pqledger - Post-Quantum Crypto-Agility Ledger

USAGE:
    pqledger <command> [options]

COMMANDS:`)
	for _, c := range commands {
		fmt.Printf("    %-11s %s\n", c.name, c.short)
	}
	fmt.Println(`    version     Print version information
    help        Show this help message

Run 'pqledger <command> --help' for more information on a command.

CONFIGURATION:
    --config FILE            YAML configuration (optional)
    PQLEDGER_DATA_DIR        data directory (default ./pqledger-data)
    PQLEDGER_BACKEND         badger, sqlite or memory
    PQLEDGER_KEM_MODE        e.g. hybrid-lattice, quantum-safe-hqc
    PQLEDGER_SIG_MODE        e.g. hybrid-lattice-dsa, pure-hash-dsa
    PQLEDGER_PASSPHRASE      unlocks the key file

EXAMPLES:
    pqledger init --kem hybrid-lattice --sig hybrid-lattice-dsa
    echo "alpha" | pqledger commit
    pqledger migrate --kem quantum-safe-lattice
    pqledger verify
    pqledger export -o ledger.pqa.xz`)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// app is the environment shared by the commands that touch a ledger.
type app struct {
	cfg       *config.Config
	logger    *metrics.Logger
	tracer    metrics.Tracer
	collector *metrics.Collector
}

// flags registers the options every ledger command accepts.
type flags struct {
	configPath     string
	passphraseFile string
}

func newFlagSet(name, usage string) (*flag.FlagSet, *flags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	f := &flags{}
	fs.StringVar(&f.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&f.passphraseFile, "passphrase-file", "", "File holding the key file passphrase (default $PQLEDGER_PASSPHRASE)")
	fs.Usage = func() {
		fmt.Printf("USAGE: pqledger %s [options]\n\n%s\n\nOPTIONS:\n", name, usage)
		fs.PrintDefaults()
	}
	return fs, f
}

func (f *flags) app() (*app, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger(os.Stderr)
	metrics.SetLogger(logger)
	tracer := cfg.Tracer()
	metrics.SetTracer(tracer)
	return &app{
		cfg:       cfg,
		logger:    logger,
		tracer:    tracer,
		collector: metrics.Global(),
	}, nil
}

func (f *flags) passphrase(cfg *config.Config) ([]byte, error) {
	if f.passphraseFile != "" {
		data, err := os.ReadFile(f.passphraseFile)
		if err != nil {
			return nil, fmt.Errorf("read passphrase: %w", err)
		}
		return bytes.TrimRight(data, "\r\n"), nil
	}
	if cfg.Passphrase != "" {
		return []byte(cfg.Passphrase), nil
	}
	return nil, qerrors.NewConfigError("passphrase", "", errors.New("set PQLEDGER_PASSPHRASE or --passphrase-file"))
}

func (a *app) options() ledger.Options {
	return ledger.Options{
		Collector: a.collector,
		Tracer:    a.tracer,
		Logger:    a.logger,
	}
}

// open unlocks the configured ledger.
func (f *flags) open(ctx context.Context) (*app, *ledger.Ledger, error) {
	a, err := f.app()
	if err != nil {
		return nil, nil, err
	}
	pass, err := f.passphrase(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	l, err := workspace.Open(ctx, a.cfg, pass, a.options())
	if err != nil {
		return nil, nil, err
	}
	return a, l, nil
}
