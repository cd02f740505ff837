package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwygoda/nftfolder/internal/config"
	"github.com/cwygoda/nftfolder/internal/logging"
)

// app is the state shared by all commands.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	flags      flagValues

	cfg *config.Config
	log *slog.Logger
}

// flagValues holds command line overrides. Only flags the user set are
// applied on top of the file and environment configuration.
type flagValues struct {
	dir          string
	db           string
	concurrency  int
	gateway      string
	chains       []string
	pageSize     int
	pageInterval time.Duration
	statusAddr   string
	quiet        bool
	logLevel     string
	logFormat    string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "nftfolder <owner>",
		Short: "Download the images of every NFT an address owns",
		Long: `nftfolder pages through the NFTs owned by an address and saves each
image into a folder. Files that already exist are skipped, so running it
again only fetches what is new.`,
		Args:              cobra.ExactArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.download(cmd.Context(), args[0])
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/nftfolder/config.toml)")
	pf.StringVar(&a.flags.db, "db", "", "run ledger database path")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "log format: text, json")

	f := root.Flags()
	f.StringVarP(&a.flags.dir, "dir", "d", "", "destination directory, {owner} is replaced by the address")
	f.IntVarP(&a.flags.concurrency, "concurrency", "n", 0, "maximum parallel downloads")
	f.StringVar(&a.flags.gateway, "gateway", "", "IPFS gateway host")
	f.StringSliceVar(&a.flags.chains, "chains", nil, "chains to list, comma separated")
	f.IntVar(&a.flags.pageSize, "page-size", 0, "records per page (1-50)")
	f.DurationVar(&a.flags.pageInterval, "page-interval", 0, "minimum delay between page requests")
	f.StringVar(&a.flags.statusAddr, "status-addr", "", "serve /status and /metrics on this address")
	f.BoolVarP(&a.flags.quiet, "quiet", "q", false, "do not draw the progress line")

	root.AddCommand(newHistoryCmd(a), newFailuresCmd(a))
	return root
}

// setup loads the configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return withCode(exitUsage, err)
	}
	a.applyFlags(cmd, cfg)

	a.cfg = cfg
	a.log = logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: a.stderr,
	})
	return nil
}

func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("dir") {
		cfg.Dir = a.flags.dir
	}
	if changed("db") {
		cfg.DBPath = a.flags.db
	}
	if changed("concurrency") {
		cfg.Concurrency = a.flags.concurrency
	}
	if changed("gateway") {
		cfg.Gateway = a.flags.gateway
	}
	if changed("chains") {
		cfg.Chains = a.flags.chains
	}
	if changed("page-size") {
		cfg.PageSize = a.flags.pageSize
	}
	if changed("page-interval") {
		cfg.PageInterval = a.flags.pageInterval
	}
	if changed("status-addr") {
		cfg.StatusAddr = a.flags.statusAddr
	}
	if changed("quiet") {
		cfg.Quiet = a.flags.quiet
	}
	if changed("log-level") {
		cfg.LogLevel = a.flags.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = a.flags.logFormat
	}
}
