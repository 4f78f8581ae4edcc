package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/pankaj-dahiya-devops/s3audit/internal/audit"
	"github.com/pankaj-dahiya-devops/s3audit/internal/config"
	"github.com/pankaj-dahiya-devops/s3audit/internal/engine"
	"github.com/pankaj-dahiya-devops/s3audit/internal/logging"
	"github.com/pankaj-dahiya-devops/s3audit/internal/output"
	"github.com/pankaj-dahiya-devops/s3audit/internal/providers/aws/common"
	awss3 "github.com/pankaj-dahiya-devops/s3audit/internal/providers/aws/s3"
	"github.com/pankaj-dahiya-devops/s3audit/internal/version"
)

// errAuditIncomplete is returned when at least one bucket failed or the run
// was cancelled. The details have already been written to stderr.
var errAuditIncomplete = errors.New("audit incomplete")

// cli carries the state shared by every command of one invocation.
type cli struct {
	v       *viper.Viper
	cfgFile string

	provider  common.AWSClientProvider
	newProber func(*common.ProfileConfig, *zap.Logger) awss3.BucketProber
	isTTY     func() bool
}

func newCLI() *cli {
	provider := common.NewDefaultAWSClientProvider()
	return &cli{
		v:        config.New(),
		provider: provider,
		newProber: func(p *common.ProfileConfig, log *zap.Logger) awss3.BucketProber {
			return awss3.NewDefaultBucketProber(provider, p, log)
		},
		isTTY: func() bool { return term.IsTerminal(int(os.Stdout.Fd())) },
	}
}

func newRootCmd() *cobra.Command {
	return newCLI().rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "s3audit",
		Short: "Audit the security posture of S3 buckets",
		Long: `s3audit inspects the S3 buckets of an AWS account and reports their
access control, encryption, versioning, website, logging, public access
block and bucket policy configuration.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runAuditCmd(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.s3audit.yaml)")
	pf.String("profile", "", "AWS profile name (default: credential chain)")
	pf.String("region", "", "AWS region override (default: profile region or us-east-1)")
	pf.String("log-level", "warn", "log level: debug, info, warn or error")

	f := root.Flags()
	f.StringSlice("bucket", nil, "bucket to audit, repeatable (default: every bucket)")
	f.StringSlice("disable", nil, "comma-separated audits to disable")
	f.StringSlice("enable", nil, "comma-separated audits to enable, applied after --disable")
	f.String("format", "text", "output format: text or csv")
	f.String("color", config.ColorAuto, "colour text output: auto, always or never")
	f.Int("concurrency", engine.DefaultConcurrency, "buckets audited in parallel")
	f.Int("fetch-concurrency", engine.DefaultConcurrency, "S3 requests in flight per bucket")
	f.Float64("rate-limit", 10, "S3 requests per second across the run, 0 for no limit")

	bind(c.v, root, map[string]string{
		config.KeyProfile:       "profile",
		config.KeyRegion:        "region",
		config.KeyLogLevel:      "log-level",
		config.KeyBuckets:       "bucket",
		config.KeyAuditsDisable: "disable",
		config.KeyAuditsEnable:  "enable",
		config.KeyOutputFormat:  "format",
		config.KeyOutputColor:   "color",
		config.KeyBucketWorkers: "concurrency",
		config.KeyFetchWorkers:  "fetch-concurrency",
		config.KeyRateLimit:     "rate-limit",
	})

	root.AddCommand(c.doctorCmd())
	root.AddCommand(c.configCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// bind maps viper keys to flags of cmd, so a flag that was set wins over
// environment and file values.
func bind(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			f = cmd.PersistentFlags().Lookup(name)
		}
		_ = v.BindPFlag(key, f)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}

func (c *cli) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "config",
		Short:         "Print the effective configuration as YAML",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			out, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// loadConfig merges defaults, file, environment and flags, then validates.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.v, c.cfgFile)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func (c *cli) runAuditCmd(ctx context.Context, stdout, stderr io.Writer) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, stderr)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	profile, err := c.provider.LoadProfile(ctx, cfg.Profile, cfg.Region)
	if err != nil {
		return fmt.Errorf("load AWS profile: %w", err)
	}
	log.Debug("profile loaded",
		zap.String("profile", profile.ProfileName),
		zap.String("account", profile.AccountID),
		zap.String("region", profile.Region))

	prober := throttle(c.newProber(profile, log), cfg)
	return runAudit(ctx, cfg, prober, c.colored(cfg.Output.Color), stdout, stderr, log)
}

// runAudit discovers buckets, audits them and renders the reports. Reports
// are written even when some buckets failed.
func runAudit(ctx context.Context, cfg *config.Config, prober awss3.BucketProber, colored bool, stdout, stderr io.Writer, log *zap.Logger) error {
	set, err := auditSet(cfg)
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	auditor := engine.NewAuditor(prober, engine.Options{
		BucketConcurrency: cfg.Concurrency.Buckets,
		FetchConcurrency:  cfg.Concurrency.Fetches,
	}, log)

	buckets, err := auditor.Discover(ctx, cfg.Buckets)
	if err != nil {
		return err
	}
	res, runErr := auditor.RunAll(ctx, buckets, set)

	if err := output.Render(stdout, format, res.Reports, output.TextOptions{Colored: colored}); err != nil {
		return fmt.Errorf("render reports: %w", err)
	}

	for _, f := range res.Failures {
		fmt.Fprintf(stderr, "error: %v\n", f)
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(stderr, "skipped %d bucket(s) after cancellation\n", len(res.Skipped))
	}
	if runErr != nil || len(res.Failures) > 0 {
		return errAuditIncomplete
	}
	return nil
}

// auditSet builds the enabled audits from the configured lists.
func auditSet(cfg *config.Config) (audit.Set, error) {
	disable, err := audit.ParseList(cfg.Audits.Disable)
	if err != nil {
		return audit.Set{}, fmt.Errorf("--disable: %w", err)
	}
	enable, err := audit.ParseList(cfg.Audits.Enable)
	if err != nil {
		return audit.Set{}, fmt.Errorf("--enable: %w", err)
	}
	// Disable first, so "--disable all --enable acl" audits ACLs only.
	return audit.NewSet().Disable(disable).Enable(enable), nil
}

// throttle wraps prober in a run-wide rate limiter unless the limit is 0.
func throttle(prober awss3.BucketProber, cfg *config.Config) awss3.BucketProber {
	r := cfg.Concurrency.RateLimit
	if r <= 0 {
		return prober
	}
	burst := max(int(r), 1)
	return awss3.NewThrottledProber(prober, rate.NewLimiter(rate.Limit(r), burst))
}

func (c *cli) colored(mode string) bool {
	switch strings.ToLower(mode) {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		return c.isTTY()
	}
}
