package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dileepadev/blogsync/pkg/config"
	"github.com/dileepadev/blogsync/pkg/logger"
	"github.com/dileepadev/blogsync/pkg/posts"
	"github.com/dileepadev/blogsync/pkg/presenter"
	"github.com/dileepadev/blogsync/pkg/telemetry"
	"github.com/dileepadev/blogsync/pkg/version"
)

// app carries the state shared by all commands of one invocation
type app struct {
	v         *viper.Viper
	presenter presenter.Presenter
	out       io.Writer
	shutdown  func(context.Context) error
}

func newApp(out, errOut io.Writer) *app {
	v := viper.New()
	config.SetDefaults(v)

	p := presenter.Default()
	if out != os.Stdout || errOut != os.Stderr {
		p = presenter.NewWithOptions(out, errOut, presenter.ColorNever)
	}

	return &app{
		v:         v,
		presenter: p,
		out:       out,
		shutdown:  func(context.Context) error { return nil },
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "blogsync",
		Short: "Sync blog post metadata to the content API",
		Long: `blogsync reads the frontmatter of the MDX posts in a content directory and
upserts each post into the content API, keyed by slug.

Existing posts keep their display index; new posts are appended after the
highest index the API already knows about.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.String("log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	flags.String("log-format", "fmt", "Log format (fmt, json)")
	flags.String("env-file", ".env", "Load environment variables from this file if it exists")
	flags.String("config", "", "Config file (yaml, json or toml)")
	flags.String("posts-dir", config.DefaultPostsDir, "Directory containing the post files")
	flags.String("site-url", config.DefaultSiteURL, "Public URL of the blog, used to build links")
	flags.String("pattern", posts.DefaultPattern, "Glob matching post file names")
	flags.Int("concurrency", config.DefaultConcurrency, "Number of upserts to run at once")
	flags.Duration("timeout", config.DefaultTimeout, "Timeout of each API request")
	flags.Bool("dry-run", false, "Plan and print the sync without writing anything")
	flags.BoolP("quiet", "q", false, "Only print errors")
	flags.Bool("tracing-enabled", false, "Enable OpenTelemetry tracing")
	flags.String("tracing-sampler", "ratio", "Tracing sampler type (always, never, ratio)")
	flags.Float64("tracing-ratio", 1, "Sampling ratio when using ratio sampler")

	a.bind(flags.Lookup("log-level"), "log_level")
	a.bind(flags.Lookup("log-format"), "log_format")
	a.bind(flags.Lookup("posts-dir"), config.KeyPostsDir)
	a.bind(flags.Lookup("site-url"), config.KeySiteURL)
	a.bind(flags.Lookup("pattern"), config.KeyPattern)
	a.bind(flags.Lookup("concurrency"), config.KeyConcurrency)
	a.bind(flags.Lookup("timeout"), config.KeyTimeout)
	a.bind(flags.Lookup("dry-run"), config.KeyDryRun)
	a.bind(flags.Lookup("quiet"), "quiet")
	a.bind(flags.Lookup("tracing-enabled"), "tracing.enabled")
	a.bind(flags.Lookup("tracing-sampler"), "tracing.sampler")
	a.bind(flags.Lookup("tracing-ratio"), "tracing.ratio")

	root.AddCommand(a.syncCommand())
	root.AddCommand(a.planCommand())
	root.AddCommand(a.watchCommand())
	root.AddCommand(a.versionCommand())

	return root
}

// setup runs before every command: env file, config file, logging, tracing
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		a.v.SetConfigFile(configFile)
		if err := a.v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config file %s", configFile)
		}
	}

	if err := logger.Setup(a.v.GetString("log_level"), a.v.GetString("log_format")); err != nil {
		return err
	}
	a.presenter.SetQuiet(a.v.GetBool("quiet"))

	shutdown, err := telemetry.InitTracer(cmd.Context(), telemetry.Config{
		Enabled:        a.v.GetBool("tracing.enabled"),
		ServiceName:    "blogsync",
		ServiceVersion: version.Get().Version,
		SamplerType:    a.v.GetString("tracing.sampler"),
		SamplerRatio:   a.v.GetFloat64("tracing.ratio"),
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize tracing")
	}
	a.shutdown = shutdown
	return nil
}

// execute runs the command tree and flushes tracing afterwards
func (a *app) execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.out)

	err := root.ExecuteContext(ctx)
	if shutdownErr := a.shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
		logger.G(ctx).WithError(shutdownErr).Warn("failed to flush traces")
	}
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdout, os.Stderr)
	if err := a.execute(ctx, os.Args[1:]); err != nil {
		a.presenter.Error(err, "")
		stop()
		os.Exit(1)
	}
}

func (a *app) bind(flag *pflag.Flag, key string) {
	_ = a.v.BindPFlag(key, flag)
}
