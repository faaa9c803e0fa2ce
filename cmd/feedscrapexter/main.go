// cmd/feedscrapexter/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/valpere/FeedScrapexter/internal/config"
	"github.com/valpere/FeedScrapexter/internal/errors"
	"github.com/valpere/FeedScrapexter/internal/utils"
	"github.com/valpere/FeedScrapexter/pkg/api"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// defaultConfigFile is loaded when present and no --config is given.
const defaultConfigFile = "feedscrapexter.yaml"

// cli carries the parsed global flags and output streams.
type cli struct {
	args       []string
	stdout     io.Writer
	stderr     io.Writer
	verbose    bool
	configFile string
}

func newCLI(args []string, stdout, stderr io.Writer) *cli {
	c := &cli{stdout: stdout, stderr: stderr}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-v", "--verbose":
			c.verbose = true
		case "-c", "--config":
			if i+1 < len(args) {
				c.configFile = args[i+1]
				i++
			}
		default:
			c.args = append(c.args, args[i])
		}
	}
	return c
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stdout)
		return errors.ExitGeneral
	}
	// "-v" alone means version, as before flags were parsed
	if len(args) == 1 && (args[0] == "-v" || args[0] == "--version") {
		printVersion(stdout)
		return 0
	}

	c := newCLI(args, stdout, stderr)
	if len(c.args) == 0 {
		printUsage(stdout)
		return errors.ExitGeneral
	}

	var err error
	command, rest := c.args[0], c.args[1:]
	switch command {
	case "collect":
		err = c.collect(rest)
	case "extract":
		err = c.extract(rest)
	case "watch":
		err = c.watch(rest)
	case "patterns":
		err = c.patterns()
	case "cache":
		err = c.cache(rest)
	case "flush":
		err = c.flush()
	case "status":
		err = c.status()
	case "validate":
		err = c.validate(rest)
	case "template":
		err = c.template(rest)
	case "version":
		printVersion(stdout)
	case "help", "--help", "-h":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Error: unknown command '%s'\n", command)
		printUsage(stderr)
		return errors.ExitGeneral
	}

	if err != nil {
		fmt.Fprint(stderr, errors.FormatErrorForCLI(err, c.verbose))
		return errors.GetExitCode(err)
	}
	return 0
}

// loadConfig reads --config, the default file when present, or built-in defaults.
func (c *cli) loadConfig() (*config.Config, error) {
	path := c.configFile
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err != nil {
			return config.Default(), nil
		}
		path = defaultConfigFile
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func (c *cli) logger(cfg *config.Config) utils.Logger {
	level := utils.ParseLogLevel(cfg.Log.Level)
	if c.verbose {
		level = utils.DebugLevel
	}
	return utils.NewLoggerWithOptions(utils.LoggerOptions{
		Level:  level,
		Format: cfg.Log.Format,
		Output: c.stderr,
	})
}

func (c *cli) pipeline(ctx context.Context, offline bool) (*api.Pipeline, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return api.New(ctx, cfg, api.Options{
		Logger:  c.logger(cfg),
		Version: version,
		Offline: offline,
	})
}

func (c *cli) collect(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("invalid arguments: usage: feedscrapexter collect <url>")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := c.pipeline(ctx, false)
	if err != nil {
		return err
	}
	defer p.Close()

	batch, err := p.Collect(ctx, args[0])
	if batch != nil {
		c.printJSON(batch)
	}
	return err
}

func (c *cli) extract(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("invalid arguments: usage: feedscrapexter extract <file.html> <page-url>")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open HTML file: %w", err)
	}
	defer f.Close()

	ctx := context.Background()
	p, err := c.pipeline(ctx, true)
	if err != nil {
		return err
	}
	defer p.Close()

	batch, err := p.Extract(ctx, args[1], f)
	if batch != nil {
		c.printJSON(batch)
	}
	return err
}

func (c *cli) watch(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("invalid arguments: usage: feedscrapexter watch <url>")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := c.pipeline(ctx, false)
	if err != nil {
		return err
	}
	defer p.Close()

	err = p.Watch(ctx, args[0])
	if ctx.Err() != nil {
		// interrupted
		return nil
	}
	return err
}

func (c *cli) patterns() error {
	p, err := c.pipeline(context.Background(), true)
	if err != nil {
		return err
	}
	defer p.Close()

	libVersion, entries := p.Patterns()
	fmt.Fprintf(c.stdout, "Pattern library %s\n\n", libVersion)
	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tPAGE\tQUERY")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Target, e.PageType, e.Query)
	}
	return w.Flush()
}

func (c *cli) cache(args []string) error {
	if len(args) < 1 || args[0] != "reset" {
		return fmt.Errorf("invalid arguments: usage: feedscrapexter cache reset")
	}
	ctx := context.Background()
	p, err := c.pipeline(ctx, true)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.ResetCache(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, "✓ Selector cache cleared")
	return nil
}

func (c *cli) flush() error {
	ctx := context.Background()
	p, err := c.pipeline(ctx, true)
	if err != nil {
		return err
	}
	defer p.Close()

	if !p.Status(ctx).Retaining {
		fmt.Fprintln(c.stdout, "Retention is disabled, nothing to flush")
		return nil
	}
	n, err := p.Flush(ctx)
	fmt.Fprintf(c.stdout, "Delivered %d retained batches\n", n)
	return err
}

func (c *cli) status() error {
	ctx := context.Background()
	p, err := c.pipeline(ctx, true)
	if err != nil {
		return err
	}
	defer p.Close()
	c.printJSON(p.Status(ctx))
	return nil
}

func (c *cli) validate(args []string) error {
	path := c.configFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("invalid arguments: usage: feedscrapexter validate <config.yaml>")
	}
	cfg, err := config.ParseFile(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	result := cfg.ValidateDetailed()
	for _, w := range result.Warnings {
		fmt.Fprintf(c.stdout, "⚠ %s\n", w)
	}
	if !result.Valid {
		for _, e := range result.Errors {
			fmt.Fprintf(c.stderr, "✗ %s\n", e.Error())
		}
		return fmt.Errorf("validation failed: %d errors", len(result.Errors))
	}

	fmt.Fprintf(c.stdout, "✓ Configuration file '%s' is valid\n", path)
	if c.verbose {
		fmt.Fprintf(c.stdout, "  Page source: %s\n", pageSourceName(cfg))
		fmt.Fprintf(c.stdout, "  Cache driver: %s\n", cfg.Cache.Driver)
		fmt.Fprintf(c.stdout, "  Sinks: %d\n", len(cfg.Output.Sinks))
	}
	return nil
}

func pageSourceName(cfg *config.Config) string {
	if cfg.Browser.Enabled {
		return "chrome"
	}
	return "http"
}

func (c *cli) template(args []string) error {
	kind := "minimal"
	if len(args) > 1 && args[0] == "--type" {
		kind = args[1]
	}
	tmpl := config.GenerateTemplate(kind)
	data, err := yaml.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("failed to marshal template to YAML: %w", err)
	}
	_, err = c.stdout.Write(data)
	return err
}

func (c *cli) printJSON(v interface{}) {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(c.stderr, "Error: failed to encode output: %v\n", err)
	}
}

// printUsage displays help information
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "FeedScrapexter - Video feed collection tool")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  feedscrapexter collect <url>                   Load a page and collect one batch")
	fmt.Fprintln(w, "  feedscrapexter extract <file.html> <page-url>  Collect a batch from saved HTML")
	fmt.Fprintln(w, "  feedscrapexter watch <url>                     Load a page and collect on every interval")
	fmt.Fprintln(w, "  feedscrapexter patterns                        List the active pattern library")
	fmt.Fprintln(w, "  feedscrapexter cache reset                     Clear cached selector queries")
	fmt.Fprintln(w, "  feedscrapexter flush                           Redeliver retained batches")
	fmt.Fprintln(w, "  feedscrapexter status                          Show cache, escalation and outbox state")
	fmt.Fprintln(w, "  feedscrapexter validate <config.yaml>          Validate configuration file")
	fmt.Fprintln(w, "  feedscrapexter template [--type <type>]        Generate configuration template")
	fmt.Fprintln(w, "  feedscrapexter version                         Show version information")
	fmt.Fprintln(w, "  feedscrapexter help                            Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  -c, --config <file>    Configuration file (default: feedscrapexter.yaml if present)")
	fmt.Fprintln(w, "  -v, --verbose          Enable verbose output")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Template types:")
	fmt.Fprintln(w, "  minimal     In-memory cache and a JSON lines sink (default)")
	fmt.Fprintln(w, "  full        Browser, SQLite cache, escalation, retention and metrics")
}

// printVersion displays version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "FeedScrapexter %s\n", version)
	fmt.Fprintf(w, "Build time: %s\n", buildTime)
	fmt.Fprintf(w, "Git commit: %s\n", gitCommit)
}
