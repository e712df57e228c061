package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZaguanLabs/livetl"
	"github.com/ZaguanLabs/livetl/cache"
	"github.com/ZaguanLabs/livetl/config"
	"github.com/ZaguanLabs/livetl/dom"
	"github.com/ZaguanLabs/livetl/engine"
	"github.com/ZaguanLabs/livetl/processor"
	"github.com/ZaguanLabs/livetl/source"
)

// cli carries the settings shared by every subcommand. Values come from
// flags, LIVETL_* environment variables or the config file, in that order.
type cli struct {
	v      *viper.Viper
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   livetl.Name,
		Short: livetl.Description,
		Long: `livetl rewrites recognized text in HTML documents using a dictionary.

Examples:
  livetl translate --dict zh.json --url /octo/repo/issues page.html
  livetl resolve --dict zh.po --partial "Open Issues (3)"
  livetl context --url /octo/repo/pull/42`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().String("config", "", "config file (.yaml, .yml or .toml)")
	root.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().StringSlice("dict", nil, "dictionary file (.json, .yaml, .toml, .po); repeatable, later files win")
	root.PersistentFlags().String("redis-url", "", "load the dictionary from a Redis hash at this URL")
	root.PersistentFlags().String("redis-key", "livetl:dictionary", "Redis hash key holding the dictionary")
	for _, name := range []string{"config", "log-level", "dict", "redis-url", "redis-key"} {
		_ = c.v.BindPFlag(name, root.PersistentFlags().Lookup(name))
	}

	c.v.SetEnvPrefix("LIVETL")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root.AddCommand(
		c.translateCommand(),
		c.resolveCommand(),
		c.contextCommand(),
		c.versionCommand(),
	)
	return root
}

func (c *cli) init() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.v.GetString("log-level"))); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	c.logger = slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

func (c *cli) loadConfig() (*config.Config, error) {
	path := c.v.GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func (c *cli) sources(ctx context.Context, cfg *config.Config) ([]source.Source, error) {
	var sources []source.Source
	for _, path := range c.v.GetStringSlice("dict") {
		if strings.EqualFold(filepath.Ext(path), ".po") {
			sources = append(sources, &source.PO{Path: path, PlaceholderPrefix: cfg.PlaceholderPrefix})
		} else {
			sources = append(sources, &source.File{Path: path, PlaceholderPrefix: cfg.PlaceholderPrefix})
		}
	}

	if url := c.v.GetString("redis-url"); url != "" {
		r, err := source.NewRedis(ctx, source.RedisConfig{URL: url, Key: c.v.GetString("redis-key")})
		if err != nil {
			return nil, err
		}
		sources = append(sources, source.NewResilient(r, source.WithLogger(c.logger)))
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("--dict or --redis-url is required")
	}
	return sources, nil
}

// newEngine builds an engine with the configured dictionary loaded.
func (c *cli) newEngine(ctx context.Context, opts ...engine.Option) (*engine.Engine, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	sources, err := c.sources(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts = append([]engine.Option{engine.WithConfig(cfg), engine.WithLogger(c.logger)}, opts...)
	e, err := engine.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := e.LoadDictionary(ctx, sources...); err != nil {
		return nil, fmt.Errorf("loading dictionary: %w", err)
	}
	return e, nil
}

// TranslateOutput is the JSON form of a translate run.
type TranslateOutput struct {
	Content   string               `json:"content"`
	Context   string               `json:"context"`
	Elements  int                  `json:"elements"`
	Skipped   int                  `json:"skipped"`
	Failed    int                  `json:"failed"`
	Stats     livetl.StatsSnapshot `json:"stats"`
	ElapsedMs int64                `json:"elapsed_ms"`
}

func (c *cli) translateCommand() *cobra.Command {
	var (
		url         string
		output      string
		jsonOut     bool
		exportCache string
	)
	cmd := &cobra.Command{
		Use:   "translate [file.html]",
		Short: "Translate an HTML file (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var in io.Reader = c.stdin
			if len(args) == 1 {
				f, err := os.Open(args[0]) // #nosec G304 - CLI tool reads user-specified files
				if err != nil {
					return fmt.Errorf("reading file: %w", err)
				}
				defer f.Close()
				in = f
			}
			doc, err := dom.Parse(in)
			if err != nil {
				return err
			}

			e, err := c.newEngine(ctx, engine.WithYielder(processor.YielderFunc(func(context.Context) error { return nil })))
			if err != nil {
				return err
			}

			start := time.Now()
			res, err := e.TranslateOnce(ctx, doc, url)
			if err != nil {
				return fmt.Errorf("translation failed: %w", err)
			}
			elapsed := time.Since(start)

			content, err := doc.HTML()
			if err != nil {
				return err
			}

			if exportCache != "" {
				meta := map[string]string{"url": url, "version": livetl.FullVersion()}
				if err := cache.NewExporter(e.Cache()).ExportToFile(exportCache, meta); err != nil {
					return fmt.Errorf("exporting cache: %w", err)
				}
			}

			var out io.Writer = c.stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				out = f
			}

			name, _ := e.Classify(url)
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(TranslateOutput{
					Content:   content,
					Context:   name,
					Elements:  res.Processed,
					Skipped:   res.Skipped,
					Failed:    res.Failed,
					Stats:     e.Stats(),
					ElapsedMs: elapsed.Milliseconds(),
				})
			}

			fmt.Fprint(out, content)
			c.logger.Info("translated document",
				"context", name,
				"elements", res.Processed,
				"translated", res.Translated,
				"elapsed", elapsed.Round(time.Millisecond),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "/", "page path used to select the context")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output result as JSON")
	cmd.Flags().StringVar(&exportCache, "export-cache", "", "write the resolution cache to this JSON file")
	return cmd
}

func (c *cli) resolveCommand() *cobra.Command {
	var (
		partial bool
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "resolve TEXT...",
		Short: "Resolve fragments against the dictionary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.newEngine(cmd.Context())
			if err != nil {
				return err
			}

			type resolved struct {
				Input string `json:"input"`
				livetl.Resolution
			}
			var results []resolved
			opts := livetl.ResolveOptions{AllowPartial: partial}
			for _, text := range args {
				results = append(results, resolved{Input: text, Resolution: e.ResolveWith(text, opts)})
			}

			if jsonOut {
				enc := json.NewEncoder(c.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			for _, r := range results {
				if !r.Found {
					fmt.Fprintf(c.stdout, "%s\t(no match)\n", r.Input)
					continue
				}
				fmt.Fprintf(c.stdout, "%s\t%s\t%s\n", r.Input, r.Text, r.Kind)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&partial, "partial", false, "allow partial matches")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output results as JSON")
	return cmd
}

func (c *cli) contextCommand() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show the context and tuning selected for a page path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			classifier, err := config.NewClassifier(cfg.Contexts)
			if err != nil {
				return &livetl.ConfigError{Path: c.v.GetString("config"), Message: "invalid context rules", Cause: err}
			}
			name := classifier.Classify(url)
			t := cfg.TuningFor(name)

			fmt.Fprintf(c.stdout, "context:        %s\n", name)
			fmt.Fprintf(c.stdout, "batch size:     %d\n", t.BatchSize)
			fmt.Fprintf(c.stdout, "partial match:  %t\n", t.PartialMatch)
			fmt.Fprintf(c.stdout, "complex:        %t\n", t.Complex)
			fmt.Fprintf(c.stdout, "debounce:       %v (max %v)\n", t.Debounce, t.MaxDebounce)
			fmt.Fprintf(c.stdout, "throttle:       %v\n", t.ThrottleInterval())
			roots := append(append([]string(nil), t.Roots...), "#document")
			fmt.Fprintf(c.stdout, "roots:          %s\n", strings.Join(roots, " > "))
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "/", "page path")
	return cmd
}

func (c *cli) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(c.stdout, "%s %s\n", livetl.Name, version)
			if commit != "unknown" && commit != "" {
				fmt.Fprintf(c.stdout, "  commit:  %s\n", commit)
			}
			if buildDate != "unknown" && buildDate != "" {
				fmt.Fprintf(c.stdout, "  built:   %s\n", buildDate)
			}
		},
	}
}
