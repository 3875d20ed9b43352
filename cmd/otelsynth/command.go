package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hyp3rd/ewrap"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hyp3rd/otelsynth/internal/constants"
	"github.com/hyp3rd/otelsynth/pkg/catalog"
	"github.com/hyp3rd/otelsynth/pkg/config"
	"github.com/hyp3rd/otelsynth/pkg/diagnostics"
	"github.com/hyp3rd/otelsynth/pkg/generator"
	"github.com/hyp3rd/otelsynth/pkg/logging"
	"github.com/hyp3rd/otelsynth/pkg/redaction"
	"github.com/hyp3rd/otelsynth/pkg/render"
	"github.com/hyp3rd/otelsynth/pkg/smoke"
	"github.com/hyp3rd/otelsynth/pkg/validate"
)

const version = "0.1.0"

type rootFlags struct {
	configPath string
}

// loaders layers the config file, OTELSYNTH_ env vars and explicit flags.
func (f *rootFlags) loaders(overrides config.StaticLoader) []config.Loader {
	return []config.Loader{
		config.FileLoader{Path: f.configPath},
		config.EnvLoader{},
		overrides,
	}
}

// NewCommand builds the otelsynth command tree.
func NewCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "otelsynth",
		Short:         "Synthesize OpenTelemetry Collector configurations",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", constants.DefaultConfigFile,
		"otelsynth configuration file; skipped when missing")

	root.AddCommand(
		newGenerateCommand(flags),
		newValidateCommand(flags),
		newCatalogCommand(),
		newServeCommand(flags),
		newSmokeCommand(flags),
	)

	return root
}

type generateFlags struct {
	exporters []string
	outputDir string
	name      string
	envFile   string
	sampling  float64
	watch     bool
}

func (g *generateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&g.exporters, "exporters", "e", nil,
		"exporters to wire, e.g. elastic,grafana (overrides generator.exporters)")
	cmd.Flags().StringVarP(&g.outputDir, "output-dir", "o", "", "directory receiving the artifacts")
	cmd.Flags().StringVar(&g.name, "name", "", "base name of the collector config file")
	cmd.Flags().StringVar(&g.envFile, "env-file", "", "file name of the env manifest")
	cmd.Flags().Float64Var(&g.sampling, "sampling-percentage", 0, "trace sampling percentage (0,100]")
}

func (g *generateFlags) overrides(cmd *cobra.Command) config.StaticLoader {
	out := config.StaticLoader{}

	if cmd.Flags().Changed("exporters") {
		out["generator.exporters"] = g.exporters
	}

	if cmd.Flags().Changed("output-dir") {
		out["generator.output_dir"] = g.outputDir
	}

	if cmd.Flags().Changed("name") {
		out["generator.name"] = g.name
	}

	if cmd.Flags().Changed("env-file") {
		out["generator.env_file"] = g.envFile
	}

	if cmd.Flags().Changed("sampling-percentage") {
		out["generator.sampling_percentage"] = g.sampling
	}

	return out
}

func newGenerateCommand(root *rootFlags) *cobra.Command {
	gen := &generateFlags{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write the collector config and env file for the selected exporters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			client, err := generator.Init(ctx,
				generator.WithLoaders(root.loaders(gen.overrides(cmd))...),
				generator.WithConfigWatcher(gen.watch),
			)
			if err != nil {
				return err
			}

			defer shutdownGenerator(client)

			result, err := client.Generate(ctx)
			if err != nil {
				return err
			}

			printGeneration(cmd, result)

			if gen.watch {
				<-ctx.Done()
			}

			return nil
		},
	}

	gen.register(cmd)
	cmd.Flags().BoolVarP(&gen.watch, "watch", "w", false, "regenerate whenever the config file changes")

	return cmd
}

func printGeneration(cmd *cobra.Command, gen generator.Generation) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "config:  %s\n", gen.Artifacts.Config)
	fmt.Fprintf(out, "env:     %s\n", gen.Artifacts.Env)
	fmt.Fprintf(out, "digest:  %s\n", gen.Result.Digest)

	for _, warning := range gen.Result.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", warning)
	}
}

func shutdownGenerator(client *generator.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultTimeout)
	defer cancel()

	err := client.Shutdown(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "otelsynth: shutdown:", err)
	}
}

func newValidateCommand(root *rootFlags) *cobra.Command {
	var checkEnv bool

	cmd := &cobra.Command{
		Use:   "validate [collector-config]",
		Short: "Check a generated collector config for structural and placeholder problems",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Context(), root.loaders(nil)...)
			if err != nil {
				return err
			}

			path := generator.ArtifactPaths(cfg).Config
			if len(args) == 1 {
				path = args[0]
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return ewrap.Wrapf(err, "read %s", path)
			}

			err = validate.Config(data)
			if err != nil {
				return ewrap.Wrapf(err, "%s is invalid", path)
			}

			names, err := validate.Placeholders(data)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d placeholders)\n", path, len(names))

			if !checkEnv {
				return nil
			}

			missing := validate.MissingEnv(placeholderEntries(names, cfg), os.LookupEnv)
			if len(missing) > 0 {
				return ewrap.Newf("required environment variables are unset: %s", strings.Join(missing, ", "))
			}

			fmt.Fprintln(cmd.OutOrStdout(), "environment: ok")

			return nil
		},
	}

	cmd.Flags().BoolVar(&checkEnv, "check-env", false, "fail when a required placeholder is unset in the current environment")

	return cmd
}

// placeholderEntries describes each placeholder using the catalog and the
// configured runtime tags. Placeholders unknown to both count as required.
func placeholderEntries(names []string, cfg config.Config) []render.EnvEntry {
	known := map[string]render.EnvEntry{}

	for _, entry := range render.Manifest(catalog.Default().Specs()) {
		known[entry.Name] = entry
	}

	for _, tag := range redaction.RuntimeTags(cfg.Redaction.Rules()) {
		known[tag.Name] = render.EnvEntry{Name: tag.Name, Description: tag.Description, Required: tag.Required}
	}

	entries := make([]render.EnvEntry, 0, len(names))
	for _, name := range names {
		entry, ok := known[name]
		if !ok {
			entry = render.EnvEntry{Name: name, Required: true}
		}

		entries = append(entries, entry)
	}

	return entries
}

type catalogEntry struct {
	ID        string   `yaml:"id"`
	Component string   `yaml:"component"`
	Signals   []string `yaml:"signals"`
	Env       []string `yaml:"env"`
}

func newCatalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the exporters that can be selected",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var entries []catalogEntry

			for _, spec := range catalog.Default().Specs() {
				entry := catalogEntry{ID: string(spec.ID), Component: spec.Name()}

				for _, sig := range spec.Signals {
					entry.Signals = append(entry.Signals, string(sig))
				}

				for _, v := range spec.EnvVars() {
					name := v.Name
					if v.Required {
						name += " (required)"
					}

					entry.Env = append(entry.Env, name)
				}

				entries = append(entries, entry)
			}

			data, err := yaml.Marshal(map[string][]catalogEntry{"exporters": entries})
			if err != nil {
				return ewrap.Wrap(err, "encode catalog")
			}

			_, err = cmd.OutOrStdout().Write(data)

			return err
		},
	}
}

func newServeCommand(root *rootFlags) *cobra.Command {
	gen := &generateFlags{}

	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Generate, watch the config file and serve the artifacts over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			client, err := generator.Init(ctx,
				generator.WithLoaders(root.loaders(gen.overrides(cmd))...),
				generator.WithConfigWatcher(true),
			)
			if err != nil {
				return err
			}

			defer shutdownGenerator(client)

			result, err := client.Generate(ctx)
			if err != nil {
				return err
			}

			printGeneration(cmd, result)

			cfg := client.Config()

			diagCfg := cfg.Diagnostics
			if cmd.Flags().Changed("addr") {
				diagCfg.HTTPAddr = addr
			}

			server := diagnostics.NewServer(diagCfg, client, logging.FromConfig(cfg.Logging))

			err = server.Instrument(nil, nil)
			if err != nil {
				return err
			}

			err = server.Start(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "serving http://%s%s\n", diagCfg.HTTPAddr, diagnostics.ConfigPath)

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
			defer cancel()

			return server.Shutdown(shutdownCtx)
		},
	}

	gen.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides diagnostics.http_addr)")

	return cmd
}

func newSmokeCommand(root *rootFlags) *cobra.Command {
	var (
		endpoint string
		protocol string
		insecure bool
	)

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Send one span and one metric point to a running collector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides := config.StaticLoader{}

			if cmd.Flags().Changed("endpoint") {
				overrides["smoke.endpoint"] = endpoint
			}

			if cmd.Flags().Changed("protocol") {
				overrides["smoke.protocol"] = protocol
			}

			if cmd.Flags().Changed("insecure") {
				overrides["smoke.insecure"] = insecure
			}

			cfg, err := config.Load(cmd.Context(), root.loaders(overrides)...)
			if err != nil {
				return err
			}

			report, err := smoke.Send(cmd.Context(), cfg.Smoke, logging.FromConfig(cfg.Logging))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sent trace %s to %s over %s in %s\n",
				report.TraceID, report.Endpoint, report.Protocol, report.Duration)

			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "collector OTLP endpoint, host:port")
	cmd.Flags().StringVar(&protocol, "protocol", "", "grpc, http or https")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "disable transport security")

	return cmd
}
