package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyp3rd/ewrap"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/hyp3rd/otelsynth/internal/constants"
)

// EnvPrefix prefixes every environment override, e.g. OTELSYNTH_GENERATOR__EXPORTERS.
const EnvPrefix = "OTELSYNTH_"

// Loader returns a partial configuration tree keyed like the YAML file.
// A nil tree means the source had nothing to contribute.
type Loader interface {
	Load(ctx context.Context) (map[string]any, error)
}

// Load merges the loaders in order over DefaultConfig, later sources winning,
// then decodes and validates the result. Unknown keys are rejected.
func Load(ctx context.Context, loaders ...Loader) (Config, error) {
	tree := map[string]any{}

	for _, loader := range loaders {
		if loader == nil {
			continue
		}

		values, err := loader.Load(ctx)
		if err != nil {
			return Config{}, err
		}

		merge(tree, values)
	}

	cfg := DefaultConfig()

	err := decode(&cfg, tree)
	if err != nil {
		return Config{}, err
	}

	err = Validate(cfg)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// merge copies src into dst. Nested sections merge key by key; any other
// value, lists included, replaces what dst held.
func merge(dst, src map[string]any) {
	for key, value := range src {
		section, ok := value.(map[string]any)
		if !ok {
			dst[key] = value

			continue
		}

		existing, ok := dst[key].(map[string]any)
		if !ok {
			existing = map[string]any{}
			dst[key] = existing
		}

		merge(existing, section)
	}
}

func decode(target *Config, tree map[string]any) error {
	if len(tree) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		Result:           target,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return ewrap.Wrap(err, "create decoder")
	}

	err = decoder.Decode(tree)
	if err != nil {
		return ewrap.Wrap(err, "decode config")
	}

	return nil
}

// FileLoader reads the YAML config file. A missing or empty file contributes nothing.
type FileLoader struct {
	Path string
	FS   fs.FS
}

// PathOrDefault returns Path, or the default config file name when unset.
func (fl FileLoader) PathOrDefault() string {
	if fl.Path == "" {
		return constants.DefaultConfigFile
	}

	return fl.Path
}

// Load implements Loader.
func (fl FileLoader) Load(_ context.Context) (map[string]any, error) {
	path := filepath.Clean(fl.PathOrDefault())

	var (
		data []byte
		err  error
	)

	if fl.FS != nil {
		data, err = fs.ReadFile(fl.FS, path)
	} else {
		data, err = os.ReadFile(path)
	}

	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, ewrap.Wrapf(err, "read config file %q", path)
	}

	var tree map[string]any

	err = yaml.Unmarshal(data, &tree)
	if err != nil {
		return nil, ewrap.Wrapf(err, "parse config file %q", path)
	}

	return tree, nil
}

// envBindings lists the settings that can be overridden from the environment.
// Lists are comma separated.
var envBindings = []struct {
	path string
	list bool
}{
	{path: "generator.name"},
	{path: "generator.output_dir"},
	{path: "generator.env_file"},
	{path: "generator.exporters", list: true},
	{path: "generator.sampling_percentage"},
	{path: "generator.health_check_endpoint"},
	{path: "redaction.delete", list: true},
	{path: "logging.level"},
	{path: "logging.format"},
	{path: "logging.adapter"},
	{path: "logging.sample_ratio"},
	{path: "diagnostics.enabled"},
	{path: "diagnostics.http_addr"},
	{path: "diagnostics.auth_token"},
	{path: "smoke.service_name"},
	{path: "smoke.protocol"},
	{path: "smoke.endpoint"},
	{path: "smoke.insecure"},
	{path: "smoke.timeout"},
	{path: "smoke.compression"},
}

// EnvLoader reads overrides such as OTELSYNTH_SMOKE__ENDPOINT, where a double
// underscore separates the section from the key. Empty values are ignored.
type EnvLoader struct {
	// Lookup replaces os.LookupEnv.
	Lookup func(string) (string, bool)
}

// EnvKey returns the variable overriding the dotted config path.
func EnvKey(path string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(path, ".", "__"))
}

// Load implements Loader.
func (el EnvLoader) Load(_ context.Context) (map[string]any, error) {
	lookup := el.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	tree := map[string]any{}

	for _, binding := range envBindings {
		raw, ok := lookup(EnvKey(binding.path))
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}

		var value any = raw
		if binding.list {
			value = splitList(raw)
		}

		setPath(tree, binding.path, value)
	}

	if len(tree) == 0 {
		return nil, nil
	}

	return tree, nil
}

// StaticLoader layers a fixed set of values, typically parsed command-line
// flags, keyed by dotted path such as "generator.output_dir".
type StaticLoader map[string]any

// Load implements Loader.
func (sl StaticLoader) Load(_ context.Context) (map[string]any, error) {
	if len(sl) == 0 {
		return nil, nil
	}

	tree := map[string]any{}
	for path, value := range sl {
		setPath(tree, path, value)
	}

	return tree, nil
}

func splitList(raw string) []string {
	var out []string

	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

func setPath(tree map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	cursor := tree

	for _, segment := range segments[:len(segments)-1] {
		next, ok := cursor[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			cursor[segment] = next
		}

		cursor = next
	}

	cursor[segments[len(segments)-1]] = value
}
