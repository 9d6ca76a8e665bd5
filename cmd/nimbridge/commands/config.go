package commands

import (
	"fmt"
	"strings"

	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/nimbridge/internal/app"
)

const envPrefix = "NIMBRIDGE_"

// loadConfig assembles the configuration from, in ascending precedence,
// built-in defaults, an optional TOML file, NIMBRIDGE_-prefixed environment
// variables and command line flags. The merged result is validated before it
// is returned.
func loadConfig(path string, cmd *cli.Command, environ func() []string) (app.Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(app.Defaults(), "."), nil); err != nil {
		return app.Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return app.Config{}, fmt.Errorf("failed to load config file %q: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		EnvironFunc:   environ,
		TransformFunc: transformEnvVar,
	}), nil); err != nil {
		return app.Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	applyFlagOverrides(k, cmd)

	var cfg app.Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return app.Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return app.Config{}, err
	}

	return cfg, nil
}

// transformEnvVar maps NIMBRIDGE_SECTION__KEY_NAME onto section.key_name.
// Double underscores delimit nesting so single underscores survive inside
// key names, e.g. NIMBRIDGE_BACKEND__BASE_URL becomes backend.base_url.
func transformEnvVar(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	return strings.ReplaceAll(key, "__", "."), value
}

// applyFlagOverrides copies explicitly set command line flags into the
// configuration, taking precedence over every other source.
func applyFlagOverrides(k *koanf.Koanf, cmd *cli.Command) {
	if cmd.IsSet("listen") {
		_ = k.Set("listen", cmd.String("listen"))
	}
}
