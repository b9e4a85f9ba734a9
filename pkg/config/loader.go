package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CASTNOTE_"

// sensitiveStringDecodeHook is a mapstructure decode hook that converts strings to SensitiveString
func sensitiveStringDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(SensitiveString("")) {
		return data, nil
	}

	switch v := data.(type) {
	case string:
		return SensitiveString(v), nil
	case []byte:
		return SensitiveString(v), nil
	default:
		return data, nil
	}
}

// Load builds the configuration from defaults and CASTNOTE_* environment
// variables, the latter taking precedence. A .env file in the working
// directory is applied to the process environment first, if present.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom behaves like Load but reads environment values from the given
// env file instead of ./.env. The file must exist when a path is given.
func LoadFrom(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", envFile, err)
		}
	} else {
		// Missing .env is the normal case; any other read failure
		// surfaces through the env provider below.
		_ = godotenv.Load()
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return transformEnvKey(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return unmarshalAndValidate(k)
}

// transformEnvKey converts environment variable names to koanf paths.
// For example: STREAM_IDLE_TIMEOUT -> stream.idle_timeout
func transformEnvKey(s string) string {
	s = strings.ToLower(s)

	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_'
	})
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}

	// First part is the section, the remainder is the field name.
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

// unmarshalAndValidate unmarshals the configuration and validates it.
func unmarshalAndValidate(k *koanf.Koanf) (*Config, error) {
	var config Config

	if err := k.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &config,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				sensitiveStringDecodeHook,
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func defaultLedgerDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".castnote", "jobs")
	}
	return filepath.Join(home, ".castnote", "jobs")
}
