package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/rafabd1/climatesense/pkg/logger"
)

// EnvPrefix namespaces environment overrides, e.g. CLIMATESENSE_AGENT_SCHEDULE.
const EnvPrefix = "CLIMATESENSE_"

// envMappings binds the conventional variable names used by the container
// and the .env file to their config paths.
var envMappings = map[string]string{
	"GOOGLE_API_KEY":   "llm.api_key",
	"WEATHER_API_KEY":  "weather.api_key",
	"NEWS_API_KEY":     "news.api_key",
	"EMAIL_USER":       "email.user",
	"EMAIL_PASS":       "email.password",
	"EMAIL_HOST":       "email.host",
	"EMAIL_PORT":       "email.port",
	"EMAILS_TO_NOTIFY": "email.recipients",
}

// listKeys are config paths whose environment values are split into slices.
var listKeys = map[string]func(string) []string{
	"email.recipients":     splitComma,
	"agent.alert_levels":   splitComma,
	"supervisor.worker":    strings.Fields,
	"supervisor.dashboard": strings.Fields,
}

// Options controls where Load looks for configuration.
type Options struct {
	// File is an explicit config path. When empty the default lookup applies.
	File string
	// DotEnv is the .env file to load into the environment. Empty means ".env".
	DotEnv string
	// SkipDotEnv disables .env loading.
	SkipDotEnv bool
}

// Load builds the configuration from defaults, a YAML file, .env and the
// environment, in increasing precedence.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	path, data, err := findConfigFile(opts.File)
	if err != nil {
		return nil, err
	}
	if data != nil {
		if err := k.Load(rawMap(data), nil); err != nil {
			return nil, errors.Wrapf(err, "failed to apply config file %s", path)
		}
		logger.Debug("Configuration loaded", "path", path)
	}

	if !opts.SkipDotEnv {
		if err := loadDotEnv(opts.DotEnv); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        "",
		TransformFunc: transformEnv,
	}), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load environment variables")
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints on cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// findConfigFile resolves the config file. Priority: explicit path,
// ./config.yaml, ~/.climatesense/config.yaml. A missing default file is not
// an error; a missing explicit file is.
func findConfigFile(explicit string) (string, map[string]any, error) {
	if explicit != "" {
		data, err := loadFromFile(explicit)
		if err != nil {
			return "", nil, errors.Wrapf(err, "error reading config from %s", explicit)
		}
		return explicit, data, nil
	}

	candidates := []string{defaultConfigFileName}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, defaultConfigDirName, defaultConfigFileName))
	}
	for _, candidate := range candidates {
		data, err := loadFromFile(candidate)
		if err == nil {
			return candidate, data, nil
		}
		if !os.IsNotExist(errors.Cause(err)) {
			return "", nil, errors.Wrapf(err, "error reading config from %s", candidate)
		}
	}
	return "", nil, nil
}

func loadFromFile(filePath string) (map[string]any, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	data := make(map[string]any)
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config yaml %s", filePath)
	}
	return data, nil
}

func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to read %s", path)
	}
	logger.Debug("Environment file loaded", "path", path)
	return nil
}

// transformEnv maps an environment variable to a config path. Variables that
// are neither well-known nor prefixed are ignored.
func transformEnv(key, value string) (string, any) {
	path, ok := envMappings[key]
	if !ok {
		if !strings.HasPrefix(key, EnvPrefix) {
			return "", nil
		}
		path = transformEnvKey(strings.TrimPrefix(key, EnvPrefix))
		if path == "" {
			return "", nil
		}
	}
	if split, ok := listKeys[path]; ok {
		return path, split(value)
	}
	return path, value
}

// transformEnvKey converts AGENT_MEMORY_FILE into agent.memory_file.
func transformEnvKey(s string) string {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '_'
	})
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

func splitComma(s string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// rawMap adapts an already-parsed map to koanf.Provider.
type rawMap map[string]any

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, errors.New("rawMap provider does not support ReadBytes")
}

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}
