package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "dbt-analyzer.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "dbt-analyzer.yml"

// LoadFromDir loads a ProjectConfig from the given directory without
// environment or flag overrides. A directory without a config file yields
// the defaults. Relative paths are resolved against dir.
func LoadFromDir(dir string) (*ProjectConfig, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := FindConfigFile(dir); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var cfg ProjectConfig
	if err := Decode(k, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	cfg.ResolvePaths(dir)
	cfg.ExpandEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode unmarshals the whole koanf tree into out. Durations decode from
// strings such as "5s", and comma separated strings decode into slices.
func Decode(k *koanf.Koanf, out any) error {
	err := k.UnmarshalWithConf("", out, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           out,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return fmt.Errorf("unable to decode config: %w", err)
	}
	return nil
}

// ResolvePaths makes relative directories absolute against root.
func (c *ProjectConfig) ResolvePaths(root string) {
	c.ModelsDir = ResolvePathRelativeTo(c.ModelsDir, root)
	c.SeedsDir = ResolvePathRelativeTo(c.SeedsDir, root)
	if c.Target != nil && c.Target.Type == TargetDuckDB && c.Target.Database != ":memory:" {
		c.Target.Database = ResolvePathRelativeTo(c.Target.Database, root)
	}
}

// ExpandEnv expands ${VAR} references in the target credentials.
func (c *ProjectConfig) ExpandEnv() {
	if c.Target == nil {
		return
	}
	c.Target.DSN = ExpandEnvVars(c.Target.DSN)
	c.Target.Database = ExpandEnvVars(c.Target.Database)
}

// FindConfigFile finds the config file in the given directory.
// Returns empty string if not found.
func FindConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FindProjectRoot walks up from startDir, at most maxLevels directories, to
// the first directory holding a config file. Returns empty string if none
// is found.
func FindProjectRoot(startDir string, maxLevels int) string {
	dir := startDir
	for i := 0; i < maxLevels; i++ {
		if FindConfigFile(dir) != "" {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return ""
		}
		dir = parent
	}
	return ""
}

// ResolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func ResolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnvVars expands ${VAR} patterns with environment variable values.
// Unset variables are left as written.
func ExpandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}
