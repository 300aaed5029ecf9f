package loader

import (
	"os"
	"runtime"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/stable-abi/errors"
	"github.com/wippyai/stable-abi/layout"
)

// Policy decides what happens to a module with incompatible items.
type Policy string

const (
	// PolicyAbort fails the whole load.
	PolicyAbort Policy = "abort"
	// PolicyRejectItems loads the module without its incompatible items.
	PolicyRejectItems Policy = "reject-items"
)

// Config configures a Loader.
type Config struct {
	Policy Policy `toml:"policy"`
	// Jobs bounds the number of concurrent checks. Zero means GOMAXPROCS.
	Jobs int `toml:"jobs"`
	// NoFastPath forces a structural walk for every item.
	NoFastPath bool `toml:"no-fast-path"`
	// Tags overrides the declared strictness of tags by key.
	Tags map[string]string `toml:"tags"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{Policy: PolicyAbort, Jobs: runtime.GOMAXPROCS(0)}
}

// LoadConfig reads a TOML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "cannot read "+path)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, errors.WithPrefix(err, path)
	}
	return cfg, nil
}

// ParseConfig decodes a TOML configuration and applies defaults.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse error")
	}

	// Defaults
	if cfg.Policy == "" {
		cfg.Policy = PolicyAbort
	}
	if cfg.Jobs <= 0 {
		cfg.Jobs = runtime.GOMAXPROCS(0)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the policy and tag strictness values.
func (c *Config) Validate() error {
	switch c.Policy {
	case PolicyAbort, PolicyRejectItems:
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Path("policy").
			Expected(string(PolicyAbort) + "|" + string(PolicyRejectItems)).
			Found(string(c.Policy)).
			Build()
	}
	_, err := c.Overrides()
	return err
}

// Overrides parses the tag table into strictness overrides.
func (c *Config) Overrides() (map[string]layout.Strictness, error) {
	if len(c.Tags) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(c.Tags))
	for k := range c.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]layout.Strictness, len(keys))
	for _, k := range keys {
		s, ok := layout.ParseStrictness(c.Tags[k])
		if !ok {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
				Path("tags", k).
				Expected("ignore|warn|reject").
				Found(c.Tags[k]).
				Build()
		}
		out[k] = s
	}
	return out, nil
}
