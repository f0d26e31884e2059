package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/exp/slices"
)

const (
	// DefaultURL is the brain server used when none is configured.
	DefaultURL = "https://api.strideml.ai"

	dotConfigFile = ".simlink"
	dotBrainsFile = ".brains"
	envPrefix     = "SIMLINK"

	defaultSection = "default"
)

// VersionLatest selects the most recent brain version for prediction.
const VersionLatest = 0

// ConfigurationError reports an invalid or inconsistent configuration. It
// surfaces before any session starts.
type ConfigurationError struct {
	Msg   string
	Cause error
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Msg)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

// Config carries everything needed to reach a brain. Values are resolved in
// precedence order: environment variables, the home profile file, the local
// profile file, the local .brains file, then command-line flags applied by
// the caller.
type Config struct {
	AccessKey string
	Username  string
	URL       string
	Proxy     string
	Brain     string
	// Predict selects prediction mode against BrainVersion
	Predict      bool
	BrainVersion int
	Profile      string
	Verbose      bool
}

// Load resolves the configuration from the environment and config files.
// An empty profile selects the default section.
func Load(profile string) (*Config, error) {
	// container deployments ship settings in a .env file
	godotenv.Load()

	cfg := &Config{URL: DefaultURL, Profile: profile}
	cfg.applyEnv()

	if home, err := os.UserHomeDir(); err == nil {
		if err := cfg.applyFile(home, profile); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyFile(".", profile); err != nil {
		return nil, err
	}
	if err := cfg.applyBrains("."); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	env := viper.New()
	env.SetEnvPrefix(envPrefix)
	env.AutomaticEnv()

	if v := env.GetString("accesskey"); v != "" {
		c.AccessKey = v
	}
	if v := env.GetString("username"); v != "" {
		c.Username = v
	}
	if v := env.GetString("url"); v != "" {
		c.URL = v
	}
	// set in hosted containers
	if v := env.GetString("train_brain"); v != "" {
		c.Brain = v
	}

	for _, key := range []string{"all_proxy", "http_proxy", "https_proxy"} {
		if v := os.Getenv(key); v != "" {
			c.Proxy = v
		}
	}
}

// applyFile layers one .simlink ini file, reading the default section first
// and the named profile section over it.
func (c *Config) applyFile(dir, profile string) error {
	path := filepath.Join(dir, dotConfigFile)
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return &ConfigurationError{Msg: fmt.Sprintf("reading %s", path), Cause: err}
	}

	c.applySection(v, defaultSection)
	if profile != "" {
		c.applySection(v, profile)
	}
	return nil
}

func (c *Config) applySection(v *viper.Viper, section string) {
	if s := v.GetString(section + ".accesskey"); s != "" {
		c.AccessKey = s
	}
	if s := v.GetString(section + ".username"); s != "" {
		c.Username = s
	}
	if s := v.GetString(section + ".url"); s != "" {
		c.URL = s
	}
	if s := v.GetString(section + ".proxy"); s != "" {
		c.Proxy = s
	}
}

type brainsFile struct {
	Brains []struct {
		Name    string `json:"name"`
		Default bool   `json:"default"`
	} `json:"brains"`
}

// applyBrains reads the local .brains file and selects its default brain
// when no brain is configured yet.
func (c *Config) applyBrains(dir string) error {
	path := filepath.Join(dir, dotBrainsFile)
	bs, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &ConfigurationError{Msg: fmt.Sprintf("reading %s", path), Cause: err}
	}

	var brains brainsFile
	if err := json.Unmarshal(bs, &brains); err != nil {
		return &ConfigurationError{Msg: fmt.Sprintf("parsing %s", path), Cause: err}
	}
	if c.Brain != "" {
		return nil
	}
	for _, b := range brains.Brains {
		if b.Default {
			c.Brain = b.Name
			return nil
		}
	}
	if len(brains.Brains) > 0 {
		c.Brain = brains.Brains[0].Name
	}
	return nil
}

// ParsePredictVersion parses a --predict value: a positive version number or
// "latest" for the most recent one.
func ParsePredictVersion(s string) (int, error) {
	if s == "" || s == "latest" {
		return VersionLatest, nil
	}
	version, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ConfigurationError{Msg: fmt.Sprintf("invalid predict version %q", s), Cause: err}
	}
	if version < 0 {
		return 0, &ConfigurationError{Msg: fmt.Sprintf("predict version must not be negative, got %d", version)}
	}
	return version, nil
}

// Validate checks the configuration before any session starts.
func (c *Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return &ConfigurationError{Msg: fmt.Sprintf("invalid server URL %q", c.URL), Cause: err}
	}
	if !slices.Contains([]string{"http", "https", "ws", "wss"}, u.Scheme) {
		return &ConfigurationError{Msg: fmt.Sprintf("unsupported URL scheme %q", u.Scheme)}
	}
	if c.Brain == "" {
		return &ConfigurationError{Msg: "no brain configured"}
	}
	if c.BrainVersion < 0 {
		return &ConfigurationError{Msg: fmt.Sprintf("brain version must not be negative, got %d", c.BrainVersion)}
	}
	return nil
}
