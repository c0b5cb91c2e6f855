// Package config loads the tcsc configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tcsc-project/tcsc/pkg/errors"
)

const DefaultPath = "${HOME}/.config/tcsc/config"

// Environment variables overriding the credentials of the config file
const (
	EnvWandaUsername  = "TCSC_WANDA_USERNAME"
	EnvWandaPassword  = "TCSC_WANDA_PASSWORD"
	EnvWandaAccessKey = "TCSC_WANDA_ACCESS_KEY"
	EnvHostRootFS     = "HOST_ROOT_FS"
)

// Config represents the configuration file
type Config struct {
	// ID marks the containers created by this installation
	ID              string       `yaml:"id"`
	WandaContainers []string     `yaml:"wanda_containers"`
	WandaLabel      string       `yaml:"wanda_label"`
	HostsLabel      string       `yaml:"hosts_label"`
	DockerTimeout   int          `yaml:"docker_timeout"`  // seconds, docker and Wanda operations
	StartupTimeout  int          `yaml:"startup_timeout"` // seconds, host containers to start and stay alive
	WandaURL        string       `yaml:"wanda_url"`
	HostsImage      string       `yaml:"hosts_image"`
	HostsNetwork    string       `yaml:"hosts_network"`
	WandaAutostart  *bool        `yaml:"wanda_autostart,omitempty"` // Pointer to distinguish unset from false
	ColoredOutput   *bool        `yaml:"colored_output,omitempty"`
	LogLevel        string       `yaml:"log_level,omitempty"`
	ParallelJobs    int          `yaml:"parallel_jobs,omitempty"`
	Credentials     *Credentials `yaml:"credentials,omitempty"`
	AccessKey       string       `yaml:"access_key,omitempty"`
}

type Credentials struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func (c *Config) DockerTimeoutDuration() time.Duration {
	return time.Duration(c.DockerTimeout) * time.Second
}

func (c *Config) StartupTimeoutDuration() time.Duration {
	return time.Duration(c.StartupTimeout) * time.Second
}

func (c *Config) Autostart() bool {
	return c.WandaAutostart == nil || *c.WandaAutostart
}

func (c *Config) Colored() bool {
	return c.ColoredOutput == nil || *c.ColoredOutput
}

// Default returns the configuration written on first use
func Default() *Config {
	config := &Config{ID: uuid.NewString()}
	setConfigDefaults(config)
	return config
}

// setConfigDefaults applies default values to configuration
func setConfigDefaults(config *Config) {
	if len(config.WandaContainers) == 0 {
		config.WandaContainers = []string{"tcsc-rabbitmq", "tcsc-postgres", "tcsc-wanda"}
	}
	if config.WandaLabel == "" {
		config.WandaLabel = "com.suse.tcsc.stack=wanda"
	}
	if config.HostsLabel == "" {
		config.HostsLabel = "com.suse.tcsc.stack=host"
	}
	if config.DockerTimeout == 0 {
		config.DockerTimeout = 10
	}
	if config.DockerTimeout < 0 {
		config.DockerTimeout = -config.DockerTimeout
	}
	if config.StartupTimeout == 0 {
		config.StartupTimeout = 3
	}
	if config.WandaURL == "" {
		config.WandaURL = "http://localhost:4000"
	}
	if config.HostsImage == "" {
		config.HostsImage = "tscs_host"
	}
	if config.HostsNetwork == "" {
		config.HostsNetwork = "tcsc_default"
	}
	if config.WandaAutostart == nil {
		enabled := true
		config.WandaAutostart = &enabled
	}
	if config.ColoredOutput == nil {
		enabled := true
		config.ColoredOutput = &enabled
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.ParallelJobs == 0 {
		config.ParallelJobs = 1
	}
}

// ResolvePath expands variables and "~" in path. With HOST_ROOT_FS set
// tcsc runs inside a container and the path is taken relative to the
// mount point of the host's root file system.
func ResolvePath(path string, getenv func(string) string) string {
	path = os.Expand(path, getenv)
	if path == "~" || strings.HasPrefix(path, "~/") {
		path = getenv("HOME") + path[1:]
	}
	root := getenv(EnvHostRootFS)
	if root == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return root + path
	}
	return filepath.Join(root, getenv("PWD"), path)
}

// LoadConfigFromFile loads the configuration from a YAML file
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewConfigError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}

	setConfigDefaults(&config)
	return &config, nil
}

// Load loads the configuration file and creates it with defaults first
// when it does not exist and create is set.
func Load(filename string, create bool) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) && create {
		if err := WriteConfigFile(filename, Default()); err != nil {
			return nil, err
		}
	}

	config, err := LoadConfigFromFile(filename)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func WriteConfigFile(filename string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.NewInternalError("failed to encode configuration", err)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return errors.NewIOError("failed to create configuration directory", err).WithContext("filename", filename)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return errors.NewIOError("failed to write configuration file", err).WithContext("filename", filename)
	}
	return nil
}

// LoadDotEnv loads the given .env files into the process environment.
// Files that do not exist are skipped; set variables are not overwritten.
func LoadDotEnv(filenames ...string) error {
	var existing []string
	for _, f := range filenames {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return errors.NewConfigError(fmt.Sprintf("failed to load %s", strings.Join(existing, ", ")), err)
	}
	return nil
}

// ApplyEnv overrides the Wanda credentials with the TCSC_WANDA_*
// variables found by lookup.
func ApplyEnv(config *Config, lookup func(string) (string, bool)) {
	if key, ok := lookup(EnvWandaAccessKey); ok && key != "" {
		config.AccessKey = key
	}
	username, hasUser := lookup(EnvWandaUsername)
	password, hasPassword := lookup(EnvWandaPassword)
	if !hasUser && !hasPassword {
		return
	}
	if config.Credentials == nil {
		config.Credentials = &Credentials{URL: config.WandaURL}
	}
	if hasUser {
		config.Credentials.Username = username
	}
	if hasPassword {
		config.Credentials.Password = password
	}
}
