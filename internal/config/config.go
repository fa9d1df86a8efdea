// Package config loads sandbox runtime configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultContainerPrefix is prepended to the session id to name containers.
	DefaultContainerPrefix = "openhands-runtime-"

	// DefaultLivenessTimeout bounds the wait for the control endpoint.
	DefaultLivenessTimeout = 180 * time.Second

	// EnvPrefix is the prefix of environment overrides.
	EnvPrefix = "SANDBOXRT_"
)

// Config is the full runtime configuration.
type Config struct {
	Debug bool `yaml:"debug"`

	// VerboseRuntimeLogs tails the container log into the runtime logger.
	VerboseRuntimeLogs bool `yaml:"verbose_runtime_logs"`

	WorkspaceMountPath          string `yaml:"workspace_mount_path"`
	WorkspaceMountPathInSandbox string `yaml:"workspace_mount_path_in_sandbox"`

	Sandbox Sandbox `yaml:"sandbox"`
}

// Sandbox configures how the sandbox container is built, started and torn down.
type Sandbox struct {
	ContainerPrefix string `yaml:"container_prefix"`

	RuntimeImage   string   `yaml:"runtime_container_image"`
	BaseImage      string   `yaml:"base_container_image"`
	Platform       string   `yaml:"platform"`
	ExtraDeps      string   `yaml:"runtime_extra_deps"`
	ForceRebuild   bool     `yaml:"force_rebuild_runtime"`
	ExtraBuildArgs []string `yaml:"runtime_extra_build_args"`

	UseHostNetwork bool   `yaml:"use_host_network"`
	BindAddress    string `yaml:"runtime_binding_address"`

	// LocalRuntimeURL is the scheme+host the control port is appended to.
	// Empty means detect from DOCKER_HOST_ADDR, the platform and the bridge network.
	LocalRuntimeURL string `yaml:"local_runtime_url"`

	KeepRuntimeAlive bool `yaml:"keep_runtime_alive"`
	RmAllContainers  bool `yaml:"rm_all_containers"`

	EnableGPU    bool `yaml:"enable_gpu"`
	EnableEditor bool `yaml:"enable_editor"`

	StartupEnv map[string]string `yaml:"runtime_startup_env_vars"`

	LivenessTimeout time.Duration `yaml:"liveness_timeout"`

	WorkingDir string `yaml:"working_dir"`

	// ServerCommand starts the control server; "{port}" is replaced by the control port.
	ServerCommand []string `yaml:"server_command"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Sandbox: Sandbox{
			ContainerPrefix: DefaultContainerPrefix,
			BindAddress:     "127.0.0.1",
			EnableEditor:    true,
			StartupEnv:      map[string]string{},
			LivenessTimeout: DefaultLivenessTimeout,
			WorkingDir:      "/openhands/code/",
			ServerCommand:   []string{"/openhands/bin/action-execution-server", "{port}"},
		},
	}
}

// Load reads a YAML file over the defaults and then applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects configurations the runtime cannot act on.
func (c *Config) Validate() error {
	var errs []error

	if c.Sandbox.ContainerPrefix == "" {
		errs = append(errs, errors.New("sandbox.container_prefix must not be empty"))
	}
	if c.Sandbox.LivenessTimeout <= 0 {
		errs = append(errs, errors.New("sandbox.liveness_timeout must be positive"))
	}
	if len(c.Sandbox.ServerCommand) == 0 {
		errs = append(errs, errors.New("sandbox.server_command must not be empty"))
	}

	return errors.Join(errs...)
}

// applyEnv overlays SANDBOXRT_* variables and DOCKER_HOST_ADDR.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	s := &c.Sandbox

	strs := map[string]*string{
		"RUNTIME_IMAGE":          &s.RuntimeImage,
		"BASE_IMAGE":             &s.BaseImage,
		"PLATFORM":               &s.Platform,
		"CONTAINER_PREFIX":       &s.ContainerPrefix,
		"BIND_ADDRESS":           &s.BindAddress,
		"LOCAL_RUNTIME_URL":      &s.LocalRuntimeURL,
		"WORKSPACE_MOUNT_PATH":   &c.WorkspaceMountPath,
		"WORKSPACE_SANDBOX_PATH": &c.WorkspaceMountPathInSandbox,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"DEBUG":             &c.Debug,
		"DEBUG_RUNTIME":     &c.VerboseRuntimeLogs,
		"USE_HOST_NETWORK":  &s.UseHostNetwork,
		"KEEP_ALIVE":        &s.KeepRuntimeAlive,
		"RM_ALL_CONTAINERS": &s.RmAllContainers,
		"ENABLE_GPU":        &s.EnableGPU,
		"ENABLE_EDITOR":     &s.EnableEditor,
		"FORCE_REBUILD":     &s.ForceRebuild,
	}
	for key, dst := range bools {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
	}

	if v, ok := lookup(EnvPrefix + "LIVENESS_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sLIVENESS_TIMEOUT: %w", EnvPrefix, err)
		}
		s.LivenessTimeout = d
	}

	if addr, ok := lookup("DOCKER_HOST_ADDR"); ok && addr != "" {
		s.LocalRuntimeURL = "http://" + addr
	}

	return nil
}

// ContainerName maps a session id to its container name.
func (c *Config) ContainerName(sessionID string) string {
	return c.Sandbox.ContainerPrefix + sessionID
}
