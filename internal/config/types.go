// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
)

const (
	// ContainerEnginePodman uses Podman as the container runtime.
	ContainerEnginePodman ContainerEngine = "podman"
	// ContainerEngineDocker uses Docker as the container runtime.
	ContainerEngineDocker ContainerEngine = "docker"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidSyncInterval is returned when the sync interval is not positive.
	ErrInvalidSyncInterval = errors.New("invalid sync interval")
)

type (
	// ContainerEngine specifies which container runtime to use.
	ContainerEngine string

	// ColorScheme specifies the terminal color scheme for rendered output.
	ColorScheme string

	// ContainerConfig holds settings for the container backend.
	ContainerConfig struct {
		// Image is the tag of the learning image.
		Image string `mapstructure:"image"`
		// Name is the container name; one Running container per name per host.
		Name string `mapstructure:"name"`
		// Dockerfile overrides the built-in Dockerfile when set.
		Dockerfile string `mapstructure:"dockerfile"`
		// Workdir is the working directory inside the container.
		Workdir string `mapstructure:"workdir"`
	}

	// LocalEnvConfig holds settings for the micromamba-managed local environment.
	LocalEnvConfig struct {
		// EnvName is the micromamba environment name.
		EnvName string `mapstructure:"env_name"`
		// RootDir is where micromamba and its environments are installed.
		// Empty means <project root>/.mamba.
		RootDir string `mapstructure:"root_dir"`
		// EnvironmentFile is the environment.yml the environment is created from.
		EnvironmentFile string `mapstructure:"environment_file"`
	}

	// SyncConfig holds the file synchronization manifest settings.
	SyncConfig struct {
		// IntervalSeconds is the background sync period in copy mode.
		IntervalSeconds int `mapstructure:"interval_seconds"`
		// Include are doublestar patterns selecting files to push.
		Include []string `mapstructure:"include"`
		// Exclude are doublestar patterns that always win over Include.
		Exclude []string `mapstructure:"exclude"`
	}

	// UIConfig holds user interface settings.
	UIConfig struct {
		ColorScheme ColorScheme `mapstructure:"color_scheme"`
		Verbose     bool        `mapstructure:"verbose"`
	}

	// Config is the root configuration for pylab.
	Config struct {
		ContainerEngine ContainerEngine `mapstructure:"container_engine"`
		// DefaultBackend is the backend used when neither flags nor conflicts
		// force a choice: "host", "localenv", or "container". Empty means
		// let the selector decide.
		DefaultBackend string          `mapstructure:"default_backend"`
		Container      ContainerConfig `mapstructure:"container"`
		LocalEnv       LocalEnvConfig  `mapstructure:"local_env"`
		Sync           SyncConfig      `mapstructure:"sync"`
		UI             UIConfig        `mapstructure:"ui"`
	}
)

// Validate checks a ContainerEngine value.
func (e ContainerEngine) Validate() error {
	switch e {
	case ContainerEnginePodman, ContainerEngineDocker, "":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidContainerEngine, string(e))
	}
}

// Validate checks a ColorScheme value.
func (s ColorScheme) Validate() error {
	switch s {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight, "":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidColorScheme, string(s))
	}
}

// Validate checks constraints that the CUE schema cannot express.
func (c *Config) Validate() error {
	if err := c.ContainerEngine.Validate(); err != nil {
		return err
	}
	if err := c.UI.ColorScheme.Validate(); err != nil {
		return err
	}
	if c.Sync.IntervalSeconds <= 0 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidSyncInterval, c.Sync.IntervalSeconds)
	}
	return nil
}

// DefaultConfig returns the built-in configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		ContainerEngine: ContainerEngineDocker,
		Container: ContainerConfig{
			Image:   "pylab-learning",
			Name:    "pylab-env",
			Workdir: "/workspace",
		},
		LocalEnv: LocalEnvConfig{
			EnvName:         "pylab-learning",
			EnvironmentFile: "environment.yml",
		},
		Sync: SyncConfig{
			IntervalSeconds: 2,
			Include:         []string{"**"},
			Exclude: []string{
				".git/**",
				"**/__pycache__/**",
				"**/*.pyc",
				".mamba/**",
				".venv/**",
			},
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}
