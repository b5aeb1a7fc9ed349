package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	pyext "github.com/contriboss/python-extension-go"
)

// DefaultFileNames are the manifest names AutoLoad looks for, in order.
var DefaultFileNames = []string{"pyext.yaml", "pyext.yml"}

// Loader handles manifest loading from files and the environment
type Loader struct {
	// Environment variable prefix
	envPrefix string

	// Environment lookup, os.LookupEnv by default
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a new manifest loader
func NewLoader() *Loader {
	return &Loader{
		envPrefix: "PYEXT",
		lookupEnv: os.LookupEnv,
	}
}

// SetEnvPrefix sets the environment variable prefix
func (l *Loader) SetEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// SetLookupEnv replaces the environment lookup
func (l *Loader) SetLookupEnv(lookup func(string) (string, bool)) *Loader {
	l.lookupEnv = lookup
	return l
}

// Load loads the manifest from filename, applies environment overrides and validates it
func (l *Loader) Load(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, filename)
		}
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer f.Close()

	config, err := l.LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from file %s: %w", filename, err)
	}

	dir, err := filepath.Abs(filepath.Dir(filename))
	if err != nil {
		return nil, err
	}
	config.Dir = dir

	return config, nil
}

// LoadFromReader parses a YAML manifest, applies environment overrides and validates it
func (l *Loader) LoadFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration data: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParseError, err)
	}

	if err := l.loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// AutoLoad looks for a default manifest name in dir and loads it
func (l *Loader) AutoLoad(dir string) (*Config, error) {
	for _, name := range DefaultFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return l.Load(path)
		}
	}
	return nil, fmt.Errorf("%w: none of %s in %s", ErrConfigFileNotFound, strings.Join(DefaultFileNames, ", "), dir)
}

// loadFromEnv applies <PREFIX>_* overrides
func (l *Loader) loadFromEnv(config *Config) error {
	strField := func(key string, dst *string) {
		if value, ok := l.lookup(key); ok && value != "" {
			*dst = value
		}
	}

	strField("NAME", &config.Name)
	strField("SOURCE_DIR", &config.SourceDir)
	strField("OUTPUT_DIR", &config.OutputDir)
	strField("BUILD_TEMP", &config.BuildTemp)
	strField("PYTHON", &config.Python)
	strField("CMAKE", &config.CMake)
	strField("LOG_LEVEL", &config.Log.Level)
	strField("LOG_FORMAT", &config.Log.Format)

	if value, ok := l.lookup("PARALLEL"); ok && value != "" {
		parallel, err := ParseParallelism(value)
		if err != nil {
			return fmt.Errorf("%w: %s_PARALLEL: %v", ErrEnvironmentVarError, l.envPrefix, err)
		}
		config.Parallel = parallel
	}

	if value, ok := l.lookup("INPLACE"); ok && value != "" {
		inplace, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s_INPLACE: %v", ErrEnvironmentVarError, l.envPrefix, err)
		}
		config.Inplace = inplace
	}

	return nil
}

func (l *Loader) lookup(key string) (string, bool) {
	return l.lookupEnv(l.envPrefix + "_" + key)
}

// Extension declares the manifest's build target.
func (c *Config) Extension() (*pyext.Extension, error) {
	return pyext.NewExtension(c.Name, c.Path(c.SourceDir))
}

// BuildConfig translates the manifest into a build configuration.
func (c *Config) BuildConfig(logger *zerolog.Logger) (*pyext.BuildConfig, error) {
	jobs, err := c.Parallel.Jobs()
	if err != nil {
		return nil, err
	}

	projectDir := c.Dir
	if projectDir == "" {
		if projectDir, err = os.Getwd(); err != nil {
			return nil, err
		}
	}

	build := &pyext.BuildConfig{
		ProjectDir:     projectDir,
		OutputDir:      c.OutputDir,
		BuildTemp:      c.BuildTemp,
		BuildArgs:      append([]string{}, c.CMakeArgs...),
		PythonPath:     c.Python,
		CMakePath:      c.CMake,
		Debug:          c.Debug,
		Parallel:       jobs,
		CleanOnFailure: c.CleanOnFailure,
		StopOnFailure:  true,
		Logger:         logger,
	}

	if c.Inplace {
		build.PackageDir = c.PackageDirPath()
		if build.PackageDir == "" {
			build.PackageDir = projectDir
		}
	}

	return build, nil
}
