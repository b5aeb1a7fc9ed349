// Package config loads the pyext.yaml project manifest
package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"gopkg.in/yaml.v3"

	"github.com/contriboss/python-extension-go/exports"
)

var dottedNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// ParallelAuto requests one build job per logical CPU.
const ParallelAuto Parallelism = -1

// Parallelism is the host-tool parallelism level: 0 leaves it to CMake,
// ParallelAuto uses the logical CPU count, any other value is a job count.
type Parallelism int

// UnmarshalYAML accepts an integer or the string "auto".
func (p *Parallelism) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseParallelism(value.Value)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalYAML renders ParallelAuto as "auto".
func (p Parallelism) MarshalYAML() (interface{}, error) {
	if p == ParallelAuto {
		return "auto", nil
	}
	return int(p), nil
}

// ParseParallelism parses "auto", "" or a non-negative integer.
func ParseParallelism(raw string) (Parallelism, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "":
		return 0, nil
	case "auto":
		return ParallelAuto, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidParallelism, raw)
	}
	return Parallelism(n), nil
}

// Jobs resolves the parallelism to a job count.
func (p Parallelism) Jobs() (int, error) {
	if p != ParallelAuto {
		return int(p), nil
	}
	n, err := cpu.Counts(true)
	if err != nil {
		return 0, fmt.Errorf("failed to count CPUs: %w", err)
	}
	return n, nil
}

// ExportSpec declares one submodule of the hosting package.
type ExportSpec struct {
	Name string `yaml:"name"`
	Doc  string `yaml:"doc,omitempty"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// Config is the project manifest.
type Config struct {
	// Extension target
	Name      string `yaml:"name"`
	SourceDir string `yaml:"source_dir"`

	// Hosting package
	Package    string       `yaml:"package"`
	PackageDir string       `yaml:"package_dir"`
	Exports    []ExportSpec `yaml:"exports"`

	// Build layout
	OutputDir string `yaml:"output_dir"`
	BuildTemp string `yaml:"build_temp"`
	Inplace   bool   `yaml:"inplace"`

	// Tooling
	Python string `yaml:"python"`
	CMake  string `yaml:"cmake"`

	// Build options
	Parallel       Parallelism `yaml:"parallel"`
	Debug          *bool       `yaml:"debug"`
	CleanOnFailure bool        `yaml:"clean_on_failure"`
	CMakeArgs      []string    `yaml:"cmake_args"`

	Log LogConfig `yaml:"log"`

	// Dir is the directory of the manifest; relative paths resolve against it.
	Dir string `yaml:"-"`
}

// DefaultConfig returns the configuration used when no manifest sets a field.
func DefaultConfig() *Config {
	return &Config{
		SourceDir: ".",
		OutputDir: "build/lib",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if !dottedNamePattern.MatchString(c.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, c.Name)
	}

	if c.Package != "" && !dottedNamePattern.MatchString(c.Package) {
		return fmt.Errorf("%w: %q", ErrInvalidPackage, c.Package)
	}

	if c.Parallel < ParallelAuto {
		return fmt.Errorf("%w: %d", ErrInvalidParallelism, c.Parallel)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil || c.Log.Level == "" {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	}

	seen := make(map[string]struct{}, len(c.Exports))
	for _, spec := range c.Exports {
		if err := exports.ValidateName(spec.Name); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidExport, err)
		}
		if _, dup := seen[spec.Name]; dup {
			return fmt.Errorf("%w: %q declared twice", ErrInvalidExport, spec.Name)
		}
		seen[spec.Name] = struct{}{}
	}

	if len(c.Exports) > 0 && c.Package == "" {
		return fmt.Errorf("%w: exports declared without a package", ErrInvalidPackage)
	}

	return nil
}

// Path resolves a manifest-relative path. Empty stays empty.
func (c *Config) Path(path string) string {
	if path == "" || filepath.IsAbs(path) || c.Dir == "" {
		return path
	}
	return filepath.Join(c.Dir, path)
}

// ExportPackage builds the explicit export list declared in the manifest.
// Every submodule resolves to its file in the package directory.
func (c *Config) ExportPackage() (*exports.Package, error) {
	pkg := exports.New(c.Package)
	dir := c.PackageDirPath()

	for _, spec := range c.Exports {
		if err := pkg.Register(spec.Name, spec.Doc, exports.FileFactory(dir, spec.Name)); err != nil {
			return nil, err
		}
	}
	return pkg, nil
}

// PackageDirPath returns the resolved package directory, defaulting to the
// package name with dots as separators.
func (c *Config) PackageDirPath() string {
	dir := c.PackageDir
	if dir == "" && c.Package != "" {
		dir = filepath.FromSlash(strings.ReplaceAll(c.Package, ".", "/"))
	}
	return c.Path(dir)
}
