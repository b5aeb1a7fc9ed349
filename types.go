package pyext

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// BuildResult contains the output and status of a build operation.
//
// After a build completes, this structure provides:
//   - Success status indicating if the build completed without errors
//   - Output lines captured from the child processes (stdout/stderr)
//   - Extensions list of compiled artifacts at their final location
//   - Settings that were derived for the build
//   - Error information if the build failed
type BuildResult struct {
	BuildID             string           // Unique id of this build, also present in log events
	Success             bool             // True if build completed successfully
	Output              []string         // Lines of output from the build processes
	Extensions          []string         // Absolute paths to built extension files
	Installed           []string         // Copies placed in PackageDir, relative to ProjectDir
	Settings            *CMakeSettings   // Configuration derived for this build
	Steps               []*ProcessResult // One entry per child process that ran
	Error               error            // Error if build failed, nil otherwise
	MissingDependencies []string         // Names of build-time tools that were missing
}

// BuildConfig contains configuration for the build process.
//
// Source paths define where files are located:
//   - ProjectDir: Root of the Python project; relative paths resolve against it
//   - OutputDir: Directory the package tree is assembled in (build_lib)
//   - PackageDir: Optional directory that receives a copy of the artifact (in-place builds)
//   - BuildTemp: Base scratch directory, the target name is appended to it
//
// Python environment:
//   - PythonPath: Interpreter passed to CMake as Python3_EXECUTABLE
//   - ExtSuffix: Interpreter EXT_SUFFIX; when empty the artifact is located by pattern
//
// Build behavior:
//   - Debug: Host tool debug flag; nil means unset and defers to $DEBUG
//   - Parallel: Host tool parallelism level (0 = let CMake decide)
//   - CleanOnFailure: Remove the scratch directory when the configure step fails
type BuildConfig struct {
	// Source paths
	ProjectDir string // Root directory of the Python project
	OutputDir  string // Destination tree for compiled extensions
	PackageDir string // Optional in-place destination for the artifact
	BuildTemp  string // Base scratch directory

	// Build arguments
	BuildArgs []string          // Additional configure arguments
	Env       map[string]string // Environment variables for build

	// Python configuration
	PythonPath string // Path to the Python interpreter
	ExtSuffix  string // EXT_SUFFIX of the interpreter (".cpython-312-x86_64-linux-gnu.so")

	// Tooling
	CMakePath string // cmake executable, defaults to $CMAKE or "cmake"
	Runner    Runner // Process runner, defaults to ExecRunner

	// Build options
	Debug          *bool // Host tool debug flag, nil when unset
	Verbose        bool  // Enable verbose output
	CleanFirst     bool  // Run the clean target before building
	Parallel       int   // Number of parallel jobs (for -j)
	CleanOnFailure bool  // Remove the scratch directory after a failed configure step

	// Failure handling
	StopOnFailure bool // Stop after the first failed extension build

	// Logger receives structured build events. Nil disables logging.
	Logger *zerolog.Logger

	// LookupEnv reads the process environment. Nil means os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

func (c *BuildConfig) lookupEnv(key string) (string, bool) {
	if c.LookupEnv != nil {
		return c.LookupEnv(key)
	}
	return os.LookupEnv(key)
}

func (c *BuildConfig) runner() Runner {
	if c.Runner != nil {
		return c.Runner
	}
	return ExecRunner{}
}

func (c *BuildConfig) logger() zerolog.Logger {
	if c.Logger != nil {
		return *c.Logger
	}
	return zerolog.Nop()
}

// environ returns the extra KEY=VALUE pairs applied on top of the inherited environment.
func (c *BuildConfig) environ() []string {
	if len(c.Env) == 0 {
		return nil
	}
	env := make([]string, 0, len(c.Env))
	for key, value := range c.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}
	return env
}

// CommonBuildSteps defines the resolve -> configure -> build -> find pattern shared by builders.
//
// ResolveFunc runs before the scratch directory exists, so a configuration
// error leaves nothing on disk. The other steps receive the scratch directory
// the build runs in. Steps
// record child process output on the result; the first error stops the
// pipeline.
//
// Example usage in a builder:
//
//	return runCommonBuild(ctx, config, ext, CommonBuildSteps{
//	    ResolveFunc:   b.resolve,
//	    ConfigureFunc: b.runConfigure,
//	    BuildFunc:     b.runBuild,
//	    FindFunc:      b.findBuiltExtensions,
//	})
type CommonBuildSteps struct {
	// ResolveFunc derives the build settings (optional)
	ResolveFunc func(ctx context.Context, config *BuildConfig, ext *Extension, result *BuildResult) error

	// ConfigureFunc generates the native build files (e.g., cmake <source>)
	ConfigureFunc func(ctx context.Context, config *BuildConfig, ext *Extension, workDir string, result *BuildResult) error

	// BuildFunc compiles the extension (e.g., cmake --build .)
	BuildFunc func(ctx context.Context, config *BuildConfig, ext *Extension, workDir string, result *BuildResult) error

	// FindFunc locates the compiled extension files after build completes
	FindFunc func(config *BuildConfig, ext *Extension) ([]string, error)
}
