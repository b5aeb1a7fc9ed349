package pyext

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
)

// CMake constants
const (
	cmakeProgram = "cmake"
	cmakeBuilder = "CMake"

	// PolicyVersionMinimum is pinned as CMAKE_POLICY_VERSION_MINIMUM so that
	// projects declaring an ancient cmake_minimum_required still configure.
	PolicyVersionMinimum = "3.5"

	BuildTypeDebug   = "Debug"
	BuildTypeRelease = "Release"
)

// Environment variables consulted by the CMake builder
const (
	EnvDebug              = "DEBUG"
	EnvCMakeArgs          = "CMAKE_ARGS"
	EnvCMakeParallelLevel = "CMAKE_BUILD_PARALLEL_LEVEL"
	EnvCMake              = "CMAKE"
)

// ErrInvalidEnvironment is returned when an environment variable cannot be parsed.
var ErrInvalidEnvironment = errors.New("invalid build environment")

// ErrArtifactNotFound is returned when the build succeeded but produced no artifact.
var ErrArtifactNotFound = errors.New("extension artifact not found")

// CMakeSettings is the typed build configuration handed to CMake.
type CMakeSettings struct {
	BuildType              string   // Debug or Release
	LibraryOutputDirectory string   // Always ends with a path separator
	PythonExecutable       string   // Interpreter the bindings are built for
	PythonBindings         bool     // Enables the project's Python binding target
	PolicyVersionMinimum   string   // CMAKE_POLICY_VERSION_MINIMUM
	ExtraArgs              []string // Tokens from CMAKE_ARGS
	UserArgs               []string // BuildConfig.BuildArgs
	BuildArgs              []string // Arguments for the build step (e.g. -j8)
}

// ConfigureArgs renders the arguments that follow the source directory in the
// configure step.
func (s *CMakeSettings) ConfigureArgs() []string {
	bindings := "off"
	if s.PythonBindings {
		bindings = "on"
	}

	args := []string{
		fmt.Sprintf("-D CMAKE_LIBRARY_OUTPUT_DIRECTORY=%s", s.LibraryOutputDirectory),
		fmt.Sprintf("-D Python3_EXECUTABLE=%s", s.PythonExecutable),
		fmt.Sprintf("-D CMAKE_BUILD_TYPE=%s", s.BuildType),
		fmt.Sprintf("-D PYTHON_BINDINGS=%s", bindings),
		fmt.Sprintf("-DCMAKE_POLICY_VERSION_MINIMUM=%s", s.PolicyVersionMinimum),
	}
	args = append(args, s.ExtraArgs...)
	return append(args, s.UserArgs...)
}

// BuildToolArgs renders the arguments of the build step.
func (s *CMakeSettings) BuildToolArgs() []string {
	return append([]string{"--build", "."}, s.BuildArgs...)
}

// ResolveSettings derives the CMake configuration for one extension build.
//
// The build type is Debug when the host debug flag is set to true, or when it
// is unset and $DEBUG is a non-zero integer. $CMAKE_ARGS is split on spaces
// with empty tokens dropped. A -j flag is added for config.Parallel unless
// $CMAKE_BUILD_PARALLEL_LEVEL is present, in which case CMake reads it itself.
func ResolveSettings(config *BuildConfig, ext *Extension) (*CMakeSettings, error) {
	outputDir, err := ExtensionOutputDir(config, ext)
	if err != nil {
		return nil, err
	}

	debug, err := resolveDebug(config)
	if err != nil {
		return nil, err
	}

	buildType := BuildTypeRelease
	if debug {
		buildType = BuildTypeDebug
	}

	settings := &CMakeSettings{
		BuildType:              buildType,
		LibraryOutputDirectory: outputDir + string(os.PathSeparator),
		PythonExecutable:       config.PythonPath,
		PythonBindings:         true,
		PolicyVersionMinimum:   PolicyVersionMinimum,
		UserArgs:               append([]string{}, config.BuildArgs...),
	}

	if raw, ok := config.lookupEnv(EnvCMakeArgs); ok {
		settings.ExtraArgs = splitArgs(raw)
	}

	if _, ok := config.lookupEnv(EnvCMakeParallelLevel); !ok && config.Parallel > 0 {
		settings.BuildArgs = append(settings.BuildArgs, fmt.Sprintf("-j%d", config.Parallel))
	}

	return settings, nil
}

func resolveDebug(config *BuildConfig) (bool, error) {
	if config.Debug != nil {
		return *config.Debug, nil
	}

	raw, ok := config.lookupEnv(EnvDebug)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return false, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidEnvironment, EnvDebug, raw)
	}
	return n != 0, nil
}

func splitArgs(raw string) []string {
	var args []string
	for _, item := range strings.Split(raw, " ") {
		if item != "" {
			args = append(args, item)
		}
	}
	return args
}

// CmakeBuilder handles CMake-based native extensions
type CmakeBuilder struct{}

// Name returns the builder name
func (b *CmakeBuilder) Name() string {
	return cmakeBuilder
}

// RequiredTools returns the tools needed for CMake builds
func (b *CmakeBuilder) RequiredTools() []ToolRequirement {
	return []ToolRequirement{
		{
			Name:    cmakeProgram,
			Purpose: "CMake build system",
		},
		{
			Name:         "c++",
			Alternatives: []string{"g++", "clang++", "cl"},
			Purpose:      "C++ compiler for the native extension",
		},
		{
			Name:     "ninja",
			Optional: true,
			Purpose:  "Ninja generator (faster than make)",
		},
	}
}

// CheckTools verifies that cmake and a C++ compiler are available
func (b *CmakeBuilder) CheckTools() error {
	return CheckRequiredTools(b.RequiredTools())
}

// CanBuild checks if this builder can handle the marker file
func (b *CmakeBuilder) CanBuild(markerFile string) bool {
	return MatchesPattern(filepath.Base(markerFile), `^CMakeLists\.txt$`)
}

// Build compiles the extension using the cmake configure -> cmake --build workflow
func (b *CmakeBuilder) Build(ctx context.Context, config *BuildConfig, ext *Extension) (*BuildResult, error) {
	result, err := runCommonBuild(ctx, config, ext, CommonBuildSteps{
		ResolveFunc:   b.resolve,
		ConfigureFunc: b.runConfigure,
		BuildFunc:     b.runBuild,
		FindFunc:      b.findBuiltExtensions,
	})
	if err != nil {
		return result, err
	}

	if config.PackageDir != "" {
		installed, err := InstallArtifacts(config, result.Extensions)
		if err != nil {
			result.Success = false
			result.Error = err
			return result, err
		}
		result.Installed = installed
	}

	return result, nil
}

// Clean removes build artifacts by running the clean target in the scratch directory
func (b *CmakeBuilder) Clean(ctx context.Context, config *BuildConfig, ext *Extension) error {
	workDir := ScratchDir(config, ext)
	if _, err := os.Stat(filepath.Join(workDir, "CMakeCache.txt")); os.IsNotExist(err) {
		return nil // Never configured, nothing to clean
	}

	proc, err := config.runner().Run(ctx, Command{
		Path: b.program(config),
		Args: []string{"--build", ".", "--target", "clean"},
		Dir:  workDir,
		Env:  config.environ(),
	})
	if err != nil {
		return err
	}
	if !proc.Success() {
		return BuildError("CMake clean", proc.Output, fmt.Errorf("exit status %d", proc.ExitCode))
	}
	return nil
}

// CleanAll removes the scratch directory of the extension entirely
func (b *CmakeBuilder) CleanAll(config *BuildConfig, ext *Extension) error {
	return os.RemoveAll(ScratchDir(config, ext))
}

// resolve derives the CMake settings before the workspace is created
func (b *CmakeBuilder) resolve(ctx context.Context, config *BuildConfig, ext *Extension, result *BuildResult) error {
	settings, err := ResolveSettings(config, ext)
	if err != nil {
		return err
	}
	result.Settings = settings

	zerolog.Ctx(ctx).Debug().
		Str("build_type", settings.BuildType).
		Str("output_dir", settings.LibraryOutputDirectory).
		Strs("extra_args", settings.ExtraArgs).
		Msg("resolved cmake settings")
	return nil
}

// runConfigure runs cmake <source> <args...>
func (b *CmakeBuilder) runConfigure(ctx context.Context, config *BuildConfig, ext *Extension, workDir string, result *BuildResult) error {
	settings := result.Settings
	if settings == nil {
		return fmt.Errorf("configure step for %s ran before resolve", ext.Name)
	}

	args := append([]string{ext.SourceDir}, settings.ConfigureArgs()...)
	return b.runStep(ctx, config, StepConfigure, Command{
		Path: b.program(config),
		Args: args,
		Dir:  workDir,
		Env:  config.environ(),
	}, result)
}

// runBuild executes cmake --build . in the configured scratch directory
func (b *CmakeBuilder) runBuild(ctx context.Context, config *BuildConfig, ext *Extension, workDir string, result *BuildResult) error {
	if result.Settings == nil {
		return fmt.Errorf("build step for %s ran before configure", ext.Name)
	}

	if config.CleanFirst {
		err := b.runStep(ctx, config, StepClean, Command{
			Path: b.program(config),
			Args: []string{"--build", ".", "--target", "clean"},
			Dir:  workDir,
			Env:  config.environ(),
		}, result)
		if err != nil {
			return err
		}
	}

	return b.runStep(ctx, config, StepBuild, Command{
		Path: b.program(config),
		Args: result.Settings.BuildToolArgs(),
		Dir:  workDir,
		Env:  config.environ(),
	}, result)
}

// runStep runs one child process and converts a non-zero exit into a StepError
func (b *CmakeBuilder) runStep(ctx context.Context, config *BuildConfig, step BuildStep, cmd Command, result *BuildResult) error {
	logger := zerolog.Ctx(ctx).With().Str("step", string(step)).Logger()
	logger.Debug().Str("cmd", cmd.String()).Str("dir", cmd.Dir).Msg("running build step")

	if config.Verbose {
		result.Output = append(result.Output,
			fmt.Sprintf("Running: %s", cmd.String()),
			fmt.Sprintf("Working directory: %s", cmd.Dir))
	}

	proc, err := config.runner().Run(ctx, cmd)
	if proc != nil {
		result.Output = append(result.Output, proc.Output...)
		result.Steps = append(result.Steps, proc)
	}

	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			result.MissingDependencies = append(result.MissingDependencies, cmd.Path)
		}
		return BuildError(fmt.Sprintf("%s %s", cmakeBuilder, step), result.Output, err)
	}

	if !proc.Success() {
		logger.Error().Int("exit_code", proc.ExitCode).Msg("build step exited non-zero")
		return &StepError{
			Builder:  cmakeBuilder,
			Step:     step,
			Command:  cmd,
			ExitCode: proc.ExitCode,
			Output:   proc.Output,
		}
	}

	logger.Info().Dur("elapsed", proc.Duration).Msg("build step finished")
	return nil
}

// findBuiltExtensions locates the compiled artifact in the output directory
func (b *CmakeBuilder) findBuiltExtensions(config *BuildConfig, ext *Extension) ([]string, error) {
	full, err := ExtensionFullPath(config, ext)
	if err != nil {
		return nil, err
	}

	if config.ExtSuffix != "" {
		if info, err := os.Stat(full); err == nil && info.Mode().IsRegular() {
			return []string{full}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, full)
	}

	// Suffix unknown: accept any tagged variant of the base name
	dir := filepath.Dir(full)
	pattern := ext.BaseName() + "*.{so,pyd,dylib}"
	matches, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to glob pattern %s in %s: %v", pattern, dir, err)
	}

	var extensions []string
	for _, match := range matches {
		extensions = append(extensions, filepath.Join(dir, filepath.FromSlash(match)))
	}

	if len(extensions) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, pattern, dir)
	}
	return extensions, nil
}

// program returns the cmake executable to run
func (b *CmakeBuilder) program(config *BuildConfig) string {
	if config.CMakePath != "" {
		return config.CMakePath
	}
	if program, ok := config.lookupEnv(EnvCMake); ok && program != "" {
		return program
	}
	return cmakeProgram
}
