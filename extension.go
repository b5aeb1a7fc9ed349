package pyext

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
)

// Resolution errors
var (
	ErrInvalidExtension  = errors.New("invalid extension name")
	ErrSourceDirNotFound = errors.New("extension source directory not found")
	ErrNotADirectory     = errors.New("extension source path is not a directory")
)

const defaultOutputDir = "build/lib"

// Extension is a named native extension target backed by a source directory.
//
// The name may be dotted ("pkg.sub.native"); the last component is the
// artifact's base name and the leading components are its package path.
type Extension struct {
	Name      string // Dotted module name of the compiled extension
	SourceDir string // Absolute, resolved source directory
}

// NewExtension declares an extension target. The source directory is
// resolved to an absolute path and must exist; an empty sourceDir means the
// current working directory.
func NewExtension(name, sourceDir string) (*Extension, error) {
	if !validExtensionName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidExtension, name)
	}

	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source directory %q: %w", sourceDir, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceDirNotFound, abs)
		}
		return nil, fmt.Errorf("failed to stat source directory %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, abs)
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	return &Extension{Name: name, SourceDir: abs}, nil
}

// BaseName returns the last component of the dotted extension name.
func (e *Extension) BaseName() string {
	parts := strings.Split(e.Name, ".")
	return parts[len(parts)-1]
}

func (e *Extension) packagePath() []string {
	parts := strings.Split(e.Name, ".")
	return parts[:len(parts)-1]
}

func validExtensionName(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" || !MatchesPattern(part, `^[A-Za-z_][A-Za-z0-9_]*$`) {
			return false
		}
	}
	return true
}

// ExtensionFullPath returns the absolute path the compiled artifact must end up at.
//
// The path is OutputDir/<package path>/<base name><suffix>, where the suffix is
// config.ExtSuffix or the platform's untagged default when it is unknown.
func ExtensionFullPath(config *BuildConfig, ext *Extension) (string, error) {
	suffix := config.ExtSuffix
	if suffix == "" {
		suffix = defaultExtSuffix()
	}

	elems := []string{resolveProjectPath(config, config.OutputDir, defaultOutputDir)}
	elems = append(elems, ext.packagePath()...)
	elems = append(elems, ext.BaseName()+suffix)

	full, err := filepath.Abs(filepath.Join(elems...))
	if err != nil {
		return "", fmt.Errorf("failed to resolve output path for %s: %w", ext.Name, err)
	}
	return full, nil
}

// ExtensionOutputDir returns the directory the artifact is written to. This
// is the value handed to CMake as CMAKE_LIBRARY_OUTPUT_DIRECTORY.
func ExtensionOutputDir(config *BuildConfig, ext *Extension) (string, error) {
	full, err := ExtensionFullPath(config, ext)
	if err != nil {
		return "", err
	}
	return filepath.Dir(full), nil
}

// ScratchDir returns the per-target scratch build directory.
func ScratchDir(config *BuildConfig, ext *Extension) string {
	base := config.BuildTemp
	if base == "" {
		base = defaultBuildTemp()
	}
	return filepath.Join(resolveProjectPath(config, base, base), ext.Name)
}

// PrepareWorkspace creates the scratch build directory and its parents.
// Calling it on an existing directory is a no-op.
func PrepareWorkspace(config *BuildConfig, ext *Extension) (string, error) {
	dir := ScratchDir(config, ext)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to prepare build workspace %s: %w", dir, err)
	}
	return dir, nil
}

func defaultBuildTemp() string {
	return filepath.Join(xdg.CacheHome, "pyext", "temp")
}

func defaultExtSuffix() string {
	switch runtime.GOOS {
	case platformWindows:
		return ".pyd"
	default:
		return ".so"
	}
}

func resolveProjectPath(config *BuildConfig, path, fallback string) string {
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) || config.ProjectDir == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(config.ProjectDir, path)
}
