package pyext

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const platformWindows = "windows"

var nativeLibraryExtensions = []string{".so", ".pyd", ".dylib", ".dll"}

// InstallArtifacts copies compiled native libraries into config.PackageDir and
// returns their paths relative to the project root. This is the in-place
// build: the package directory is the search path the Python package loads
// its submodules from.
//
// Files that are not native libraries are skipped. When PackageDir is the
// directory the artifact was built into, nothing is copied and the built
// paths are returned relative to the project root.
func InstallArtifacts(config *BuildConfig, built []string) ([]string, error) {
	if len(built) == 0 || config.PackageDir == "" {
		return nil, nil
	}

	dest, err := filepath.Abs(resolveProjectPath(config, config.PackageDir, config.PackageDir))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve package directory %q: %w", config.PackageDir, err)
	}

	var installed []string

	for _, srcPath := range built {
		if !isNativeLibrary(srcPath) {
			continue
		}

		if info, err := os.Stat(srcPath); err != nil || !info.Mode().IsRegular() {
			continue
		}

		destPath := filepath.Join(dest, filepath.Base(srcPath))
		if filepath.Clean(srcPath) != destPath {
			if err := copyFile(srcPath, destPath); err != nil {
				return nil, fmt.Errorf("failed to install %s into %s: %w", srcPath, dest, err)
			}
		}

		installed = append(installed, projectRelative(config, destPath))
	}

	return installed, nil
}

func projectRelative(config *BuildConfig, path string) string {
	root := config.ProjectDir
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return filepath.ToSlash(path)
	}
	if rel, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

func isNativeLibrary(path string) bool {
	return MatchesExtension(path, nativeLibraryExtensions...)
}

func copyFile(srcPath, destPath string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(destPath)
	if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
		return mkErr
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
