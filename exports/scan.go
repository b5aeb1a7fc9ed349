package exports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrModuleNotFound is returned when a declared submodule has no file on disk.
var ErrModuleNotFound = errors.New("submodule not found")

const initFile = "__init__.py"

// Source is the on-disk form of a submodule.
type Source struct {
	Name string // Submodule name
	Path string // File or package directory
	Kind string // "source", "package" or "native"
}

// Submodule kinds
const (
	KindSource  = "source"
	KindPackage = "package"
	KindNative  = "native"
)

// Scan enumerates the immediate submodules physically present in dir:
// *.py files other than __init__.py, subdirectories holding an __init__.py,
// and native extensions (<name>[.<tag>].so, .pyd, .dylib).
//
// The result is sorted by name. When a name exists in several forms, the
// package directory wins over the native extension, which wins over the
// source file.
func Scan(dir string) ([]Source, error) {
	found := make(map[string]Source)
	rank := map[string]int{KindSource: 0, KindNative: 1, KindPackage: 2}

	add := func(src Source) {
		if ValidateName(src.Name) != nil {
			return
		}
		if prev, ok := found[src.Name]; ok && rank[prev.Kind] >= rank[src.Kind] {
			return
		}
		found[src.Name] = src
	}

	files, err := doublestar.Glob(os.DirFS(dir), "*.{py,so,pyd,dylib}", doublestar.WithFailOnIOErrors())
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	for _, file := range files {
		if file == initFile {
			continue
		}
		kind := KindNative
		if strings.HasSuffix(file, ".py") {
			kind = KindSource
		}
		// Native names stop at the first dot: foo.cpython-312-x86_64-linux-gnu.so
		name, _, _ := strings.Cut(file, ".")
		add(Source{Name: name, Path: filepath.Join(dir, file), Kind: kind})
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(path, initFile)); err == nil {
			add(Source{Name: entry.Name(), Path: path, Kind: KindPackage})
		}
	}

	sources := make([]Source, 0, len(found))
	for _, src := range found {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources, nil
}

// ParityError lists the differences between a declared export list and a
// package directory.
type ParityError struct {
	Package    string
	Missing    []string // Declared but not present on disk
	Undeclared []string // Present on disk but not declared
}

func (e *ParityError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("declared but missing: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Undeclared) > 0 {
		parts = append(parts, fmt.Sprintf("present but undeclared: %s", strings.Join(e.Undeclared, ", ")))
	}
	return fmt.Sprintf("package %s export list mismatch: %s", e.Package, strings.Join(parts, "; "))
}

// Validate checks that the declared submodules of pkg and the submodules
// present in dir are the same set. It returns a *ParityError on mismatch.
// Submodules bound inside a compiled extension are not files, so they cannot
// be declared here; declare the extension module itself instead.
func Validate(pkg *Package, dir string) error {
	sources, err := Scan(dir)
	if err != nil {
		return err
	}

	onDisk := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		onDisk[src.Name] = struct{}{}
	}

	parity := &ParityError{Package: pkg.Name()}
	for _, name := range pkg.Names() {
		if _, ok := onDisk[name]; !ok {
			parity.Missing = append(parity.Missing, name)
		}
		delete(onDisk, name)
	}
	for name := range onDisk {
		parity.Undeclared = append(parity.Undeclared, name)
	}
	sort.Strings(parity.Undeclared)

	if len(parity.Missing) == 0 && len(parity.Undeclared) == 0 {
		return nil
	}
	return parity
}

// FileFactory returns a factory that resolves submodule name to its Source in dir.
func FileFactory(dir, name string) Factory {
	return func(_ context.Context) (any, error) {
		sources, err := Scan(dir)
		if err != nil {
			return nil, err
		}
		for _, src := range sources {
			if src.Name == name {
				return src, nil
			}
		}
		return nil, fmt.Errorf("%w: %s in %s", ErrModuleNotFound, name, dir)
	}
}
