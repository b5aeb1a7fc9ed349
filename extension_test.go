package pyext

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExtension(t *testing.T) {
	src := t.TempDir()

	ext, err := NewExtension("myactuator_rmd_py", src)
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(src)
	require.NoError(t, err)
	assert.Equal(t, resolved, ext.SourceDir)
	assert.Equal(t, "myactuator_rmd_py", ext.BaseName())
	assert.Empty(t, ext.packagePath())

	dotted, err := NewExtension("pkg.sub.native", src)
	require.NoError(t, err)
	assert.Equal(t, "native", dotted.BaseName())
	assert.Equal(t, []string{"pkg", "sub"}, dotted.packagePath())
}

func TestNewExtensionRejectsInvalidNames(t *testing.T) {
	src := t.TempDir()

	for _, name := range []string{"", "1native", "my-ext", "pkg..native", ".native", "native.", "na tive"} {
		t.Run(name, func(t *testing.T) {
			_, err := NewExtension(name, src)
			assert.ErrorIs(t, err, ErrInvalidExtension)
		})
	}
}

func TestNewExtensionSourceDir(t *testing.T) {
	dir := t.TempDir()

	_, err := NewExtension("native", filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrSourceDirNotFound)

	file := filepath.Join(dir, "CMakeLists.txt")
	writeFile(t, file, "project(x)\n")
	_, err = NewExtension("native", file)
	assert.ErrorIs(t, err, ErrNotADirectory)
}

func TestExtensionFullPath(t *testing.T) {
	ext := newCMakeExtension(t, "native")

	config := &BuildConfig{ProjectDir: t.TempDir(), ExtSuffix: ".cpython-312-x86_64-linux-gnu.so"}
	full, err := ExtensionFullPath(config, ext)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(config.ProjectDir, "build", "lib", "native.cpython-312-x86_64-linux-gnu.so"), full)

	config.ExtSuffix = ""
	full, err = ExtensionFullPath(config, ext)
	require.NoError(t, err)
	want := ".so"
	if runtime.GOOS == "windows" {
		want = ".pyd"
	}
	assert.Equal(t, "native"+want, filepath.Base(full))

	absOut := t.TempDir()
	config.OutputDir = absOut
	dir, err := ExtensionOutputDir(config, ext)
	require.NoError(t, err)
	assert.Equal(t, absOut, dir)
}

func TestScratchDir(t *testing.T) {
	ext := newCMakeExtension(t, "myactuator_rmd_py")

	config := &BuildConfig{ProjectDir: "/project", BuildTemp: "build/temp"}
	assert.Equal(t, filepath.Join("/project", "build", "temp", "myactuator_rmd_py"), ScratchDir(config, ext))

	config.BuildTemp = ""
	assert.Equal(t, filepath.Join(xdg.CacheHome, "pyext", "temp", "myactuator_rmd_py"), ScratchDir(config, ext))
}

func TestPrepareWorkspaceIsIdempotent(t *testing.T) {
	ext := newCMakeExtension(t, "native")
	config := newTestConfig(t)

	dir, err := PrepareWorkspace(config, ext)
	require.NoError(t, err)
	assert.DirExists(t, dir)

	writeFile(t, filepath.Join(dir, "CMakeCache.txt"), "# cache\n")

	again, err := PrepareWorkspace(config, ext)
	require.NoError(t, err)
	assert.Equal(t, dir, again)
	assert.FileExists(t, filepath.Join(dir, "CMakeCache.txt"), "existing contents are kept")
}

func TestPrepareWorkspaceFailsOnFile(t *testing.T) {
	ext := newCMakeExtension(t, "native")
	config := newTestConfig(t)

	// A regular file where the scratch directory should be
	blocker := ScratchDir(config, ext)
	writeFile(t, blocker, "")
	_, err := PrepareWorkspace(config, ext)
	assert.Error(t, err)

	info, statErr := os.Stat(blocker)
	require.NoError(t, statErr)
	assert.False(t, info.IsDir())
}
