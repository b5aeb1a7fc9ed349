package pyext

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInstallArtifactsCopiesIntoPackageDir(t *testing.T) {
	projectDir := t.TempDir()
	builtDir := filepath.Join(projectDir, "build", "lib")

	artifact := filepath.Join(builtDir, "myactuator_rmd_py.cpython-312-x86_64-linux-gnu.so")
	writeFile(t, artifact, "binary")
	if err := os.Chmod(artifact, 0o755); err != nil {
		t.Fatalf("failed to chmod artifact: %v", err)
	}

	config := &BuildConfig{
		ProjectDir: projectDir,
		PackageDir: "myactuator_rmd",
	}

	installed, err := InstallArtifacts(config, []string{artifact})
	if err != nil {
		t.Fatalf("InstallArtifacts returned error: %v", err)
	}

	expected := "myactuator_rmd/myactuator_rmd_py.cpython-312-x86_64-linux-gnu.so"
	if len(installed) != 1 || installed[0] != expected {
		t.Fatalf("expected installed paths [%s], got %v", expected, installed)
	}

	copied := filepath.Join(projectDir, "myactuator_rmd", filepath.Base(artifact))
	info, err := os.Stat(copied)
	if err != nil {
		t.Fatalf("expected artifact copied to %s: %v", copied, err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Fatalf("expected the copy to keep the executable bit, got %v", info.Mode())
	}

	if _, err := os.Stat(artifact); err != nil {
		t.Fatalf("expected the built artifact to remain in place: %v", err)
	}
}

func TestInstallArtifactsSkipsNonNative(t *testing.T) {
	projectDir := t.TempDir()
	listing := filepath.Join(projectDir, "build", "lib", "install_manifest.txt")
	writeFile(t, listing, "data")

	config := &BuildConfig{
		ProjectDir: projectDir,
		PackageDir: "pkg",
	}

	installed, err := InstallArtifacts(config, []string{listing})
	if err != nil {
		t.Fatalf("InstallArtifacts returned error: %v", err)
	}

	if len(installed) != 0 {
		t.Fatalf("expected nothing installed, got %v", installed)
	}

	if _, err := os.Stat(filepath.Join(projectDir, "pkg", "install_manifest.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected no copy of a non-native file, got %v", err)
	}
}

func TestInstallArtifactsSameDirectory(t *testing.T) {
	projectDir := t.TempDir()
	artifact := filepath.Join(projectDir, "pkg", "native.so")
	writeFile(t, artifact, "binary")

	config := &BuildConfig{
		ProjectDir: projectDir,
		PackageDir: filepath.Join(projectDir, "pkg"),
	}

	installed, err := InstallArtifacts(config, []string{artifact})
	if err != nil {
		t.Fatalf("InstallArtifacts returned error: %v", err)
	}

	if len(installed) != 1 || installed[0] != "pkg/native.so" {
		t.Fatalf("expected [pkg/native.so], got %v", installed)
	}
}

func TestInstallArtifactsWithoutPackageDir(t *testing.T) {
	installed, err := InstallArtifacts(&BuildConfig{}, []string{"/tmp/native.so"})
	if err != nil || installed != nil {
		t.Fatalf("expected no-op without a package directory, got %v, %v", installed, err)
	}
}
