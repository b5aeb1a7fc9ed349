package pyext

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// fakeRunner records commands and answers them with handler, or with a
// successful empty result when handler is nil.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []Command
	handler func(call int, cmd Command) (*ProcessResult, error)
}

func (r *fakeRunner) Run(_ context.Context, cmd Command) (*ProcessResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	call := len(r.calls) - 1
	r.mu.Unlock()

	if r.handler == nil {
		return &ProcessResult{Command: cmd}, nil
	}
	return r.handler(call, cmd)
}

func isBuildCommand(cmd Command) bool {
	return len(cmd.Args) >= 2 && cmd.Args[0] == "--build" && !contains(cmd.Args, "clean")
}

func contains(items []string, item string) bool {
	for _, candidate := range items {
		if candidate == item {
			return true
		}
	}
	return false
}

// artifactOnBuild answers every command successfully and writes the extension
// artifact when the build step runs, like a real cmake --build would.
func artifactOnBuild(t *testing.T, config *BuildConfig, ext *Extension) func(int, Command) (*ProcessResult, error) {
	t.Helper()
	return func(_ int, cmd Command) (*ProcessResult, error) {
		if isBuildCommand(cmd) {
			full, err := ExtensionFullPath(config, ext)
			if err != nil {
				return nil, err
			}
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(full, []byte("ELF"), 0o755); err != nil {
				return nil, err
			}
			return &ProcessResult{Command: cmd, Output: []string{"[100%] Built target " + ext.BaseName()}}, nil
		}
		return &ProcessResult{Command: cmd, Output: []string{"-- Configuring done"}}, nil
	}
}

// exitOn answers the given step with a non-zero exit status.
func exitOn(step BuildStep, code int) func(int, Command) (*ProcessResult, error) {
	return func(_ int, cmd Command) (*ProcessResult, error) {
		isBuild := isBuildCommand(cmd)
		if (step == StepBuild && isBuild) || (step == StepConfigure && !isBuild) {
			return &ProcessResult{Command: cmd, ExitCode: code, Output: []string{"CMake Error: boom"}}, nil
		}
		return &ProcessResult{Command: cmd}, nil
	}
}

func envMap(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// newCMakeExtension declares an extension backed by a temporary CMake project.
func newCMakeExtension(t *testing.T, name string) *Extension {
	t.Helper()
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "CMakeLists.txt"), "cmake_minimum_required(VERSION 3.5)\nproject(native)\n")

	ext, err := NewExtension(name, src)
	if err != nil {
		t.Fatalf("NewExtension returned error: %v", err)
	}
	return ext
}

// newTestConfig returns a configuration isolated from the process environment.
func newTestConfig(t *testing.T) *BuildConfig {
	t.Helper()
	return &BuildConfig{
		ProjectDir: t.TempDir(),
		OutputDir:  "build/lib",
		BuildTemp:  filepath.Join(t.TempDir(), "temp"),
		PythonPath: "/usr/bin/python3",
		LookupEnv:  envMap(nil),
	}
}
