package pyext

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"testing"
)

func TestExecRunnerCapturesOutput(t *testing.T) {
	origCmdCtx := execCommandContext
	defer func() { execCommandContext = origCmdCtx }()

	execCommandContext = helperCommand(0, "-- Configuring done\n-- Generating done")

	proc, err := ExecRunner{}.Run(context.Background(), Command{Path: "cmake", Args: []string{"."}})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if !proc.Success() {
		t.Fatalf("expected success, got exit code %d", proc.ExitCode)
	}

	expected := []string{"-- Configuring done", "-- Generating done"}
	if fmt.Sprint(proc.Output) != fmt.Sprint(expected) {
		t.Fatalf("expected output %v, got %v", expected, proc.Output)
	}

	if proc.Command.Path != "cmake" {
		t.Fatalf("expected command to be recorded, got %q", proc.Command.Path)
	}
}

func TestExecRunnerReportsExitCode(t *testing.T) {
	origCmdCtx := execCommandContext
	defer func() { execCommandContext = origCmdCtx }()

	execCommandContext = helperCommand(3, "CMake Error at CMakeLists.txt:1")

	proc, err := ExecRunner{}.Run(context.Background(), Command{Path: "cmake"})
	if err != nil {
		t.Fatalf("a non-zero exit must not be an error, got %v", err)
	}

	if proc.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", proc.ExitCode)
	}

	if len(proc.Output) != 1 || proc.Output[0] != "CMake Error at CMakeLists.txt:1" {
		t.Fatalf("unexpected output %v", proc.Output)
	}
}

func TestExecRunnerAddsEnvironment(t *testing.T) {
	origCmdCtx := execCommandContext
	defer func() { execCommandContext = origCmdCtx }()

	execCommandContext = helperCommand(0, "CXX=$CXX")

	proc, err := ExecRunner{}.Run(context.Background(), Command{Path: "cmake", Env: []string{"CXX=clang++"}})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(proc.Output) != 1 || proc.Output[0] != "CXX=clang++" {
		t.Fatalf("expected the added variable in the child environment, got %v", proc.Output)
	}
}

func TestExecRunnerMissingProgram(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), Command{Path: "pyext-test-no-such-program"})
	if !errors.Is(err, exec.ErrNotFound) {
		t.Fatalf("expected exec.ErrNotFound, got %v", err)
	}
}

func TestExecRunnerCanceledContext(t *testing.T) {
	origCmdCtx := execCommandContext
	defer func() { execCommandContext = origCmdCtx }()

	execCommandContext = helperCommand(0, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExecRunner{}.Run(ctx, Command{Path: "cmake"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCommandString(t *testing.T) {
	cmd := Command{Path: "cmake", Args: []string{"--build", ".", "-j4"}}
	if cmd.String() != "cmake --build . -j4" {
		t.Fatalf("unexpected command line %q", cmd.String())
	}

	if (Command{Path: "cmake"}).String() != "cmake" {
		t.Fatal("expected bare program name without arguments")
	}
}

func TestSplitOutput(t *testing.T) {
	if lines := splitOutput(nil); lines != nil {
		t.Fatalf("expected nil for empty output, got %v", lines)
	}

	lines := splitOutput([]byte("a\nb\n\n"))
	if fmt.Sprint(lines) != fmt.Sprint([]string{"a", "b"}) {
		t.Fatalf("unexpected lines %v", lines)
	}
}

// helperCommand re-executes the test binary as a fake child process that
// prints output (with environment variables expanded) and exits with exitCode.
func helperCommand(exitCode int, output string) func(context.Context, string, ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		_ = name
		_ = args
		cmdArgs := []string{"-test.run=TestHelperProcess", "--", strconv.Itoa(exitCode)}
		cmd := exec.CommandContext(ctx, os.Args[0], cmdArgs...) // #nosec G204 - helper process for testing
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_OUTPUT="+output)
		return cmd
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	if output := os.Getenv("HELPER_OUTPUT"); output != "" {
		fmt.Fprintln(os.Stdout, os.ExpandEnv(output))
	}

	for i := 0; i < len(os.Args); i++ {
		if os.Args[i] == "--" && i+1 < len(os.Args) {
			code, err := strconv.Atoi(os.Args[i+1])
			if err != nil {
				os.Exit(1)
			}
			os.Exit(code)
		}
	}

	os.Exit(0)
}
