package pyext

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// EnvPython overrides the interpreter used for builds.
const EnvPython = "PYTHON"

// ErrInterpreterNotFound is returned when no Python interpreter can be located.
var ErrInterpreterNotFound = errors.New("python interpreter not found")

const interpreterProbe = `import sys, sysconfig
print(sysconfig.get_config_var("EXT_SUFFIX") or "")
print("%d.%d.%d" % sys.version_info[:3])`

// Interpreter describes the Python the extension is compiled for.
type Interpreter struct {
	Path      string // Executable path
	ExtSuffix string // e.g. ".cpython-312-x86_64-linux-gnu.so"
	Version   string // e.g. "3.12.1"
}

// LocateInterpreter returns $PYTHON, or the first of python3 and python found on PATH.
func LocateInterpreter(lookupEnv func(string) (string, bool)) (string, error) {
	if lookupEnv != nil {
		if path, ok := lookupEnv(EnvPython); ok && path != "" {
			return path, nil
		}
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := execLookPath(name); err == nil {
			return path, nil
		}
	}

	return "", ErrInterpreterNotFound
}

// ProbeInterpreter asks the interpreter for its extension suffix and version.
func ProbeInterpreter(ctx context.Context, runner Runner, path string) (*Interpreter, error) {
	proc, err := runner.Run(ctx, Command{Path: path, Args: []string{"-c", interpreterProbe}})
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", path, err)
	}
	if !proc.Success() {
		return nil, BuildError(path+" probe", proc.Output, fmt.Errorf("exit status %d", proc.ExitCode))
	}

	var lines []string
	for _, line := range proc.Output {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	// An interpreter without EXT_SUFFIX prints an empty first line
	switch len(lines) {
	case 1:
		return &Interpreter{Path: path, Version: lines[0]}, nil
	case 2:
		return &Interpreter{Path: path, ExtSuffix: lines[0], Version: lines[1]}, nil
	default:
		return nil, fmt.Errorf("unexpected output from %s probe: %q", path, strings.Join(proc.Output, "\n"))
	}
}
