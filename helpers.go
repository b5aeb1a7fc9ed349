package pyext

import (
	"fmt"
	"regexp"
	"strings"
)

// MatchesPattern checks if a filename matches any of the given regex patterns.
//
// This is a helper function for builder implementations to determine if they
// can handle a given marker file based on filename patterns.
//
// # Parameters
//
//   - filename: Base name of the marker file, without directory
//   - patterns: Regular expressions tried in order
//
// # Returns
//
// Returns true if the filename matches any pattern, false otherwise.
// If a pattern is invalid regex, it is silently skipped.
//
// # Thread Safety
//
// This function holds no state and can be called concurrently.
//
// # Example
//
//	if MatchesPattern(filename, `^CMakeLists\.txt$`) {
//	    // Handle CMake projects
//	}
func MatchesPattern(filename string, patterns ...string) bool {
	for _, pattern := range patterns {
		if matched, _ := regexp.MatchString(pattern, filename); matched {
			return true
		}
	}
	return false
}

// MatchesExtension checks if a filename has any of the given extensions.
//
// This is a case-insensitive check for file extensions.
// Useful for checking compiled extension files (.so, .pyd, .dylib).
//
// # Example
//
//	if MatchesExtension(filename, ".so", ".pyd", ".dylib") {
//	    // This is a compiled extension
//	}
func MatchesExtension(filename string, extensions ...string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(strings.ToLower(filename), strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// BuildError creates a standardized build error with output context.
//
// This helper formats build errors consistently across all builders,
// including the build output for debugging.
//
// # Parameters
//
//   - builder: Builder and step label, e.g. "CMake configure"
//   - output: Captured process output, may be empty
//   - err: Underlying cause, may be nil
//
// # Returns
//
// Always returns a non-nil error. The cause is flattened into the message
// and is not wrapped; callers needing the exit status use StepError.
//
// # Format
//
// With error and output:
//
//	CMake configure failed: exit status 1
//
//	Build output:
//	-- The CXX compiler identification is unknown
//	CMake Error: CMAKE_CXX_COMPILER not set
//
// With error but no output:
//
//	CMake configure failed: exit status 1
func BuildError(builder string, output []string, err error) error {
	outputStr := strings.Join(output, "\n")

	var prefix string
	if err != nil {
		prefix = fmt.Sprintf("%s failed: %v", builder, err)
	} else {
		prefix = fmt.Sprintf("%s failed", builder)
	}

	if outputStr != "" {
		return fmt.Errorf("%s\n\nBuild output:\n%s", prefix, outputStr)
	}

	return fmt.Errorf("%s", prefix)
}

// BuildStep names a phase of the two-phase native build.
type BuildStep string

// Build steps
const (
	StepConfigure BuildStep = "configure"
	StepBuild     BuildStep = "build"
	StepClean     BuildStep = "clean"
)

// StepError reports a child process that exited with a non-zero status.
//
// Use errors.As to recover the step and exit code:
//
//	var stepErr *pyext.StepError
//	if errors.As(err, &stepErr) && stepErr.Step == pyext.StepConfigure {
//	    // configure failed, build never ran
//	}
type StepError struct {
	Builder  string
	Step     BuildStep
	Command  Command
	ExitCode int
	Output   []string
}

func (e *StepError) Error() string {
	return BuildError(
		fmt.Sprintf("%s %s", e.Builder, e.Step),
		e.Output,
		fmt.Errorf("%s exited with status %d", e.Command.Path, e.ExitCode),
	).Error()
}
