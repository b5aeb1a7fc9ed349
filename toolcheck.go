package pyext

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ToolChecker is implemented by builders that depend on external programs.
// Callers can run CheckTools before Build to fail early with a readable error:
//
//	if checker, ok := builder.(ToolChecker); ok {
//	    if err := checker.CheckTools(); err != nil {
//	        return fmt.Errorf("build tools missing: %w", err)
//	    }
//	}
type ToolChecker interface {
	// RequiredTools lists the programs the builder runs.
	RequiredTools() []ToolRequirement

	// CheckTools returns an error naming every missing required program.
	CheckTools() error
}

// ToolRequirement describes one program a builder runs. Any of Alternatives
// satisfies the requirement when Name is absent; Optional tools never fail the check.
type ToolRequirement struct {
	Name         string
	Alternatives []string
	Optional     bool
	Purpose      string // Shown next to the name when missing
}

// CheckToolAvailable reports whether tool resolves on PATH.
func CheckToolAvailable(tool string) error {
	if _, err := execLookPath(tool); err != nil {
		return fmt.Errorf("%s not found in PATH", tool)
	}
	return nil
}

// CheckRequiredTools checks each requirement and its alternatives in order.
//
// # Parameters
//
//   - requirements: Programs to look up; Optional entries are skipped
//
// # Returns
//
// Returns nil when every required tool, or one of its alternatives, resolves.
// A single missing tool yields "cmake (CMake build system) not found in PATH";
// several yield "missing required tools: cmake (...), c++ (...)".
//
// # Thread Safety
//
// This function only reads PATH and can be called concurrently.
func CheckRequiredTools(requirements []ToolRequirement) error {
	var missing []string

	for _, req := range requirements {
		found := CheckToolAvailable(req.Name) == nil
		for _, alt := range req.Alternatives {
			if found {
				break
			}
			found = CheckToolAvailable(alt) == nil
		}

		if found || req.Optional {
			continue
		}
		if req.Purpose != "" {
			missing = append(missing, fmt.Sprintf("%s (%s)", req.Name, req.Purpose))
		} else {
			missing = append(missing, req.Name)
		}
	}

	switch len(missing) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s not found in PATH", missing[0])
	default:
		return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
	}
}

var cmakeVersionPattern = regexp.MustCompile(`cmake version (\d+\.\d+(?:\.\d+)?)`)

// CheckCMakeVersion runs "<program> --version" and verifies that the reported
// version is at least PolicyVersionMinimum.
//
// Returns the detected version. An older cmake is an error because the
// policy pin passed at configure time would be rejected.
func CheckCMakeVersion(ctx context.Context, runner Runner, program string) (*semver.Version, error) {
	if program == "" {
		program = cmakeProgram
	}

	proc, err := runner.Run(ctx, Command{Path: program, Args: []string{"--version"}})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s version: %w", program, err)
	}
	if !proc.Success() {
		return nil, BuildError(program+" --version", proc.Output, fmt.Errorf("exit status %d", proc.ExitCode))
	}

	match := cmakeVersionPattern.FindStringSubmatch(strings.Join(proc.Output, "\n"))
	if match == nil {
		return nil, fmt.Errorf("unrecognized %s version output: %q", program, strings.Join(proc.Output, " "))
	}

	version, err := semver.NewVersion(match[1])
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s version %q: %w", program, match[1], err)
	}

	minimum := semver.MustParse(PolicyVersionMinimum)
	if version.LessThan(minimum) {
		return version, fmt.Errorf("%s %s is older than the required %s", program, version, minimum)
	}

	return version, nil
}
