// Package pyext builds native Python extension modules with an external build system.
//
// This package is the Go equivalent of a setuptools build_ext command that
// drives CMake: it resolves a named extension target, derives the CMake
// configuration from the environment and the host tool state, runs the
// configure and build phases as child processes and delivers the compiled
// shared library to the directory the Python package expects it in.
//
// # Basic Usage
//
//	ext, err := pyext.NewExtension("myactuator_rmd_py", ".")
//	if err != nil {
//	    return err
//	}
//
//	config := &pyext.BuildConfig{
//	    ProjectDir: ".",
//	    OutputDir:  "build/lib",
//	    PythonPath: "/usr/bin/python3",
//	    Parallel:   8,
//	}
//
//	factory := pyext.NewBuilderFactory()
//	results, err := factory.BuildAllExtensions(ctx, config, []*pyext.Extension{ext})
//
// # Build Protocol
//
// Every build runs the same linear sequence and stops at the first failure:
//
//	Resolve -> Configure -> Parallelism -> Prepare workspace
//	        -> cmake <source> <args...>        (configure step)
//	        -> cmake --build . <args...>       (build step)
//	        -> locate artifact
//
// A non-zero exit status from either child process is returned as a
// *StepError. The build step never runs after a failed configure step.
//
// # Environment
//
// The following variables are consulted when deriving the configuration:
//   - DEBUG - integer, non-zero selects a Debug build unless the host tool set a debug flag
//   - CMAKE_ARGS - space separated extra configure arguments
//   - CMAKE_BUILD_PARALLEL_LEVEL - when present, no -j flag is added
//   - CMAKE - cmake executable override
//   - PYTHON - interpreter override
//
// The submodule export list of the hosting Python package lives in the
// exports subpackage.
package pyext
