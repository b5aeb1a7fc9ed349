package pyext

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
)

// runCommonBuild executes the standard build pipeline.
//
// # Process Flow
//
//  1. Create a BuildResult with a fresh build id
//  2. Call ResolveFunc, if set, before touching the filesystem
//  3. Prepare the scratch directory (idempotent)
//  4. Call ConfigureFunc inside the scratch directory
//  5. Call BuildFunc inside the same directory
//  6. Call FindFunc to locate the compiled artifacts
//  7. Return BuildResult with Success=true
//
// If any step fails, processing stops and the error is returned with
// Success=false. Nothing is retried.
//
// When config.CleanOnFailure is set, a configure failure removes the scratch
// directory so that no partially configured cache survives. Otherwise it is
// left in place for inspection.
//
// The logger stored in ctx carries the build id and extension name, so step
// functions should log through zerolog.Ctx(ctx).
func runCommonBuild(ctx context.Context, config *BuildConfig, ext *Extension, steps CommonBuildSteps) (*BuildResult, error) {
	result := &BuildResult{
		BuildID: ulid.Make().String(),
		Success: false,
		Output:  []string{},
	}

	logger := config.logger().With().
		Str("build_id", result.BuildID).
		Str("extension", ext.Name).
		Logger()
	ctx = logger.WithContext(ctx)
	start := time.Now()

	fail := func(err error) (*BuildResult, error) {
		result.Error = err
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("build failed")
		return result, err
	}

	// Step 0: Resolve the settings
	if steps.ResolveFunc != nil {
		if err := steps.ResolveFunc(ctx, config, ext, result); err != nil {
			return fail(err)
		}
	}

	// Prepare the scratch directory
	workDir, err := PrepareWorkspace(config, ext)
	if err != nil {
		return fail(err)
	}
	logger.Debug().Str("source_dir", ext.SourceDir).Str("work_dir", workDir).Msg("workspace ready")

	// Step 1: Configure the build
	if err := steps.ConfigureFunc(ctx, config, ext, workDir, result); err != nil {
		if config.CleanOnFailure && !errors.Is(err, context.Canceled) {
			if rmErr := os.RemoveAll(workDir); rmErr != nil {
				logger.Warn().Err(rmErr).Str("work_dir", workDir).Msg("failed to remove workspace")
			}
		}
		return fail(err)
	}

	// Step 2: Compile the extension
	if err := steps.BuildFunc(ctx, config, ext, workDir, result); err != nil {
		return fail(err)
	}

	// Step 3: Find the built artifacts
	extensions, err := steps.FindFunc(config, ext)
	if err != nil {
		return fail(err)
	}

	result.Extensions = extensions
	result.Success = true
	logger.Info().Strs("artifacts", extensions).Dur("elapsed", time.Since(start)).Msg("build finished")
	return result, nil
}
