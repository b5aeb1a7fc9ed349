package pyext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// BuilderFactory manages the registration and selection of extension builders.
//
// The factory maintains a registry of Builder implementations and provides
// methods to:
//   - Register new builders
//   - Find the appropriate builder for a marker file or a source directory
//   - Build multiple extensions in sequence
//
// # Usage
//
// Create a factory with the standard builders:
//
//	factory := pyext.NewBuilderFactory()
//
// Or create an empty factory and register custom builders:
//
//	factory := &pyext.BuilderFactory{}
//	factory.Register(&MyCustomBuilder{})
//
// # Builder Selection
//
// When building an extension, the factory:
//  1. Lists the entries of the extension's source directory
//  2. Calls CanBuild() on each registered builder in order
//  3. Uses the first builder that accepts any entry
//  4. Returns an error if no builder can handle the directory
//
// # Thread Safety
//
// BuilderFactory is NOT thread-safe for registration.
// Register all builders before concurrent use.
type BuilderFactory struct {
	builders []Builder
}

// NewBuilderFactory creates a factory with all standard builders registered.
func NewBuilderFactory() *BuilderFactory {
	factory := &BuilderFactory{}
	factory.Register(&CmakeBuilder{})
	return factory
}

// Register adds a new builder to the factory.
//
// Builders are checked in the order they are registered.
// Not thread-safe. Register all builders before concurrent use.
func (f *BuilderFactory) Register(builder Builder) {
	f.builders = append(f.builders, builder)
}

// BuilderFor returns the builder for the given marker file.
//
// Only the base filename is used for matching.
func (f *BuilderFactory) BuilderFor(markerFile string) (Builder, error) {
	filename := filepath.Base(markerFile)

	for _, builder := range f.builders {
		if builder.CanBuild(filename) {
			return builder, nil
		}
	}

	return nil, fmt.Errorf("no builder found for marker file: %s", filename)
}

// Detect returns the first registered builder that recognizes a marker file
// in sourceDir.
func (f *BuilderFactory) Detect(sourceDir string) (Builder, error) {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory %s: %w", sourceDir, err)
	}

	for _, builder := range f.builders {
		for _, entry := range entries {
			if !entry.IsDir() && builder.CanBuild(entry.Name()) {
				return builder, nil
			}
		}
	}

	return nil, fmt.Errorf("no builder found for source directory: %s", sourceDir)
}

// ListBuilders returns a copy of all registered builders.
func (f *BuilderFactory) ListBuilders() []Builder {
	return append([]Builder{}, f.builders...)
}

// BuildAllExtensions builds all extensions in sequence.
//
// Returns one BuildResult per extension processed and the first error
// encountered. With config.StopOnFailure, processing stops after the first
// failed extension. A canceled context stops processing immediately.
func (f *BuilderFactory) BuildAllExtensions(ctx context.Context, config *BuildConfig, extensions []*Extension) ([]*BuildResult, error) {
	if len(extensions) == 0 {
		return nil, nil
	}

	var results []*BuildResult
	var firstError error

	for _, ext := range extensions {
		// Check for context cancellation
		if ctxErr := ctx.Err(); ctxErr != nil {
			if firstError == nil {
				firstError = ctxErr
			}
			results = append(results, &BuildResult{
				Success: false,
				Error:   ctxErr,
			})
			break
		}

		// Find appropriate builder
		builder, err := f.Detect(ext.SourceDir)
		if err != nil {
			if firstError == nil {
				firstError = err
			}
			results = append(results, &BuildResult{
				Success: false,
				Error:   err,
			})
			if config.StopOnFailure {
				break
			}
			continue
		}

		// Build the extension
		result, err := builder.Build(ctx, config, ext)
		if err != nil {
			if firstError == nil {
				firstError = err
			}
			// Ensure we have a result even if builder didn't return one
			if result == nil {
				result = &BuildResult{
					Success: false,
					Error:   err,
				}
			}
		}

		results = append(results, result)

		if !result.Success && config.StopOnFailure {
			break
		}
	}

	return results, firstError
}
