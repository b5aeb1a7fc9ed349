package pyext

import "context"

// Builder defines the interface that all extension builders must implement.
//
// Each builder is responsible for one native build system and is selected
// by the BuilderFactory from the marker files present in an extension's
// source directory.
//
// # Builder Lifecycle
//
//  1. CanBuild() - Factory calls this with each entry of the source directory
//  2. Build() - Factory calls this to compile the extension
//  3. Clean() - Optional cleanup of build artifacts
//
// # Example Implementation
//
//	type MesonBuilder struct{}
//
//	func (b *MesonBuilder) Name() string {
//	    return "Meson"
//	}
//
//	func (b *MesonBuilder) CanBuild(markerFile string) bool {
//	    return MatchesPattern(markerFile, `^meson\.build$`)
//	}
//
//	func (b *MesonBuilder) Build(ctx context.Context, config *BuildConfig, ext *Extension) (*BuildResult, error) {
//	    result := &BuildResult{Success: true}
//	    // ... build logic ...
//	    return result, nil
//	}
//
//	func (b *MesonBuilder) Clean(ctx context.Context, config *BuildConfig, ext *Extension) error {
//	    return nil
//	}
//
// # Thread Safety
//
// Builder implementations should be stateless. Two builds of the same
// extension must not run concurrently because they share a scratch directory.
type Builder interface {
	// Name returns the human-readable name of this builder.
	//
	// This name is used in error messages and logs.
	Name() string

	// CanBuild reports whether this builder handles a source tree containing
	// the given marker file (e.g. "CMakeLists.txt").
	CanBuild(markerFile string) bool

	// Build compiles the extension and returns the result.
	//
	// Returns:
	//   - BuildResult with Success=true and Extensions list on success
	//   - BuildResult with Success=false and Error on failure
	Build(ctx context.Context, config *BuildConfig, ext *Extension) (*BuildResult, error)

	// Clean removes build artifacts.
	//
	// Returns nil if cleaning is not needed or completes successfully.
	Clean(ctx context.Context, config *BuildConfig, ext *Extension) error
}
