// Package config provides error definitions for project manifest handling
package config

import "errors"

// Validation errors
var (
	ErrInvalidName        = errors.New("invalid extension name")
	ErrInvalidPackage     = errors.New("invalid package name")
	ErrInvalidParallelism = errors.New("invalid parallelism")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("invalid log format")
	ErrInvalidExport      = errors.New("invalid export")
)

// Loading errors
var (
	ErrConfigFileNotFound  = errors.New("configuration file not found")
	ErrConfigParseError    = errors.New("configuration parse error")
	ErrEnvironmentVarError = errors.New("environment variable error")
)
