//go:build mage

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/rs/zerolog"

	pyext "github.com/contriboss/python-extension-go"
	"github.com/contriboss/python-extension-go/config"
	"github.com/contriboss/python-extension-go/exports"
)

// Default target to run when none is specified.
var Default = Build

// load reads pyext.yaml from the current directory and applies mage's flags.
func load() (*config.Config, *pyext.BuildConfig, *pyext.Extension, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, nil, nil, err
	}

	cfg, err := config.NewLoader().AutoLoad(wd)
	if err != nil {
		return nil, nil, nil, err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !mg.Verbose() {
		logger = logger.Level(zerolog.WarnLevel)
	}

	build, err := cfg.BuildConfig(&logger)
	if err != nil {
		return nil, nil, nil, err
	}
	build.Verbose = mg.Verbose()

	// mage -debug is the host debug flag; without it $DEBUG decides
	if os.Getenv(mg.DebugEnv) != "" {
		debug := mg.Debug()
		build.Debug = &debug
	}

	ext, err := cfg.Extension()
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, build, ext, nil
}

// Check verifies that cmake and a C++ compiler are installed.
func Check(ctx context.Context) error {
	_, build, _, err := load()
	if err != nil {
		return err
	}
	if err := (&pyext.CmakeBuilder{}).CheckTools(); err != nil {
		return err
	}
	version, err := pyext.CheckCMakeVersion(ctx, pyext.ExecRunner{}, build.CMakePath)
	if err != nil {
		return err
	}
	fmt.Println("cmake", version)
	return nil
}

// Build configures and compiles the native extension.
func Build(ctx context.Context) error {
	mg.CtxDeps(ctx, Check)

	_, build, ext, err := load()
	if err != nil {
		return err
	}

	if build.PythonPath == "" {
		if build.PythonPath, err = pyext.LocateInterpreter(os.LookupEnv); err != nil {
			return err
		}
	}
	if interp, err := pyext.ProbeInterpreter(ctx, pyext.ExecRunner{}, build.PythonPath); err == nil {
		build.ExtSuffix = interp.ExtSuffix
	}

	result, err := (&pyext.CmakeBuilder{}).Build(ctx, build, ext)
	if err != nil {
		return err
	}
	for _, path := range result.Extensions {
		fmt.Println(path)
	}
	return nil
}

// Exports regenerates the package __init__.py from the manifest.
func Exports() error {
	cfg, _, _, err := load()
	if err != nil {
		return err
	}
	pkg, err := cfg.ExportPackage()
	if err != nil {
		return err
	}
	path, err := exports.WriteInitFile(cfg.PackageDirPath(), pkg)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// Clean removes the extension's scratch directory.
func Clean() error {
	_, build, ext, err := load()
	if err != nil {
		return err
	}
	return (&pyext.CmakeBuilder{}).CleanAll(build, ext)
}
