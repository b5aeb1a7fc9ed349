package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	pyext "github.com/contriboss/python-extension-go"
	"github.com/contriboss/python-extension-go/config"
	"github.com/contriboss/python-extension-go/exports"
)

// ExitError is an error type that carries a process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

const usage = `pyext - build a CMake-backed native Python extension.

Usage:
  pyext <command> [options]

Commands:
  build     Configure and compile the extension
  clean     Run the clean target, or remove the scratch directory with -all
  check     Verify cmake, the C++ compiler and the interpreter
  watch     Rebuild whenever the extension sources change
  exports   Validate or write the package export list

Run "pyext <command> -h" for the options of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run dispatches a subcommand.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stdout, usage)
		return nil
	}

	switch args[0] {
	case "build":
		return runBuild(ctx, stdout, stderr, args[1:])
	case "clean":
		return runClean(ctx, stdout, stderr, args[1:])
	case "check":
		return runCheck(ctx, stdout, stderr, args[1:])
	case "watch":
		return runWatch(ctx, stdout, stderr, args[1:])
	case "exports":
		return runExports(ctx, stdout, stderr, args[1:])
	default:
		return &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q\n\n%s", args[0], usage)}
	}
}

// commonFlags are shared by every subcommand.
type commonFlags struct {
	manifest string
	logLevel string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.manifest, "f", "", "Path to the pyext.yaml manifest (default: search the current directory)")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level override: debug, info, warn, error")
}

// session is the loaded manifest plus the objects derived from it.
type session struct {
	config *config.Config
	logger zerolog.Logger
	build  *pyext.BuildConfig
	ext    *pyext.Extension
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return &ExitError{Code: 0}
		}
		return &ExitError{Code: 2, Message: err.Error()}
	}
	return nil
}

func openSession(common *commonFlags, stderr io.Writer) (*session, error) {
	loader := config.NewLoader()

	var (
		cfg *config.Config
		err error
	)
	if common.manifest != "" {
		cfg, err = loader.Load(common.manifest)
	} else {
		var wd string
		if wd, err = os.Getwd(); err == nil {
			cfg, err = loader.AutoLoad(wd)
		}
	}
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}

	if common.logLevel != "" {
		cfg.Log.Level = common.logLevel
	}
	logger, err := newLogger(stderr, cfg.Log)
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}

	build, err := cfg.BuildConfig(&logger)
	if err != nil {
		return nil, err
	}

	ext, err := cfg.Extension()
	if err != nil {
		return nil, err
	}

	return &session{config: cfg, logger: logger, build: build, ext: ext}, nil
}

func newLogger(w io.Writer, cfg config.LogConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q", cfg.Level)
	}

	out := w
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// prepareInterpreter fills the interpreter path and EXT_SUFFIX of the build.
func (s *session) prepareInterpreter(ctx context.Context) error {
	if s.build.PythonPath == "" {
		path, err := pyext.LocateInterpreter(os.LookupEnv)
		if err != nil {
			return err
		}
		s.build.PythonPath = path
	}

	interp, err := pyext.ProbeInterpreter(ctx, pyext.ExecRunner{}, s.build.PythonPath)
	if err != nil {
		s.logger.Warn().Err(err).Msg("interpreter probe failed, locating artifact by pattern")
		return nil
	}
	s.build.ExtSuffix = interp.ExtSuffix
	s.logger.Debug().Str("python", interp.Path).Str("version", interp.Version).Str("ext_suffix", interp.ExtSuffix).Msg("interpreter probed")
	return nil
}

func runBuild(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var common commonFlags
	common.register(fs)
	jobs := fs.String("j", "", `Parallel jobs: a number or "auto"`)
	debug := fs.Bool("debug", false, "Build with the Debug configuration (overrides $DEBUG)")
	inplace := fs.Bool("inplace", false, "Copy the artifact into the package directory")
	verbose := fs.Bool("v", false, "Include the executed commands in the output")
	cleanFirst := fs.Bool("clean-first", false, "Run the clean target before building")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, err := openSession(&common, stderr)
	if err != nil {
		return err
	}

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if explicit["j"] {
		parallel, err := config.ParseParallelism(*jobs)
		if err != nil {
			return &ExitError{Code: 2, Message: err.Error()}
		}
		if s.build.Parallel, err = parallel.Jobs(); err != nil {
			return err
		}
	}
	// An unset host debug flag defers to $DEBUG
	if explicit["debug"] {
		s.build.Debug = debug
	}
	if *inplace && s.build.PackageDir == "" {
		s.build.PackageDir = s.config.PackageDirPath()
	}
	s.build.Verbose = *verbose
	s.build.CleanFirst = *cleanFirst

	if err := s.prepareInterpreter(ctx); err != nil {
		return err
	}

	results, err := pyext.NewBuilderFactory().BuildAllExtensions(ctx, s.build, []*pyext.Extension{s.ext})
	for _, result := range results {
		if *verbose || !result.Success {
			for _, line := range result.Output {
				fmt.Fprintln(stderr, line)
			}
		}
		for _, path := range result.Extensions {
			fmt.Fprintln(stdout, path)
		}
		for _, path := range result.Installed {
			fmt.Fprintln(stdout, path)
		}
	}
	return err
}

func runClean(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("clean", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var common commonFlags
	common.register(fs)
	all := fs.Bool("all", false, "Remove the whole scratch directory")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, err := openSession(&common, stderr)
	if err != nil {
		return err
	}

	builder := &pyext.CmakeBuilder{}
	if *all {
		if err := builder.CleanAll(s.build, s.ext); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "removed %s\n", pyext.ScratchDir(s.build, s.ext))
		return nil
	}
	return builder.Clean(ctx, s.build, s.ext)
}

func runCheck(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var common commonFlags
	common.register(fs)

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, err := openSession(&common, stderr)
	if err != nil {
		return err
	}

	builder := &pyext.CmakeBuilder{}
	if err := builder.CheckTools(); err != nil {
		return err
	}

	cmake := s.build.CMakePath
	if cmake == "" {
		cmake = os.Getenv(pyext.EnvCMake)
	}
	version, err := pyext.CheckCMakeVersion(ctx, pyext.ExecRunner{}, cmake)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "cmake %s\n", version)

	if s.build.PythonPath == "" {
		if s.build.PythonPath, err = pyext.LocateInterpreter(os.LookupEnv); err != nil {
			return err
		}
	}
	interp, err := pyext.ProbeInterpreter(ctx, pyext.ExecRunner{}, s.build.PythonPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "python %s (%s) ext suffix %q\n", interp.Version, interp.Path, interp.ExtSuffix)

	full, err := pyext.ExtensionFullPath(s.build, s.ext)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "artifact %s\n", full)
	return nil
}

func runWatch(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var common commonFlags
	common.register(fs)
	delay := fs.Duration("delay", pyext.DefaultWatchDelay, "Quiet period before a rebuild")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, err := openSession(&common, stderr)
	if err != nil {
		return err
	}
	if err := s.prepareInterpreter(ctx); err != nil {
		return err
	}
	// Keep watching after a failed build
	s.build.StopOnFailure = false

	builder, err := pyext.NewBuilderFactory().Detect(s.ext.SourceDir)
	if err != nil {
		return err
	}

	return pyext.Watch(ctx, builder, s.build, s.ext, pyext.WatchOptions{
		Delay: *delay,
		OnResult: func(result *pyext.BuildResult, err error) {
			if err != nil {
				fmt.Fprintln(stderr, err)
				return
			}
			for _, path := range result.Extensions {
				fmt.Fprintln(stdout, path)
			}
		},
	})
}

func runExports(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("exports", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var common commonFlags
	common.register(fs)
	write := fs.Bool("write", false, "Write __init__.py with the explicit export list")
	check := fs.Bool("check", false, "Fail unless the package directory matches the export list")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, err := openSession(&common, stderr)
	if err != nil {
		return err
	}
	if s.config.Package == "" {
		return &ExitError{Code: 2, Message: "manifest declares no package"}
	}

	pkg, err := s.config.ExportPackage()
	if err != nil {
		return err
	}
	dir := s.config.PackageDirPath()

	if *write {
		path, err := exports.WriteInitFile(dir, pkg)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", path)
	}

	if *check {
		if err := exports.Validate(pkg, dir); err != nil {
			return err
		}
		ns, err := pkg.Load(s.logger.WithContext(ctx))
		if err != nil {
			return err
		}
		for _, name := range ns.Names() {
			module, _ := ns.Lookup(name)
			src := module.Value.(exports.Source)
			fmt.Fprintf(stdout, "%s\t%s\t%s\n", name, src.Kind, src.Path)
		}
		return nil
	}

	if !*write {
		for _, name := range pkg.Names() {
			fmt.Fprintln(stdout, name)
		}
	}
	return nil
}
