package exports

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// Registration and load errors
var (
	ErrInvalidName     = errors.New("invalid module name")
	ErrReservedName    = errors.New("reserved module name")
	ErrDuplicateModule = errors.New("module already registered")
	ErrNilModule       = errors.New("factory returned no module")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Python keywords cannot be bound as attributes with plain syntax.
var pythonKeywords = map[string]struct{}{
	"False": {}, "None": {}, "True": {}, "and": {}, "as": {}, "assert": {},
	"async": {}, "await": {}, "break": {}, "class": {}, "continue": {}, "def": {},
	"del": {}, "elif": {}, "else": {}, "except": {}, "finally": {}, "for": {},
	"from": {}, "global": {}, "if": {}, "import": {}, "in": {}, "is": {},
	"lambda": {}, "nonlocal": {}, "not": {}, "or": {}, "pass": {}, "raise": {},
	"return": {}, "try": {}, "while": {}, "with": {}, "yield": {},
}

// Factory produces the module object bound under a submodule name.
type Factory func(ctx context.Context) (any, error)

// Module is a loaded submodule.
type Module struct {
	Name  string
	Doc   string
	Value any
}

type entry struct {
	name    string
	doc     string
	factory Factory
}

// Package is the ordered, explicit export list of one package.
//
// Not safe for concurrent registration; declare every module before calling Load.
type Package struct {
	name    string
	entries []entry
	index   map[string]int
}

// New creates an empty export list for the named package.
func New(name string) *Package {
	return &Package{
		name:  name,
		index: make(map[string]int),
	}
}

// Name returns the package name.
func (p *Package) Name() string {
	return p.name
}

// Register declares a submodule.
//
// The name must be a Python identifier that is neither a keyword nor a
// dunder name such as __path__, and must not already be registered.
func (p *Package) Register(name, doc string, factory Factory) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if factory == nil {
		return fmt.Errorf("module %q: nil factory", name)
	}
	if _, exists := p.index[name]; exists {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateModule, p.name, name)
	}

	p.index[name] = len(p.entries)
	p.entries = append(p.entries, entry{name: name, doc: doc, factory: factory})
	return nil
}

// MustRegister is like Register but panics on error.
func (p *Package) MustRegister(name, doc string, factory Factory) {
	if err := p.Register(name, doc, factory); err != nil {
		panic(err)
	}
}

// Names returns the declared submodule names in declaration order.
func (p *Package) Names() []string {
	names := make([]string, len(p.entries))
	for i, e := range p.entries {
		names[i] = e.name
	}
	return names
}

// Doc returns the documentation of a declared submodule.
func (p *Package) Doc(name string) string {
	if i, ok := p.index[name]; ok {
		return p.entries[i].doc
	}
	return ""
}

// LoadError reports the submodule whose factory failed.
type LoadError struct {
	Package string
	Module  string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s.%s: %v", e.Package, e.Module, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load runs every factory in declaration order and returns the resulting namespace.
//
// The first failing factory aborts the load with a *LoadError and no
// namespace. Each call re-runs all factories and returns a fresh Namespace.
func (p *Package) Load(ctx context.Context) (*Namespace, error) {
	logger := zerolog.Ctx(ctx)

	ns := &Namespace{
		pkg:     p.name,
		names:   make([]string, 0, len(p.entries)),
		modules: make(map[string]*Module, len(p.entries)),
	}

	for _, e := range p.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		value, err := e.factory(ctx)
		if err == nil && value == nil {
			err = ErrNilModule
		}
		if err != nil {
			logger.Error().Err(err).Str("package", p.name).Str("module", e.name).Msg("module load failed")
			return nil, &LoadError{Package: p.name, Module: e.name, Err: err}
		}

		ns.names = append(ns.names, e.name)
		ns.modules[e.name] = &Module{Name: e.name, Doc: e.doc, Value: value}
		logger.Debug().Str("package", p.name).Str("module", e.name).Msg("module loaded")
	}

	return ns, nil
}

// Namespace is the result of a successful Load.
type Namespace struct {
	pkg     string
	names   []string
	modules map[string]*Module
}

// Package returns the name of the package the namespace belongs to.
func (n *Namespace) Package() string {
	return n.pkg
}

// Names returns the exported names in declaration order.
func (n *Namespace) Names() []string {
	return append([]string{}, n.names...)
}

// Lookup returns the module bound under name.
func (n *Namespace) Lookup(name string) (*Module, bool) {
	m, ok := n.modules[name]
	return m, ok
}

// Len returns the number of exported modules.
func (n *Namespace) Len() int {
	return len(n.names)
}

// ValidateName reports whether name can be bound as a package attribute.
func ValidateName(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, ok := pythonKeywords[name]; ok {
		return fmt.Errorf("%w: %q is a Python keyword", ErrInvalidName, name)
	}
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	return nil
}
