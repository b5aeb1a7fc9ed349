package exports

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

var initTemplate = template.Must(template.New("init").Parse(`"""{{.Package}}: generated export list, do not edit."""
{{range .Modules}}
from . import {{.Name}}{{if .Doc}}  # {{.Doc}}{{end}}{{end}}

__all__ = [{{range .Modules}}
    "{{.Name}}",{{end}}
]
`))

type initModule struct {
	Name string
	Doc  string
}

// WriteInit renders an __init__.py that imports every declared submodule of
// pkg explicitly and sets __all__ to the declaration order.
func WriteInit(w io.Writer, pkg *Package) error {
	data := struct {
		Package string
		Modules []initModule
	}{Package: pkg.Name()}

	for _, name := range pkg.Names() {
		doc := strings.Join(strings.Fields(pkg.Doc(name)), " ")
		data.Modules = append(data.Modules, initModule{Name: name, Doc: doc})
	}

	if err := initTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render __init__.py for %s: %w", pkg.Name(), err)
	}
	return nil
}

// WriteInitFile writes the rendered __init__.py into dir and returns its path.
func WriteInitFile(dir string, pkg *Package) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, initFile)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	if err := WriteInit(f, pkg); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
