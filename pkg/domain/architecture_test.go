package domain

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// The domain package is shared by every backend and the CLI, so it may only
// import the standard library and text formatting.
func TestDomainImportBoundary(t *testing.T) {
	files, err := filepath.Glob("*.go")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	fset := token.NewFileSet()
	checked := 0
	for _, name := range files {
		if strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, name, nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		checked++
		for _, imp := range f.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				t.Fatalf("%s: bad import literal %s", name, imp.Path.Value)
			}
			if !allowedDomainImport(path) {
				t.Errorf("%s imports %s", name, path)
			}
		}
	}
	if checked == 0 {
		t.Fatalf("no domain sources found")
	}
}

func allowedDomainImport(path string) bool {
	if strings.HasPrefix(path, "golang.org/x/text/") {
		return true
	}
	first, _, _ := strings.Cut(path, "/")
	// Standard library paths have no dot in their first element.
	return !strings.Contains(first, ".") && first != "growthcore"
}
