package architecture_test

import (
	"bufio"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

type fileImports struct {
	rel     string
	imports []string
}

type violation struct {
	file string
	imp  string
	rule string
}

func TestImportBoundaries(t *testing.T) {
	modulePath, files := loadInternal(t)

	var violations []violation
	for _, f := range files {
		disallowed := disallowedImports(modulePath, layerFor(f.rel))
		for _, imp := range f.imports {
			for _, bad := range disallowed {
				if imp == bad || strings.HasPrefix(imp, bad+"/") {
					violations = append(violations, violation{file: f.rel, imp: imp, rule: bad})
					break
				}
			}
		}
	}
	report(t, "import boundary violations", violations)
}

// The websocket library stays behind the realtime transport and the upgrade
// handler. Everything else talks frames.
func TestWebsocketStaysInTransport(t *testing.T) {
	_, files := loadInternal(t)

	const ws = "github.com/gorilla/websocket"
	var violations []violation
	for _, f := range files {
		if strings.HasSuffix(f.rel, "_test.go") {
			continue
		}
		switch layerFor(f.rel) {
		case "realtime", "http":
			continue
		}
		for _, imp := range f.imports {
			if imp == ws {
				violations = append(violations, violation{file: f.rel, imp: imp, rule: "realtime or http only"})
			}
		}
	}
	report(t, "websocket imports outside the transport", violations)
}

func layerFor(rel string) string {
	for _, layer := range []string{"platform", "domain", "data", "realtime", "services", "http", "app"} {
		if strings.HasPrefix(rel, "internal/"+layer+"/") {
			return layer
		}
	}
	return ""
}

func disallowedImports(modulePath string, layer string) []string {
	var banned []string
	switch layer {
	case "platform":
		banned = []string{"data", "realtime", "services", "http", "app"}
	case "domain":
		banned = []string{"data", "realtime", "services", "http", "app"}
	case "data":
		banned = []string{"realtime", "services", "http", "app"}
	case "realtime":
		banned = []string{"services", "http", "app"}
	case "services":
		banned = []string{"http", "app"}
	case "http":
		banned = []string{"app"}
	}
	out := make([]string, 0, len(banned))
	for _, b := range banned {
		out = append(out, modulePath+"/internal/"+b)
	}
	return out
}

func report(t *testing.T, title string, violations []violation) {
	t.Helper()
	if len(violations) == 0 {
		return
	}
	var b strings.Builder
	b.WriteString(title + ":\n")
	for _, v := range violations {
		fmt.Fprintf(&b, "- %s imports %q (%s)\n", v.file, v.imp, v.rule)
	}
	t.Fatal(b.String())
}

func loadInternal(t *testing.T) (string, []fileImports) {
	t.Helper()

	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	root, err := findModuleRoot(start)
	if err != nil {
		t.Fatalf("find module root: %v", err)
	}
	modulePath, err := readModulePath(filepath.Join(root, "go.mod"))
	if err != nil {
		t.Fatalf("read module path: %v", err)
	}

	fset := token.NewFileSet()
	var files []fileImports
	walkErr := filepath.WalkDir(filepath.Join(root, "internal"), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || d.Name() == "vendor" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		fi := fileImports{rel: filepath.ToSlash(rel)}
		for _, spec := range f.Imports {
			if imp, err := strconv.Unquote(spec.Path.Value); err == nil {
				fi.imports = append(fi.imports, imp)
			}
		}
		files = append(files, fi)
		return nil
	})
	if walkErr != nil {
		t.Fatalf("walk internal/: %v", walkErr)
	}
	return modulePath, files
}

func findModuleRoot(start string) (string, error) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found from %s", start)
		}
		dir = parent
	}
}

func readModulePath(goModPath string) (string, error) {
	f, err := os.Open(goModPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "module ") {
			continue
		}
		if mp := strings.TrimSpace(strings.TrimPrefix(line, "module ")); mp != "" {
			return mp, nil
		}
		return "", fmt.Errorf("empty module path in %s", goModPath)
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("module path not found in %s", goModPath)
}
