// Package scaffolding writes new page files.
package scaffolding

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"go/format"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	gwerrors "github.com/redraskal/gateway/internal/errors"
)

const pageExt = ".go"

//go:embed templates/route.go.tmpl
var routeTemplate string

var pageTemplate = template.Must(template.New("route").Parse(routeTemplate))

// ErrExists is returned when the page file is already present.
var ErrExists = errors.New("scaffolding: file already exists")

// Opener opens a generated file in an editor.
type Opener func(path string) error

// VSCode opens path in the current VS Code window.
func VSCode(path string) error {
	return exec.Command("code", "-r", path).Start()
}

// Generator creates page files under a pages directory.
type Generator struct {
	PagesDir string
	// Open, when set, is called with the written file.
	Open Opener
}

// Param is a dynamic segment of the generated route.
type Param struct {
	Name  string
	Field string
}

// TemplateContext is passed to the route template.
type TemplateContext struct {
	Package  string
	Key      string
	Type     string
	DataType string
	Title    string
	Params   []Param
}

// NewGenerator creates a generator for pagesDir.
func NewGenerator(pagesDir string) *Generator {
	return &Generator{PagesDir: pagesDir}
}

// Generate writes a page for name, e.g. "blog/[slug]" or "about.go", and
// returns the file path. Missing parent directories are created; an existing
// file is never overwritten.
func (g *Generator) Generate(name string) (string, error) {
	key, err := Key(name)
	if err != nil {
		return "", err
	}
	file := filepath.Join(g.PagesDir, filepath.FromSlash(key))

	src, err := Render(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return "", gwerrors.NewIOError("ERR_GEN_DIR", "failed to create directory", err).WithFile(file)
	}
	f, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return "", fmt.Errorf("%w: %s", ErrExists, file)
	}
	if err != nil {
		return "", gwerrors.NewIOError("ERR_GEN_WRITE", "failed to create file", err).WithFile(file)
	}
	if _, err := f.Write(src); err != nil {
		f.Close()
		return "", gwerrors.NewIOError("ERR_GEN_WRITE", "failed to write file", err).WithFile(file)
	}
	if err := f.Close(); err != nil {
		return "", gwerrors.NewIOError("ERR_GEN_WRITE", "failed to write file", err).WithFile(file)
	}

	if g.Open != nil {
		if err := g.Open(file); err != nil {
			return file, fmt.Errorf("open %s: %w", file, err)
		}
	}
	return file, nil
}

// Key normalizes a page name into a route key: forward slashes, no leading
// slash, .go extension.
func Key(name string) (string, error) {
	name = strings.TrimSpace(filepath.ToSlash(name))
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return "", gwerrors.NewValidationError("ERR_GEN_NAME", "page name is empty")
	}
	if !strings.HasSuffix(name, pageExt) {
		name += pageExt
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", gwerrors.ErrPathTraversal(name)
		}
		if part == "" || part == "." {
			return "", gwerrors.ErrInvalidPath(name)
		}
	}
	if strings.HasSuffix(name, "_test.go") {
		return "", gwerrors.NewValidationError("ERR_GEN_NAME", "page name cannot be a test file").WithContext("name", name)
	}
	return path.Clean(name), nil
}

// Render returns the formatted source of the page for key.
func Render(key string) ([]byte, error) {
	ctx := newContext(key)
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, ctx); err != nil {
		return nil, gwerrors.NewInternalError("ERR_GEN_TEMPLATE", "failed to render template", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, gwerrors.NewInternalError("ERR_GEN_FORMAT", "generated source does not parse", err)
	}
	return src, nil
}

func newContext(key string) TemplateContext {
	dir, base := path.Split(strings.TrimSuffix(key, pageExt))
	typeName := TypeName(base)
	ctx := TemplateContext{
		Package:  PackageName(dir),
		Key:      key,
		Type:     typeName,
		DataType: lowerFirst(typeName) + "Data",
		Title:    titleWords(base),
	}
	for _, part := range strings.Split(strings.TrimSuffix(key, pageExt), "/") {
		if name, ok := paramName(part); ok {
			field := TypeName(name)
			if field == "Time" || field == "Secret" {
				field += "Param"
			}
			ctx.Params = append(ctx.Params, Param{Name: name, Field: field})
		}
	}
	return ctx
}

// titleCase upper-cases the first letter of w. Casers are stateful, so each
// call gets its own.
func titleCase(w string) string {
	return cases.Title(language.English).String(w)
}

// words splits s at every rune that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TypeName builds an exported Go identifier from a file base name:
// "blog-post" is BlogPost and "[slug]" is Slug. Names starting with a digit
// get a Page prefix.
func TypeName(base string) string {
	var b strings.Builder
	for _, w := range words(base) {
		b.WriteString(titleCase(w))
	}
	name := b.String()
	if name == "" {
		return "Page"
	}
	if unicode.IsDigit(rune(name[0])) {
		return "Page" + name
	}
	if name == "Index" {
		return "IndexPage"
	}
	return name
}

// PackageName derives the Go package name from a key's directory.
func PackageName(dir string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return "pages"
	}
	last := dir[strings.LastIndex(dir, "/")+1:]
	name := strings.ToLower(strings.Join(words(last), ""))
	if name == "" || unicode.IsDigit(rune(name[0])) {
		return "pages" + name
	}
	return name
}

func titleWords(base string) string {
	ws := words(base)
	if len(ws) == 0 {
		return "Page"
	}
	for i, w := range ws {
		ws[i] = titleCase(w)
	}
	return strings.Join(ws, " ")
}

func paramName(part string) (string, bool) {
	if !strings.HasPrefix(part, "[") || !strings.HasSuffix(part, "]") {
		return "", false
	}
	name := strings.Trim(part, "[]")
	name = strings.TrimPrefix(name, "...")
	return name, name != ""
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
