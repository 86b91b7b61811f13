package parser

import (
	"path/filepath"
	"sort"
	"strings"
)

// Registry maps file extensions to languages.
type Registry struct {
	langs map[string]Language // extension -> language
}

func NewRegistry() *Registry {
	return &Registry{langs: make(map[string]Language)}
}

// DefaultRegistry returns a registry with every supported extension.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(".sql", LangSQL)
	r.Register(".java", LangJava)
	for _, ext := range []string{".js", ".jsx", ".mjs", ".cjs"} {
		r.Register(ext, LangJavaScript)
	}
	r.Register(".ts", LangTypeScript)
	r.Register(".tsx", LangTypeScript)
	r.Register(".py", LangPython)
	r.Register(".go", LangGo)
	r.Register(".cs", LangCSharp)
	return r
}

func (r *Registry) Register(ext string, lang Language) {
	r.langs[strings.ToLower(ext)] = lang
}

// ForFile returns the language for a given file path and whether one matched.
func (r *Registry) ForFile(path string) (Language, bool) {
	lang, ok := r.langs[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

// SupportedExtensions returns all registered extensions, sorted.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.langs))
	for ext := range r.langs {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
