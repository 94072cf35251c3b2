package javasrc

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// extToLanguage maps file extensions to canonical language names.
var extToLanguage = map[string]string{
	".java": "java",
}

var (
	grammar     *sitter.Language
	grammarOnce sync.Once
)

func javaGrammar() *sitter.Language {
	grammarOnce.Do(func() {
		grammar = java.GetLanguage()
	})
	return grammar
}

// LanguageForFile returns the canonical language name for a file path based
// on its extension. Returns ("", false) if the extension is not recognized.
func LanguageForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extToLanguage[ext]
	return lang, ok
}

// IsSourceFile reports whether path names a source file this package parses.
func IsSourceFile(path string) bool {
	_, ok := LanguageForFile(path)
	return ok
}
