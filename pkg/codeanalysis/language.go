package codeanalysis

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// LanguageText is reported for files no lexer recognizes.
const LanguageText = "text"

var extLanguages = map[string]string{
	".go":    "go",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".py":    "python",
	".java":  "java",
	".rb":    "ruby",
	".php":   "php",
	".cs":    "csharp",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".rs":    "rust",
	".kt":    "kotlin",
	".swift": "swift",
	".sh":    "bash",
	".sql":   "sql",
	".yml":   "yaml",
	".yaml":  "yaml",
	".json":  "json",
	".tf":    "terraform",
}

// DetectLanguage names the language of filename the way the backend
// expects it. Unknown extensions fall back to the syntax highlighter's
// lexer registry.
func DetectLanguage(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if lang, ok := extLanguages[ext]; ok {
		return lang
	}
	if lexer := lexers.Match(filepath.Base(filename)); lexer != nil {
		name := strings.ToLower(lexer.Config().Name)
		return strings.ReplaceAll(name, " ", "")
	}
	return LanguageText
}
