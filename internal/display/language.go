package display

import (
	"path/filepath"
	"strings"
)

var languageByExt = map[string]string{
	".py":       "python",
	".js":       "javascript",
	".ts":       "typescript",
	".jsx":      "jsx",
	".tsx":      "tsx",
	".java":     "java",
	".cpp":      "cpp",
	".c":        "c",
	".h":        "c",
	".cs":       "csharp",
	".php":      "php",
	".rb":       "ruby",
	".go":       "go",
	".rs":       "rust",
	".swift":    "swift",
	".kt":       "kotlin",
	".scala":    "scala",
	".sh":       "bash",
	".bash":     "bash",
	".zsh":      "bash",
	".fish":     "fish",
	".ps1":      "powershell",
	".html":     "html",
	".htm":      "html",
	".xml":      "xml",
	".css":      "css",
	".scss":     "scss",
	".sass":     "sass",
	".less":     "less",
	".json":     "json",
	".yaml":     "yaml",
	".yml":      "yaml",
	".toml":     "toml",
	".ini":      "ini",
	".cfg":      "ini",
	".conf":     "ini",
	".sql":      "sql",
	".md":       "markdown",
	".markdown": "markdown",
	".rst":      "rst",
	".r":        "r",
	".m":        "matlab",
	".pl":       "perl",
	".vim":      "vim",
}

// LanguageForPath maps a filename to a syntax-highlighter language name.
// Unknown extensions fall back to plain text.
func LanguageForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	return "text"
}
