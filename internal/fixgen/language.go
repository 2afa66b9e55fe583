package fixgen

import (
	"path/filepath"
	"strings"
)

// DetectLanguage maps a file extension to the language name sent to the oracle.
func DetectLanguage(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".go":
		return "Go"
	case ".js", ".mjs", ".cjs", ".jsx":
		return "JavaScript"
	case ".ts", ".tsx":
		return "TypeScript"
	case ".py":
		return "Python"
	case ".rb":
		return "Ruby"
	case ".java":
		return "Java"
	case ".kt", ".kts":
		return "Kotlin"
	case ".rs":
		return "Rust"
	case ".php":
		return "PHP"
	case ".cs":
		return "C#"
	case ".cpp", ".cc", ".cxx", ".hpp":
		return "C++"
	case ".c", ".h":
		return "C"
	case ".swift":
		return "Swift"
	case ".sh", ".bash":
		return "Shell"
	case ".sql":
		return "SQL"
	case ".yaml", ".yml":
		return "YAML"
	case ".html", ".htm", ".xml", ".vue", ".svelte":
		return "HTML"
	case ".css", ".scss":
		return "CSS"
	case ".lua":
		return "Lua"
	default:
		return "unknown"
	}
}

// commentSyntax returns the line-comment opener and closer for language.
func commentSyntax(language string) (opener, closer string) {
	switch language {
	case "Python", "Ruby", "Shell", "YAML":
		return "#", ""
	case "SQL", "Lua":
		return "--", ""
	case "HTML":
		return "<!--", " -->"
	case "CSS":
		return "/*", " */"
	default:
		return "//", ""
	}
}
