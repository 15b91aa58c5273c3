package lang

import (
	"os"
	"path/filepath"
	"strings"
)

type Language string

const (
	Cpp     Language = "cpp"
	Python  Language = "python"
	Java    Language = "java"
	Unknown Language = "unknown"
)

// All lists the languages the engine can build and run.
var All = []Language{Cpp, Python, Java}

func Parse(s string) Language {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpp", "c++", "cxx":
		return Cpp
	case "python", "py", "python3":
		return Python
	case "java":
		return Java
	}
	return Unknown
}

// Extension returns the canonical source file extension.
func (l Language) Extension() string {
	switch l {
	case Cpp:
		return ".cpp"
	case Python:
		return ".py"
	case Java:
		return ".java"
	}
	return ""
}

// Detect classifies a file by its extension only.
func Detect(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cpp", ".cc", ".cxx", ".c++", ".h", ".hpp", ".hxx":
		return Cpp
	case ".py", ".pyw":
		return Python
	case ".java":
		return Java
	default:
		return Unknown
	}
}

var contentPatterns = []struct {
	lang     Language
	patterns []string
}{
	{Java, []string{"public class ", "public static void main", "import java."}},
	{Cpp, []string{"#include", "using namespace std", "int main("}},
	{Python, []string{"def ", "import ", "print(", "if __name__"}},
}

// DetectContent guesses the language of source text. Java is tried
// before C++ since both share C-like syntax.
func DetectContent(content string) Language {
	for _, cp := range contentPatterns {
		for _, p := range cp.patterns {
			if strings.Contains(content, p) {
				return cp.lang
			}
		}
	}
	return Unknown
}

// DetectFile uses the extension and falls back to the file content.
func DetectFile(path string) Language {
	if l := Detect(path); l != Unknown {
		return l
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Unknown
	}
	return DetectContent(string(data))
}
