package textnorm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// builtinVocabulary maps canonical skill names to the aliases seen in
// resumes and postings. Keys and aliases are cleaned before use.
var builtinVocabulary = map[string][]string{
	// languages
	"go":         {"golang"},
	"python":     {"python3"},
	"java":       nil,
	"javascript": {"js", "ecmascript"},
	"typescript": {"ts"},
	"c++":        {"cpp"},
	"c#":         {"csharp", "c sharp"},
	"rust":       nil,
	"ruby":       nil,
	"php":        nil,
	"kotlin":     nil,
	"swift":      nil,
	"scala":      nil,
	"sql":        nil,
	"bash":       {"shell scripting"},

	// frameworks
	"react":   {"react.js", "reactjs"},
	"vue":     {"vue.js", "vuejs"},
	"angular": {"angularjs"},
	"node.js": {"nodejs", "node"},
	"django":  nil,
	"flask":   nil,
	"fastapi": nil,
	"spring":  {"spring boot"},
	"rails":   {"ruby on rails"},
	"dotnet":  {"asp.net"},

	// data
	"postgresql":    {"postgres", "psql"},
	"mysql":         nil,
	"mongodb":       {"mongo"},
	"redis":         nil,
	"elasticsearch": {"elastic search"},
	"kafka":         {"apache kafka"},
	"rabbitmq":      nil,
	"spark":         {"apache spark", "pyspark"},
	"pandas":        nil,

	// ml
	"machine learning": {"ml"},
	"deep learning":    nil,
	"nlp":              {"natural language processing"},
	"data analysis":    {"data analytics"},

	// infra
	"aws":        {"amazon web services"},
	"gcp":        {"google cloud", "google cloud platform"},
	"azure":      {"microsoft azure"},
	"docker":     nil,
	"kubernetes": {"k8s"},
	"terraform":  nil,
	"ansible":    nil,
	"linux":      nil,
	"ci cd":      {"ci/cd", "cicd", "continuous integration"},
	"git":        nil,

	// apis
	"grpc":         nil,
	"rest api":     {"restful api", "restful"},
	"graphql":      nil,
	"microservice": {"microservice architecture"},

	// practices
	"agile":              {"scrum"},
	"tdd":                {"test driven development"},
	"system design":      nil,
	"project management": nil,
}

// LoadVocabularyFile reads extra skills, one per line. Blank lines and lines
// starting with '#' are ignored. An empty path returns nil.
func LoadVocabularyFile(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary %s: %w", path, err)
	}
	defer f.Close()
	return ReadVocabulary(f)
}

// ReadVocabulary parses the LoadVocabularyFile format from r.
func ReadVocabulary(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return out, nil
}
