// Package prompts loads the task definitions used by the pipeline stages and
// renders them into engine tasks. Definitions are YAML files; built-in
// defaults are embedded in the binary and may be overridden from a directory.
package prompts

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/newsroom/internal/engine"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

// Names of the built-in definitions, one per stage.
const (
	Research  = "research"
	Summarize = "summarize"
	Editorial = "editorial"
)

// required lists the placeholders each definition's description must use.
var required = map[string][]string{
	Research:  nil,
	Summarize: {"topic"},
	Editorial: {"topic", "summary"},
}

var placeholderRE = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// ConfigError reports a definition that cannot be loaded or rendered.
type ConfigError struct {
	Definition  string
	Placeholder string // set for missing or unresolved placeholders
	Reason      string
	Err         error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "prompts: %s", e.Definition)
	if e.Placeholder != "" {
		fmt.Fprintf(&b, ": {{%s}}", e.Placeholder)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Metadata describes a definition revision.
type Metadata struct {
	Version     string `yaml:"version"`
	LastUpdated string `yaml:"last_updated"`
}

// AgentSpec is the persona performing a task.
type AgentSpec struct {
	Role      string `yaml:"role"`
	Goal      string `yaml:"goal"`
	Backstory string `yaml:"backstory"`
}

// TaskSpec is the templated work description.
type TaskSpec struct {
	Description    string `yaml:"description"`
	ExpectedOutput string `yaml:"expected_output"`
}

// Definition is one parsed prompt file.
type Definition struct {
	Name     string    `yaml:"-"`
	Source   string    `yaml:"-"`
	Metadata Metadata  `yaml:"metadata"`
	Agent    AgentSpec `yaml:"agent"`
	Task     TaskSpec  `yaml:"task"`
}

// Parse decodes a definition and checks it uses the placeholders its stage
// requires.
func Parse(name string, data []byte) (Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Definition{}, &ConfigError{Definition: name, Reason: "invalid yaml", Err: err}
	}
	d.Name = name
	if strings.TrimSpace(d.Agent.Role) == "" {
		return Definition{}, &ConfigError{Definition: name, Reason: "agent.role is empty"}
	}
	if strings.TrimSpace(d.Task.Description) == "" {
		return Definition{}, &ConfigError{Definition: name, Reason: "task.description is empty"}
	}

	used := Placeholders(d.Task.Description)
	for _, p := range required[name] {
		if !slices.Contains(used, p) {
			return Definition{}, &ConfigError{Definition: name, Placeholder: p, Reason: "required placeholder missing from task.description"}
		}
	}
	return d, nil
}

// Placeholders returns the distinct placeholder names in s, in order of first
// appearance.
func Placeholders(s string) []string {
	var out []string
	for _, m := range placeholderRE.FindAllStringSubmatch(s, -1) {
		if !slices.Contains(out, m[1]) {
			out = append(out, m[1])
		}
	}
	return out
}

// Substitute replaces every {{name}} token in s with vars[name]. It fails if
// any token has no value. Placeholder tokens inside a value are neutralized to
// "{ {name} }", so the result never contains a token that a later pass would
// expand.
func Substitute(s string, vars map[string]string) (string, error) {
	var missing string
	out := placeholderRE.ReplaceAllStringFunc(s, func(tok string) string {
		name := tok[2 : len(tok)-2]
		v, ok := vars[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return tok
		}
		return neutralize(v)
	})
	if missing != "" {
		return "", &ConfigError{Placeholder: missing, Reason: "unresolved placeholder"}
	}
	return out, nil
}

func neutralize(v string) string {
	return placeholderRE.ReplaceAllString(v, "{ {$1} }")
}

// Render substitutes vars into every templated field of d.
func (d Definition) Render(vars map[string]string) (engine.Task, error) {
	fields := []*string{
		&d.Agent.Role, &d.Agent.Goal, &d.Agent.Backstory,
		&d.Task.Description, &d.Task.ExpectedOutput,
	}
	for _, f := range fields {
		s, err := Substitute(*f, vars)
		if err != nil {
			var ce *ConfigError
			if errors.As(err, &ce) {
				ce.Definition = d.Name
			}
			return engine.Task{}, err
		}
		*f = s
	}
	return engine.Task{
		Name:           d.Name,
		Role:           d.Agent.Role,
		Goal:           d.Agent.Goal,
		Backstory:      d.Agent.Backstory,
		Description:    d.Task.Description,
		ExpectedOutput: d.Task.ExpectedOutput,
	}, nil
}

// Set holds the three stage definitions.
type Set struct {
	Research  Definition
	Summarize Definition
	Editorial Definition
}

// Get returns the definition named name.
func (s *Set) Get(name string) (Definition, bool) {
	switch name {
	case Research:
		return s.Research, true
	case Summarize:
		return s.Summarize, true
	case Editorial:
		return s.Editorial, true
	}
	return Definition{}, false
}

// Defaults returns the embedded definitions.
func Defaults() (*Set, error) {
	return Load("", nil)
}

// Load reads the stage definitions. For each stage, <dir>/<name>.yaml (or
// .yml) wins over the embedded default. An empty dir uses only the defaults.
func Load(dir string, log *slog.Logger) (*Set, error) {
	if log == nil {
		log = slog.Default()
	}

	load := func(name string) (Definition, error) {
		data, source, err := read(dir, name)
		if err != nil {
			return Definition{}, err
		}
		d, err := Parse(name, data)
		if err != nil {
			return Definition{}, err
		}
		d.Source = source
		log.Debug("prompt definition loaded",
			"name", name,
			"source", source,
			"version", d.Metadata.Version,
			"last_updated", d.Metadata.LastUpdated,
		)
		return d, nil
	}

	var (
		set Set
		err error
	)
	if set.Research, err = load(Research); err != nil {
		return nil, err
	}
	if set.Summarize, err = load(Summarize); err != nil {
		return nil, err
	}
	if set.Editorial, err = load(Editorial); err != nil {
		return nil, err
	}
	return &set, nil
}

func read(dir, name string) ([]byte, string, error) {
	if dir != "" {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, name+ext)
			data, err := os.ReadFile(path)
			if err == nil {
				return data, path, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, "", &ConfigError{Definition: name, Reason: "read " + path, Err: err}
			}
		}
	}
	data, err := defaultsFS.ReadFile("defaults/" + name + ".yaml")
	if err != nil {
		return nil, "", &ConfigError{Definition: name, Reason: "no embedded default", Err: err}
	}
	return data, "embedded", nil
}
