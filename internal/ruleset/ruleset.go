package ruleset

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// decisionsPlaceholder marks where the decision alternation is substituted
// into the tag-line pattern.
const decisionsPlaceholder = "%DECISIONS%"

// Ruleset describes the required output shape: the tag line, the enumerated
// step lines, and the closed decision vocabulary. The concrete pattern is a
// content-layer detail, so it is loadable from YAML rather than hard-coded.
type Ruleset struct {
	Name        string   `yaml:"name"`
	Decisions   []string `yaml:"decisions"`
	TagLine     string   `yaml:"tag_line"`
	StepLine    string   `yaml:"step_line"`
	MinSteps    int      `yaml:"min_steps"`
	StripFences bool     `yaml:"strip_fences"`
}

// Default returns the built-in session-outcome ruleset: a first line
// `Tag: <Decision> [<reason>].` with Decision one of Conversion or Drop-Off,
// followed by at least one `N) <step>` line. Matching is case-sensitive.
func Default() *Ruleset {
	return &Ruleset{
		Name:        "session-outcome",
		Decisions:   []string{"Conversion", "Drop-Off"},
		TagLine:     `^Tag:\s*(` + decisionsPlaceholder + `)\s*\[.*?\]\.?\s*$`,
		StepLine:    `^\d+\)\s+.+$`,
		MinSteps:    1,
		StripFences: true,
	}
}

// Load reads a ruleset from a YAML file. Absent keys keep their defaults, so
// a file may override just the decision vocabulary. The file is checked
// against the embedded JSON schema before decoding.
func Load(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ruleset: %w", err)
	}

	if errs := ValidateRulesetBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("ruleset %s: %s", path, strings.Join(errs, "; "))
	}

	rs := Default()
	if err := yaml.Unmarshal(data, rs); err != nil {
		return nil, fmt.Errorf("parsing ruleset: %w", err)
	}

	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("ruleset %s: %w", path, err)
	}

	return rs, nil
}

// Validate checks that the ruleset is internally consistent and that its
// patterns compile.
func (r *Ruleset) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if len(r.Decisions) == 0 {
		return fmt.Errorf("decisions must list at least one value")
	}
	for _, d := range r.Decisions {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("decisions must not contain empty values")
		}
	}
	if r.MinSteps < 0 {
		return fmt.Errorf("min_steps must be >= 0, got %d", r.MinSteps)
	}
	if _, err := regexp.Compile(r.TagPattern()); err != nil {
		return fmt.Errorf("tag_line does not compile: %w", err)
	}
	if _, err := regexp.Compile(r.StepPattern()); err != nil {
		return fmt.Errorf("step_line does not compile: %w", err)
	}
	return nil
}

// TagPattern returns the tag-line pattern with the decision alternation
// substituted for the placeholder.
func (r *Ruleset) TagPattern() string {
	return strings.ReplaceAll(r.TagLine, decisionsPlaceholder, r.alternation())
}

// StepPattern returns the enumerated-step pattern.
func (r *Ruleset) StepPattern() string {
	return r.StepLine
}

// DecisionPattern returns a word-boundary pattern matching any decision in
// the vocabulary, case-sensitively.
func (r *Ruleset) DecisionPattern() string {
	return `\b(` + r.alternation() + `)\b`
}

func (r *Ruleset) alternation() string {
	quoted := make([]string, 0, len(r.Decisions))
	for _, d := range r.Decisions {
		quoted = append(quoted, regexp.QuoteMeta(d))
	}
	return strings.Join(quoted, "|")
}
