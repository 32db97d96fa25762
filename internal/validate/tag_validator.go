package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/funnelworks/verdict/internal/models"
	"github.com/funnelworks/verdict/internal/ruleset"
)

// TagValidator checks the required output shape: a first line of the form
// `Tag: <Decision> [<optional reason>].` with the decision drawn exactly from
// the closed vocabulary, followed by enumerated `N) <step>` lines.
type TagValidator struct {
	name        string
	tagRe       *regexp.Regexp
	stepRe      *regexp.Regexp
	decisionRe  *regexp.Regexp
	minSteps    int
	stripFences bool
}

// NewTagValidator compiles a ruleset into a validator.
func NewTagValidator(name string, rs *ruleset.Ruleset) (*TagValidator, error) {
	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ruleset: %w", err)
	}

	tagRe, err := regexp.Compile(rs.TagPattern())
	if err != nil {
		return nil, fmt.Errorf("compiling tag pattern: %w", err)
	}
	stepRe, err := regexp.Compile(`(?m)` + rs.StepPattern())
	if err != nil {
		return nil, fmt.Errorf("compiling step pattern: %w", err)
	}
	decisionRe, err := regexp.Compile(rs.DecisionPattern())
	if err != nil {
		return nil, fmt.Errorf("compiling decision pattern: %w", err)
	}

	return &TagValidator{
		name:        name,
		tagRe:       tagRe,
		stepRe:      stepRe,
		decisionRe:  decisionRe,
		minSteps:    rs.MinSteps,
		stripFences: rs.StripFences,
	}, nil
}

func (v *TagValidator) Name() string { return v.name }
func (v *TagValidator) Kind() Kind   { return KindTag }

// Validate checks text against the tag shape. The result carries the
// extracted decision when one is present even if the shape is wrong, so the
// caller can choose the right corrective prompt.
func (v *TagValidator) Validate(text string) *models.ValidationResult {
	cleaned := text
	if v.stripFences {
		cleaned = stripFences(cleaned)
	}

	lines := nonEmptyLines(cleaned)

	var reasons []string
	formatValid := true
	var tagDecision string

	if len(lines) == 0 {
		formatValid = false
		reasons = append(reasons, "response is empty")
	} else {
		if m := v.tagRe.FindStringSubmatch(lines[0]); m != nil {
			if len(m) > 1 {
				tagDecision = m[1]
			}
		} else {
			formatValid = false
			reasons = append(reasons, "first line does not match the tag pattern")
		}

		steps := v.stepRe.FindAllString(strings.Join(lines[1:], "\n"), -1)
		if len(steps) < v.minSteps {
			formatValid = false
			reasons = append(reasons, fmt.Sprintf("expected at least %d enumerated step(s), found %d", v.minSteps, len(steps)))
		}
	}

	decision := tagDecision
	if decision == "" {
		if m := v.decisionRe.FindStringSubmatch(cleaned); m != nil {
			decision = m[1]
		}
	}
	hasDecision := decision != ""
	if !hasDecision {
		reasons = append(reasons, "no decision word found")
	}

	result := &models.ValidationResult{
		Valid:    formatValid && hasDecision,
		Decision: models.DecisionUnknown,
		RawText:  text,
		Reasons:  reasons,
	}
	if hasDecision {
		result.Decision = models.Decision(decision)
	}

	switch {
	case result.Valid:
		result.Failure = models.FailureNone
	case !hasDecision:
		result.Failure = models.FailureNoDecision
	default:
		result.Failure = models.FailureBadFormat
	}

	return result
}

// stripFences removes surrounding backticks so fenced model output still
// validates on its content.
func stripFences(text string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(text), "`"))
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(ln); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
