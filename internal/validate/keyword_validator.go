package validate

import (
	"fmt"
	"strings"

	"github.com/funnelworks/verdict/internal/models"
)

// KeywordValidator checks text for required and forbidden substrings using
// case-insensitive matching. It never extracts a decision.
type KeywordValidator struct {
	name           string
	mustContain    []string
	mustNotContain []string
}

// NewKeywordValidator creates a keyword presence/absence validator.
func NewKeywordValidator(name string, mustContain, mustNotContain []string) *KeywordValidator {
	return &KeywordValidator{
		name:           name,
		mustContain:    mustContain,
		mustNotContain: mustNotContain,
	}
}

func (v *KeywordValidator) Name() string { return v.name }
func (v *KeywordValidator) Kind() Kind   { return KindKeyword }

func (v *KeywordValidator) Validate(text string) *models.ValidationResult {
	var reasons []string
	textLower := strings.ToLower(text)

	for _, keyword := range v.mustContain {
		if !strings.Contains(textLower, strings.ToLower(keyword)) {
			reasons = append(reasons, fmt.Sprintf("missing expected keyword: %s", keyword))
		}
	}

	for _, keyword := range v.mustNotContain {
		if strings.Contains(textLower, strings.ToLower(keyword)) {
			reasons = append(reasons, fmt.Sprintf("found forbidden keyword: %s", keyword))
		}
	}

	result := &models.ValidationResult{
		Valid:    len(reasons) == 0,
		Decision: models.DecisionUnknown,
		RawText:  text,
		Reasons:  reasons,
	}
	if result.Valid {
		result.Failure = models.FailureNone
	} else {
		result.Failure = models.FailureBadFormat
	}
	return result
}
