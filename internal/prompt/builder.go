package prompt

import (
	"strings"

	"github.com/funnelworks/verdict/internal/models"
)

// Builder assembles the prompts sent to the completion service: the initial
// rules preamble and the corrective retry prompts. The decision vocabulary is
// injected so custom rulesets keep the prompt and the validator in step.
type Builder struct {
	decisions []string
}

// NewBuilder creates a prompt builder for the given decision vocabulary.
func NewBuilder(decisions []string) *Builder {
	return &Builder{decisions: decisions}
}

// Default returns a builder for the built-in Conversion / Drop-Off vocabulary.
func Default() *Builder {
	return NewBuilder([]string{"Conversion", "Drop-Off"})
}

const analyzeHeader = "Now analyze the log:"

// BuildInitial wraps the subject text in the strict rules preamble.
func (b *Builder) BuildInitial(subject string) string {
	alternatives := b.alternatives()

	var sb strings.Builder
	sb.WriteString("Decide ONLY: " + b.commaList() + ".\n")
	sb.WriteString("Analyze the following log file. Determine if the session was a drop-off or a conversion. Provide a reason for your classification\n")
	sb.WriteString("Output EXACTLY:\n")
	sb.WriteString("Tag: " + alternatives + " [Short reason].\n")
	sb.WriteString("1) [Step 1]\n")
	sb.WriteString("2) [Step 2]\n")
	sb.WriteString("3) [Step 3]\n")
	sb.WriteString("…\n")
	sb.WriteString(analyzeHeader + "\n")
	sb.WriteString(subject)
	return sb.String()
}

// BuildRetry constructs the corrective prompt for a retry: the
// failure-specific restatement of the required shape, the previous invalid
// response (when there is one), and the original subject text. After a call
// error there is nothing to correct, so callers resend the initial prompt
// instead.
func (b *Builder) BuildRetry(failure models.FailureKind, subject, previousResponse string) string {
	var suffix string
	if failure == models.FailureNoDecision {
		suffix = b.decisionSuffix()
	} else {
		suffix = b.formatSuffix()
	}

	var sb strings.Builder
	sb.WriteString(suffix)
	if strings.TrimSpace(previousResponse) != "" {
		sb.WriteString("\n\nYour previous response was:\n")
		sb.WriteString(previousResponse)
	}
	sb.WriteString("\n\n" + analyzeHeader + "\n")
	sb.WriteString(subject)
	return strings.TrimSpace(sb.String())
}

// formatSuffix is the restatement used when the decision was present but the
// shape was wrong.
func (b *Builder) formatSuffix() string {
	return `Your last answer was invalid. Output ONLY in this exact format:

Tag: ` + b.alternatives() + ` [Short reason].
1) [Step 1]
2) [Step 2]
3) [Step 3]
…
Do not include any other text.`
}

// decisionSuffix is the restatement used when no decision word was found.
func (b *Builder) decisionSuffix() string {
	return `You must make a clear decision. Your response must include ` + b.quotedList() + ` and follow this exact format:

Tag: ` + b.alternatives() + ` [Short reason].
1) [Step 1]
2) [Step 2]
3) [Step 3]
…`
}

func (b *Builder) alternatives() string {
	return strings.Join(b.decisions, " || ")
}

func (b *Builder) commaList() string {
	return strings.Join(b.decisions, " or ")
}

func (b *Builder) quotedList() string {
	quoted := make([]string, 0, len(b.decisions))
	for _, d := range b.decisions {
		quoted = append(quoted, `"`+d+`"`)
	}
	if len(quoted) <= 1 {
		return strings.Join(quoted, "")
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + " or " + quoted[len(quoted)-1]
}
