package report

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Class is the report-side classification of one artifact. It is wider than
// the runner's decision vocabulary because historical artifacts predate the
// strict output shape.
type Class string

const (
	ClassConversion Class = "Conversion"
	ClassDropOff    Class = "Drop-Off"
	ClassMixed      Class = "Mixed"
	ClassUnknown    Class = "Unknown"
	ClassNone       Class = "None"
	ClassError      Class = "Error"
)

// TagAnalysis is the result of classifying one artifact body.
type TagAnalysis struct {
	Class    Class
	TagValue string
	Reason   string
	Steps    int
}

var (
	tagLineRe   = regexp.MustCompile(`(?im)^[ \t]*tag[ \t]*:[ \t]*([a-zA-Z \t\-_]+)(?:[ \t]*\[([^\]]*)\])?`)
	tagInlineRe = regexp.MustCompile(`(?i)tag[ \t]*:[ \t]*([a-zA-Z \t\-_]+)(?:[ \t]*\[([^\]]*)\])?`)
	stepLineRe  = regexp.MustCompile(`(?m)^[ \t]*\d+[.)][ \t]+`)
)

// Keyword lists for tolerant tag-value classification. Matching is
// case-insensitive substring, so "Converted" and "completed purchase" both
// count as conversions.
var (
	conversionKeywords = []string{"conversion", "convert", "converted", "success", "completed"}
	dropOffKeywords    = []string{"drop-off", "dropoff", "drop off", "drop_off", "abandon", "abandoned", "exit", "left"}
)

// AnalyzeText classifies a response or artifact body. Reasoning blocks are
// discarded first (only text after a closing </think> marker is considered),
// then the tag is extracted with a tolerance ladder that also accepts
// markdown-bolded variants like "**Tag:** Conversion".
func AnalyzeText(content string) TagAnalysis {
	content = stripThink(content)

	value, reason, found := extractTag(content)
	steps := len(stepLineRe.FindAllString(content, -1))

	if !found {
		return TagAnalysis{Class: ClassNone, Steps: steps}
	}

	return TagAnalysis{
		Class:    classifyTag(value),
		TagValue: value,
		Reason:   reason,
		Steps:    steps,
	}
}

func stripThink(content string) string {
	if idx := strings.Index(content, "</think>"); idx >= 0 {
		return content[idx+len("</think>"):]
	}
	return content
}

// extractTag tries the strict line-anchored pattern before the loose inline
// one, and for each pattern the raw text before the markdown-normalized
// rendering. An anchored match on normalized text (the "**Tag:** X [reason]"
// shape) beats an inline match on raw text that would drop the reason.
func extractTag(content string) (value, reason string, found bool) {
	candidates := []string{content, markdownToText([]byte(content))}

	for _, re := range []*regexp.Regexp{tagLineRe, tagInlineRe} {
		for _, candidate := range candidates {
			if m := re.FindStringSubmatch(candidate); m != nil {
				return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
			}
		}
	}
	return "", "", false
}

func classifyTag(value string) Class {
	low := strings.ToLower(value)

	conversion := containsAny(low, conversionKeywords)
	dropOff := containsAny(low, dropOffKeywords)

	switch {
	case conversion && dropOff:
		return ClassMixed
	case conversion:
		return ClassConversion
	case dropOff:
		return ClassDropOff
	default:
		return ClassUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// markdownToText renders markdown to plain text by walking the goldmark AST
// and keeping only text content. Emphasis markers disappear because they are
// structure, not text.
func markdownToText(source []byte) string {
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch v := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(v.Segment.Value(source))
				if v.SoftLineBreak() || v.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(v.Value)
			}
		default:
			if !entering && n.Type() == ast.TypeBlock {
				buf.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})

	return buf.String()
}
