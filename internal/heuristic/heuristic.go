// Package heuristic contains a keyword-based classifier for e-commerce
// session logs. It never replaces the model's answer; batch runs attach its
// advice to fallback artifacts so a human reviewer has a starting point.
package heuristic

import (
	"regexp"

	"github.com/funnelworks/verdict/internal/models"
)

var (
	// 2xx backend responses, either as a status_code field or an arrow trace.
	successRe = regexp.MustCompile(`status_code["']?\s*:\s*2\d\d|→\s*200`)

	// Signs the add-item business goal was at least started.
	startedRe = regexp.MustCompile(`(?i)Add Item|/api/items|items`)

	// A goal endpoint reaching terminal success.
	terminalRe = regexp.MustCompile(`(?i)POST\s+/api/items.*?(200|201)`)
)

// Advice is a heuristic read of a session log.
type Advice struct {
	Decision models.Decision `json:"decision"`
	Reason   string          `json:"reason"`
	Signals  []string        `json:"signals,omitempty"`
}

// Advise scans the raw log text for goal and status signals, mirroring how a
// reviewer would skim it. Always returns a non-nil Advice.
func Advise(logText string) *Advice {
	started := startedRe.MatchString(logText)
	terminal := terminalRe.MatchString(logText)
	success := successRe.MatchString(logText)

	var signals []string
	if started {
		signals = append(signals, "goal_started")
	}
	if terminal {
		signals = append(signals, "terminal_success")
	}
	if success {
		signals = append(signals, "2xx_observed")
	}

	switch {
	case started && !terminal:
		return &Advice{
			Decision: models.DecisionDropOff,
			Reason:   `"Add Item" started without terminal success.`,
			Signals:  signals,
		}
	case success:
		return &Advice{
			Decision: models.DecisionConversion,
			Reason:   "Observed terminal backend success on a goal endpoint.",
			Signals:  signals,
		}
	default:
		return &Advice{
			Decision: models.DecisionDropOff,
			Reason:   "No business goal reached terminal success.",
			Signals:  signals,
		}
	}
}
