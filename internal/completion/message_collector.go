package completion

import (
	copilot "github.com/github/copilot-sdk/go"
)

const sessionFailedUnknown = "session failed with unknown error"

// messageCollector gathers assistant output from a copilot session. The SDK
// delivers events on a single dispatch goroutine, so no locking is needed.
type messageCollector struct {
	parts    []string
	errorMsg string
	done     chan struct{}
}

func newMessageCollector() *messageCollector {
	return &messageCollector{
		done: make(chan struct{}),
	}
}

// Parts returns the collected output text parts.
func (coll *messageCollector) Parts() []string {
	return coll.parts
}

// ErrorMessage returns the error message, if any.
func (coll *messageCollector) ErrorMessage() string {
	return coll.errorMsg
}

// Done returns the channel that is closed when the session completes.
func (coll *messageCollector) Done() <-chan struct{} {
	return coll.done
}

// On is a callback, intended to be passed to [copilot.Session.On] to receive
// events in real-time.
func (coll *messageCollector) On(event copilot.SessionEvent) {
	switch event.Type {
	case copilot.AssistantMessage, copilot.AssistantMessageDelta:
		if event.Data.Content != nil {
			coll.parts = append(coll.parts, *event.Data.Content)
		}

	// these are both termination events
	case copilot.SessionIdle, copilot.SessionError:
		if event.Type == copilot.SessionError {
			if event.Data.Message == nil || *event.Data.Message == "" {
				coll.errorMsg = sessionFailedUnknown
			} else {
				coll.errorMsg = *event.Data.Message
			}
		}

		select {
		case <-coll.done:
		default:
			close(coll.done)
		}
	}
}
