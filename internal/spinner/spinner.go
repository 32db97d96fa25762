package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const frameInterval = 80 * time.Millisecond

// Spinner animates a status line on a terminal writer. The message can be
// swapped while the spinner runs, which batch commands use to show the file
// currently being validated.
type Spinner struct {
	w io.Writer

	mu      sync.Mutex
	message string
	width   int // widest line drawn so far, for clearing

	done     chan struct{}
	cleared  chan struct{}
	stopOnce sync.Once
}

// Start begins animating message on w. Call Stop to clear the line.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		w:       w,
		message: message,
		done:    make(chan struct{}),
		cleared: make(chan struct{}),
	}
	go s.loop()
	return s
}

// SetMessage replaces the animated message from the next frame on.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop halts the animation and clears the line. It blocks until the line is
// clean so the caller can print over it, and is safe to call twice.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	<-s.cleared
}

func (s *Spinner) loop() {
	i := 0
	for {
		select {
		case <-s.done:
			s.mu.Lock()
			fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.width)) //nolint:errcheck
			s.mu.Unlock()
			close(s.cleared)
			return
		case <-time.After(frameInterval):
			s.mu.Lock()
			line := fmt.Sprintf("%s %s", frames[i%len(frames)], s.message)
			lineWidth := runewidth.StringWidth(line)
			if lineWidth > s.width {
				s.width = lineWidth
			}
			// Pad to the widest line so a shorter message leaves no residue.
			fmt.Fprintf(s.w, "\r%s%s", line, strings.Repeat(" ", s.width-lineWidth)) //nolint:errcheck
			s.mu.Unlock()
			i++
		}
	}
}
