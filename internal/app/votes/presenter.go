package votes

import (
	"sync"

	"github.com/cercia-labs/cercia-core/internal/domain"
)

// Presenter is the on-page vote control of one item.
type Presenter interface {
	// SetBusy shows or hides the in-flight affordance; it doubles as the soft lock
	// the user sees.
	SetBusy(busy bool)
	// Render shows the vote state and count.
	Render(state domain.Direction, count int)
	// Disable turns the control off permanently with an explanation.
	Disable(reason string)
}

type nopPresenter struct{}

func (nopPresenter) SetBusy(bool)                 {}
func (nopPresenter) Render(domain.Direction, int) {}
func (nopPresenter) Disable(string)               {}

// Frame is one Render call.
type Frame struct {
	State domain.Direction
	Count int
}

// Recorder is a Presenter that remembers every call. The bridge uses it to report
// what the control should show. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	busy     []bool
	frames   []Frame
	disabled string
}

func (r *Recorder) SetBusy(busy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busy = append(r.busy, busy)
}

func (r *Recorder) Render(state domain.Direction, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, Frame{State: state, Count: count})
}

func (r *Recorder) Disable(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled = reason
}

func (r *Recorder) Busy() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.busy...)
}

func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

// Last returns the most recent frame.
func (r *Recorder) Last() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return Frame{}, false
	}
	return r.frames[len(r.frames)-1], true
}

func (r *Recorder) Disabled() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disabled
}
