// Package reader provides the page-turning logic of a book reading session.
//
// A Reader shows one spread (one or two pages) at a time. Turning to the
// next or previous spread starts a timed transition; the position only moves
// once the transition's timer fires. Input that arrives mid-turn, or that
// would move past either end of the book, is ignored.
package reader

import (
	"sync"
	"time"

	"github.com/metcalfc/commonplace/internal/book"
)

// DefaultFlipDuration is how long a page turn takes.
const DefaultFlipDuration = 500 * time.Millisecond

// Direction of a page turn.
type Direction int

const (
	None Direction = iota
	Forward
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	}
	return "none"
}

// Signal is an input event mapped onto navigation.
type Signal int

const (
	SignalNext Signal = iota
	SignalPrev
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock schedules the end of a page turn.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Options configures a Reader.
type Options struct {
	// PagesPerView is 1 or 2. Anything else means 2.
	PagesPerView int
	FlipDuration time.Duration
	// Clock defaults to the wall clock (time.AfterFunc).
	Clock Clock
	// OnChange is called whenever a turn completes. It runs on whatever
	// goroutine the Clock fires on, without the Reader's lock held.
	OnChange func(State)
}

// State is a snapshot of a Reader's navigation state.
type State struct {
	CurrentIndex  int
	PagesPerView  int
	Transitioning bool
	Direction     Direction
}

// Slot is one position of a spread. Empty marks a position past the end of
// the book.
type Slot struct {
	Ordinal  int
	Fragment book.PageFragment
	Empty    bool
}

// Reader holds the navigation state for one reading session.
type Reader struct {
	pages    []book.PageFragment
	perView  int
	duration time.Duration
	clock    Clock
	onChange func(State)

	mu      sync.Mutex
	index   int
	turning bool
	dir     Direction
	target  int
	timer   Timer
	gen     uint64
	closed  bool
}

// New starts a session on pages, showing the first spread.
func New(pages []book.PageFragment, opts Options) *Reader {
	perView := 2
	if opts.PagesPerView == 1 {
		perView = 1
	}
	duration := opts.FlipDuration
	if duration < 0 {
		duration = 0
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Reader{
		pages:    pages,
		perView:  perView,
		duration: duration,
		clock:    clock,
		onChange: opts.OnChange,
	}
}

// Pages returns the fragment sequence being read.
func (r *Reader) Pages() []book.PageFragment {
	return r.pages
}

// PagesPerView returns 1 or 2.
func (r *Reader) PagesPerView() int {
	return r.perView
}

func (r *Reader) lastIndex() int {
	return len(r.pages) - 1
}

// State returns a snapshot of the navigation state.
func (r *Reader) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Reader) stateLocked() State {
	return State{
		CurrentIndex:  r.index,
		PagesPerView:  r.perView,
		Transitioning: r.turning,
		Direction:     r.dir,
	}
}

// Advance starts a turn to the next spread. It returns false, changing
// nothing, when there is no next spread, a turn is already running, or the
// session is closed.
func (r *Reader) Advance() bool {
	return r.turn(Forward)
}

// Retreat starts a turn to the previous spread, under the same rules as
// Advance.
func (r *Reader) Retreat() bool {
	return r.turn(Backward)
}

// Handle maps an input signal onto Advance or Retreat.
func (r *Reader) Handle(s Signal) bool {
	switch s {
	case SignalNext:
		return r.Advance()
	case SignalPrev:
		return r.Retreat()
	}
	return false
}

func (r *Reader) turn(dir Direction) bool {
	r.mu.Lock()
	if r.closed || r.turning {
		r.mu.Unlock()
		return false
	}

	var next int
	if dir == Forward {
		next = r.index + r.perView
		if next > r.lastIndex() {
			r.mu.Unlock()
			return false
		}
	} else {
		next = r.index - r.perView
		if next < 0 {
			r.mu.Unlock()
			return false
		}
	}

	r.turning, r.dir, r.target = true, dir, next
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	// Scheduled without the lock so a clock may fire synchronously.
	t := r.clock.AfterFunc(r.duration, func() { r.finish(gen) })

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.closed:
		t.Stop()
	case r.turning && r.gen == gen:
		r.timer = t
	}
	return true
}

// finish completes the turn numbered gen. Callbacks from a cancelled turn or
// a closed session are dropped.
func (r *Reader) finish(gen uint64) {
	r.mu.Lock()
	if r.closed || !r.turning || gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.index = r.target
	r.turning, r.dir, r.timer = false, None, nil
	st := r.stateLocked()
	onChange := r.onChange
	r.mu.Unlock()

	if onChange != nil {
		onChange(st)
	}
}

// Seek jumps straight to the spread containing ordinal, without a
// transition. It is ignored mid-turn or after Close.
func (r *Reader) Seek(ordinal int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.turning || len(r.pages) == 0 {
		return false
	}
	if ordinal > r.lastIndex() {
		ordinal = r.lastIndex()
	}
	if ordinal < 0 {
		ordinal = 0
	}
	ordinal -= ordinal % r.perView
	if ordinal == r.index {
		return false
	}
	r.index = ordinal
	return true
}

// CurrentSpread returns the pages on screen. Positions past the end of the
// book are returned as Empty slots. An empty book has no spread.
func (r *Reader) CurrentSpread() []Slot {
	r.mu.Lock()
	index := r.index
	r.mu.Unlock()

	if len(r.pages) == 0 {
		return nil
	}
	slots := make([]Slot, r.perView)
	for i := range slots {
		ord := index + i
		slots[i].Ordinal = ord
		if ord > r.lastIndex() {
			slots[i].Empty = true
			continue
		}
		slots[i].Fragment = r.pages[ord]
	}
	return slots
}

// TotalSpreads is the number of spreads in the book.
func (r *Reader) TotalSpreads() int {
	return book.SpreadCount(len(r.pages), r.perView)
}

// SpreadNumber is the 1-based number of the spread on screen, or 0 for an
// empty book.
func (r *Reader) SpreadNumber() int {
	if len(r.pages) == 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index/r.perView + 1
}

// AtStart reports whether the first spread is on screen.
func (r *Reader) AtStart() bool {
	return r.State().CurrentIndex == 0
}

// AtEnd reports whether the last spread is on screen.
func (r *Reader) AtEnd() bool {
	return r.State().CurrentIndex+r.perView > r.lastIndex()
}

// Close ends the session. A pending turn is cancelled and its timer, should
// it still fire, has no effect. Close is idempotent.
func (r *Reader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.gen++
	r.turning, r.dir = false, None
}
