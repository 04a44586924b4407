package capture

import (
	"sync"
	"time"
)

type Mode string

const (
	ModeNone   Mode = ""
	ModeSingle Mode = "single"
	ModeBurst  Mode = "burst"
)

type GestureState string

const (
	GestureIdle      GestureState = "idle"
	GesturePressed   GestureState = "pressed"
	GestureLongPress GestureState = "long_press"
)

const DefaultHoldThreshold = 400 * time.Millisecond

// Gesture maps press and release of the shutter to a capture mode. A
// release before the hold threshold is a single debounced shot; holding
// past it fires one burst shot immediately and the release is ignored.
//
//	Idle --press--> Pressed --timer--> LongPress --release--> Idle
//	                Pressed --release--> Idle (single)
type Gesture struct {
	hold time.Duration
	fire func(Mode)

	mu    sync.Mutex
	state GestureState
	timer *time.Timer
	gen   int
}

func NewGesture(hold time.Duration, fire func(Mode)) *Gesture {
	if hold <= 0 {
		hold = DefaultHoldThreshold
	}
	return &Gesture{hold: hold, fire: fire, state: GestureIdle}
}

// Press starts a gesture. A press while one is in progress is ignored.
func (g *Gesture) Press() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GestureIdle {
		return false
	}

	g.state = GesturePressed
	g.gen++
	gen := g.gen
	g.timer = time.AfterFunc(g.hold, func() { g.longPress(gen) })
	return true
}

func (g *Gesture) longPress(gen int) {
	g.mu.Lock()
	if g.state != GesturePressed || g.gen != gen {
		g.mu.Unlock()
		return
	}
	g.state = GestureLongPress
	g.mu.Unlock()

	g.fire(ModeBurst)
}

// Release ends the gesture and reports the mode it fired on release, which
// is ModeSingle for a tap and ModeNone otherwise.
func (g *Gesture) Release() Mode {
	g.mu.Lock()

	switch g.state {
	case GesturePressed:
		g.timer.Stop()
		g.state = GestureIdle
		g.mu.Unlock()
		g.fire(ModeSingle)
		return ModeSingle
	case GestureLongPress:
		g.state = GestureIdle
	}

	g.mu.Unlock()
	return ModeNone
}

// Cancel abandons a gesture without firing.
func (g *Gesture) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
	}
	g.state = GestureIdle
}

func (g *Gesture) State() GestureState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}
