package session

import "time"

// Default timing parameters.
const (
	DefaultRecognitionCooldown = 2000 * time.Millisecond
	DefaultSuppressionWindow   = 6000 * time.Millisecond
	DefaultNoHandTimeout       = 3000 * time.Millisecond
)

// Timing holds the detection timing rules.
type Timing struct {
	// RecognitionCooldown must be exceeded between two accepted gestures.
	RecognitionCooldown time.Duration
	// SuppressionWindow follows an accepted gesture; frames inside it are
	// display-only.
	SuppressionWindow time.Duration
	// NoHandTimeout is how long the hand may be continuously absent before
	// the attempt fails.
	NoHandTimeout time.Duration
}

// DefaultTiming returns the standard timing rules.
func DefaultTiming() Timing {
	return Timing{
		RecognitionCooldown: DefaultRecognitionCooldown,
		SuppressionWindow:   DefaultSuppressionWindow,
		NoHandTimeout:       DefaultNoHandTimeout,
	}
}

// Signal is the outcome of processing one detection frame.
type Signal int

const (
	// SignalSuppressed means the frame fell inside the suppression window.
	SignalSuppressed Signal = iota
	// SignalAccepted means a gesture was scored.
	SignalAccepted
	// SignalInProgress means a hand is present but the cooldown has not elapsed.
	SignalInProgress
	// SignalHandMissing means no hand was present; the no-hand timer is armed.
	SignalHandMissing
)

func (s Signal) String() string {
	switch s {
	case SignalSuppressed:
		return "suppressed"
	case SignalAccepted:
		return "accepted"
	case SignalInProgress:
		return "in_progress"
	case SignalHandMissing:
		return "hand_missing"
	default:
		return "unknown"
	}
}

// Processor applies the timing rules to a stream of hand-presence frames.
// It knows nothing about courses or counts. It is not safe for concurrent
// use; the owner serializes calls.
type Processor struct {
	timing       Timing
	clock        Clock
	onTimeout    func(token uint64)
	lastAccepted time.Time
	timer        Timer
	token        uint64
}

// NewProcessor creates a processor. onTimeout is invoked from the timer's
// goroutine with the token of the timer that fired; the owner must confirm
// it with Expire before acting on it.
func NewProcessor(timing Timing, clock Clock, onTimeout func(token uint64)) *Processor {
	return &Processor{
		timing:    timing,
		clock:     clock,
		onTimeout: onTimeout,
	}
}

// Process classifies a frame observed at now.
func (p *Processor) Process(now time.Time, handPresent bool) Signal {
	if p.suppressed(now) {
		return SignalSuppressed
	}

	if handPresent {
		p.Cancel()
		if p.lastAccepted.IsZero() || now.Sub(p.lastAccepted) > p.timing.RecognitionCooldown {
			p.lastAccepted = now
			return SignalAccepted
		}
		return SignalInProgress
	}

	if p.timer == nil {
		p.token++
		token := p.token
		p.timer = p.clock.AfterFunc(p.timing.NoHandTimeout, func() {
			if p.onTimeout != nil {
				p.onTimeout(token)
			}
		})
	}
	return SignalHandMissing
}

func (p *Processor) suppressed(now time.Time) bool {
	return !p.lastAccepted.IsZero() && now.Sub(p.lastAccepted) < p.timing.SuppressionWindow
}

// Pending reports whether a no-hand timer is armed.
func (p *Processor) Pending() bool {
	return p.timer != nil
}

// Cancel stops the pending no-hand timer, if any, and invalidates its token.
func (p *Processor) Cancel() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.token++
}

// Expire consumes a fired timer. It returns false if the token was
// superseded by a Cancel or a newer timer.
func (p *Processor) Expire(token uint64) bool {
	if p.timer == nil || token != p.token {
		return false
	}
	p.timer = nil
	return true
}

// LastAccepted returns when the last gesture was accepted.
func (p *Processor) LastAccepted() time.Time {
	return p.lastAccepted
}
