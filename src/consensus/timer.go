package consensus

import "time"

// VoteTimer is a single-candidate version of babble's ControlTimer
// (src/node/control_timer.go): a dedicated goroutine owns the actual
// *time.Timer, and the caller only ever sends it Arm/Cancel instructions
// and reads its Tick channel. This is how spec.md §9's "voteTimeout.close()
// targets a timer that is not a closable object" open question is resolved:
// Run stops the real timer via Stop() and tracks a generation counter so a
// timer that fires in the same instant a Cancel or re-Arm runs is never
// mistaken for the current one (Stop does not guarantee the fire channel is
// drained before it returns). tickCh is buffered so delivering a Tick can
// never block Run behind an unconsumed one — an unbuffered send here would
// let a concurrent Cancel/Arm from the node's event loop deadlock against
// Run's own blocked send.
type VoteTimer struct {
	tickCh     chan struct{}
	armCh      chan time.Duration
	cancelCh   chan struct{}
	shutdownCh chan struct{}
}

// NewVoteTimer returns a VoteTimer; call Run in its own goroutine before
// using it.
func NewVoteTimer() *VoteTimer {
	return &VoteTimer{
		tickCh:     make(chan struct{}, 1),
		armCh:      make(chan time.Duration),
		cancelCh:   make(chan struct{}),
		shutdownCh: make(chan struct{}),
	}
}

// Run is the timer's owning loop. It never mutates any state outside
// itself; Tick is the only thing it produces.
func (v *VoteTimer) Run() {
	var timer *time.Timer
	var timerC <-chan time.Time
	generation := 0
	armedGeneration := -1

	stop := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = nil
		timerC = nil
	}

	for {
		select {
		case <-timerC:
			timerC = nil
			if armedGeneration != generation {
				// superseded by a Cancel or re-Arm since this timer fired.
				continue
			}
			select {
			case v.tickCh <- struct{}{}:
			default:
			}
		case d := <-v.armCh:
			generation++
			stop()
			timer = time.NewTimer(d)
			timerC = timer.C
			armedGeneration = generation
		case <-v.cancelCh:
			generation++
			stop()
		case <-v.shutdownCh:
			stop()
			return
		}
	}
}

// Tick is fired once every time an armed duration elapses without an
// intervening Cancel or re-Arm.
func (v *VoteTimer) Tick() <-chan struct{} { return v.tickCh }

// Arm (re)arms the timer for d from now, per spec.md §4.6's "arm
// voteTimeout(maxVoteTime)" on opening a slot and "re-arm voteTimeout" on
// every timeout fire.
func (v *VoteTimer) Arm(d time.Duration) { v.armCh <- d }

// Cancel clears any pending timer without firing a Tick. Spec.md §4.6:
// "cancel voteTimeout" on the commit path.
func (v *VoteTimer) Cancel() { v.cancelCh <- struct{}{} }

// Shutdown stops the Run loop permanently.
func (v *VoteTimer) Shutdown() { close(v.shutdownCh) }
