package node

import "sync/atomic"

// lifecycle captures whether a Node's event loop is running, using the same
// atomic-uint32-backed get/set shape as babble's node.state, trimmed down
// from babble's six-state machine (Babbling/CatchingUp/Joining/Leaving/
// Shutdown/Suspended) to the two states this node actually has: the event
// loop is either running or it has been told to stop. Every other state
// babble tracked there belonged to hashgraph membership changes and
// fast-sync, neither of which this protocol has.
type lifecycle struct {
	running uint32
}

func (l *lifecycle) setRunning(v bool) {
	val := uint32(0)
	if v {
		val = 1
	}
	atomic.StoreUint32(&l.running, val)
}

func (l *lifecycle) isRunning() bool {
	return atomic.LoadUint32(&l.running) == 1
}
