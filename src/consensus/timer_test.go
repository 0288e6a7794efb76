package consensus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVoteTimerTicksAfterArm(t *testing.T) {
	vt := NewVoteTimer()
	go vt.Run()
	defer vt.Shutdown()

	vt.Arm(10 * time.Millisecond)

	select {
	case <-vt.Tick():
	case <-time.After(time.Second):
		require.Fail(t, "timer did not tick within 1s of a 10ms arm")
	}
}

func TestVoteTimerCancelSuppressesTick(t *testing.T) {
	vt := NewVoteTimer()
	go vt.Run()
	defer vt.Shutdown()

	vt.Arm(50 * time.Millisecond)
	vt.Cancel()

	select {
	case <-vt.Tick():
		require.Fail(t, "cancelled timer should not tick")
	case <-time.After(100 * time.Millisecond):
	}
}
