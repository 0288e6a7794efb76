package gossip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/onevoteledger/svnode/src/common"
)

func newTestMesh(t *testing.T) *Mesh {
	return NewMesh(common.NewTestLogger(t).WithField("this_id", "test"))
}

func TestMeshListenDialAndBroadcast(t *testing.T) {
	require := require.New(t)

	server := newTestMesh(t)
	require.NoError(server.Listen("127.0.0.1:18881"))
	// give the listener goroutine a moment to start accepting.
	time.Sleep(50 * time.Millisecond)

	client := newTestMesh(t)
	client.Dial("ws://127.0.0.1:18881/")

	require.True(eventually(t, func() bool { return client.AnyOpen() }), "client should have an open socket after dialing")
	require.True(eventually(t, func() bool { return server.AnyOpen() }), "server should have accepted the inbound connection")

	pub, sign := testSigner(t)
	env, err := New(TypeValidators, nil, "")
	require.NoError(err)
	require.NoError(env.Sign(pub, sign))

	require.NoError(client.Broadcast(env, nil))

	select {
	case ev := <-server.Events():
		require.Equal(EventMessage, ev.Kind)
		decoded, err := Decode(ev.Raw)
		require.NoError(err)
		require.Equal(TypeValidators, decoded.Type)
		require.True(decoded.Verify(), "server received a malformed or unverifiable frame")
	case <-time.After(2 * time.Second):
		require.Fail("server did not receive the broadcast frame")
	}
}

func TestMeshCloseIdentity(t *testing.T) {
	require := require.New(t)

	server := newTestMesh(t)
	require.NoError(server.Listen("127.0.0.1:18882"))
	time.Sleep(50 * time.Millisecond)

	client := newTestMesh(t)
	client.Dial("ws://127.0.0.1:18882/")

	require.True(eventually(t, func() bool { return server.AnyOpen() }), "server should see the inbound socket open")

	pub, sign := testSigner(t)
	env, _ := New(TypeValidator, pub, "")
	_ = env.Sign(pub, sign)
	_ = client.Broadcast(env, nil)

	var ev Event
	select {
	case ev = <-server.Events():
	case <-time.After(2 * time.Second):
		require.Fail("server did not receive the frame to bind identity from")
	}
	ev.Socket.BindIdentity(pub)

	server.CloseIdentity(pub)
	require.True(eventually(t, func() bool { return ev.Socket.isClosed() }), "CloseIdentity should have closed the bound socket")
}

func eventually(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
