package node

import (
	"crypto/ecdsa"

	"github.com/sirupsen/logrus"

	"github.com/onevoteledger/svnode/src/state"
)

// Config is everything the launcher (cmd/validatornode) supplies before
// calling Start, mirroring babble's BabbleConfig/NodeConfig split but
// collapsed to one struct since this node has no on-disk store, peer file,
// or service HTTP surface to configure.
type Config struct {
	// ListenAddr is the local "host:port" this node accepts inbound gossip
	// connections on.
	ListenAddr string

	// Peers is the fixed seed list of peer websocket URLs ("ws://host:port")
	// dialed on startup. Peer discovery never extends beyond this list.
	Peers []string

	// Key is this node's private key, supplied externally; key generation
	// and storage are outside the node's responsibility.
	Key *ecdsa.PrivateKey

	// Chain is the initial chain handed to the node. It may be empty, may
	// carry only transactions awaiting replay (Accounts left empty), or may
	// arrive with Accounts already materialized by the launcher.
	Chain *state.Chain

	// Logger defaults to a plain logrus.Logger at Info level, the same
	// default babble.Babble.Init applies to Config.Logger when the launcher
	// leaves it nil.
	Logger *logrus.Logger

	// exit is the process-exit hook the reconnect watchdog calls when no
	// socket is open after its grace window. It defaults to os.Exit but is
	// overridden in tests so the watchdog path can be exercised without
	// killing the test binary.
	exit func(code int)
}

// DefaultConfig returns a Config with an empty chain and a default logger;
// Key and Peers are still the caller's responsibility to set.
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.InfoLevel

	return &Config{
		Chain:  state.NewChain(),
		Logger: logger,
	}
}
