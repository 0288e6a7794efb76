package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/onevoteledger/svnode/src/crypto"
	"github.com/onevoteledger/svnode/src/node"
	"github.com/onevoteledger/svnode/src/version"
)

// launchConfig mirrors babble's CliConfig, squashed down to the handful of
// settings this node needs. There is no config file, and the only
// command-line argument recognized is -v/--version (print the version and
// exit): viper reads every setting from the environment, matching how a validator is
// actually deployed (container env vars, not a datadir).
type launchConfig struct {
	PrivateKey string `mapstructure:"private_key"`
	ListenAddr string `mapstructure:"listen_addr"`
	Peers      string `mapstructure:"peers"`
	LogLevel   string `mapstructure:"log_level"`
}

func loadConfig() (*launchConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("validator")
	v.AutomaticEnv()

	for _, key := range []string{"private_key", "listen_addr", "peers", "log_level"} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	v.SetDefault("listen_addr", "")
	v.SetDefault("log_level", "info")

	cfg := &launchConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "-v" || len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println(version.Version)
		return
	}

	lc, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if lc.PrivateKey == "" {
		fmt.Fprintln(os.Stderr, "VALIDATOR_PRIVATE_KEY is required")
		os.Exit(1)
	}

	key, err := crypto.ParsePrivateKeyHex(lc.PrivateKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsing VALIDATOR_PRIVATE_KEY: %v\n", err)
		os.Exit(1)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(lc.LogLevel); err == nil {
		logger.Level = level
	}

	conf := node.DefaultConfig()
	conf.Key = key
	conf.Logger = logger
	conf.ListenAddr = lc.ListenAddr
	conf.Peers = splitPeers(lc.Peers)

	n := node.New(conf)

	logger.WithField("this_id", crypto.PublicKeyHex(&key.PublicKey)).
		WithField("listen", lc.ListenAddr).
		WithField("peers", conf.Peers).
		Info("starting validator node")

	if err := n.Start(); err != nil {
		logger.WithField("error", err).Fatal("node exited")
	}
}

func splitPeers(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	peers := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			peers = append(peers, p)
		}
	}
	return peers
}
