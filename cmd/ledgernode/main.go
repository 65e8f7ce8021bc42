// Command ledgernode runs one replicated-ledger node: gossip transport,
// consensus coordinator, sync, the status API, and an interactive
// operator console, wired together from a TOML configuration file via an
// urfave/cli entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/libreledger/consensus-node/internal/api"
	"github.com/libreledger/consensus-node/internal/chain"
	"github.com/libreledger/consensus-node/internal/common"
	"github.com/libreledger/consensus-node/internal/config"
	"github.com/libreledger/consensus-node/internal/console"
	"github.com/libreledger/consensus-node/internal/consensus"
	"github.com/libreledger/consensus-node/internal/gossip"
	"github.com/libreledger/consensus-node/internal/log"
	"github.com/libreledger/consensus-node/internal/metrics"
	"github.com/libreledger/consensus-node/internal/store"
	"github.com/libreledger/consensus-node/internal/syncer"
	"github.com/libreledger/consensus-node/internal/txpool"
	"github.com/libreledger/consensus-node/internal/walletsig"
)

var logger = log.NewModuleLogger(log.Main)

func main() {
	app := cli.NewApp()
	app.Name = "ledgernode"
	app.Usage = "a replicated, committee-signed consensus ledger node"
	app.Flags = config.Flags
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return err
	}
	cfg = config.ApplyFlags(cfg, ctx)

	s, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer s.Close()

	ch := chain.New(s)
	pool := txpool.New()
	registry := walletsig.NewRegistry()
	signer, err := walletsig.NewEd25519Signer(registry)
	if err != nil {
		return err
	}

	dir, err := gossip.NewDirectory(s)
	if err != nil {
		return err
	}

	// The coordinator and syncer both need a transport, and the
	// transport needs a handler that dispatches to both, so the handler
	// closes over these two variables and is only invoked (from
	// Transport.Listen's accept loop) after they're assigned below.
	var co *consensus.Coordinator
	var sy *syncer.Syncer
	handler := func(remoteIP string, env gossip.Envelope) {
		dispatch(remoteIP, env, co, sy)
	}

	var transport *gossip.Transport
	if cfg.RedisAddr != "" {
		redisDedup, rerr := gossip.NewRedisDedup(cfg.RedisAddr)
		if rerr != nil {
			logger.Warnw("redis dedup unavailable, falling back to in-process cache", "err", rerr)
			transport = gossip.NewTransport(cfg.NodeID, cfg.Port, dir, handler)
		} else {
			transport = gossip.NewTransportWithDedup(cfg.NodeID, cfg.Port, dir, handler, redisDedup)
		}
	} else {
		transport = gossip.NewTransport(cfg.NodeID, cfg.Port, dir, handler)
	}
	m := metrics.New()
	co = consensus.New(consensus.Config{
		SignatureWaitSeconds: cfg.SignatureWaitSeconds,
		RebuildDelay:         1500 * time.Millisecond,
		NotInGroupBackoff:    5 * time.Second,
	}, s, ch, pool, transport, signer, m)
	sy = syncer.New(s, ch, transport, cfg.NodeID)

	if err := transport.Listen(); err != nil {
		return err
	}
	transport.StartPresenceLoop()
	transport.StartEvictionLoop()
	defer transport.Close()

	for _, peer := range cfg.KnownPeers {
		go helloPeer(transport, peer.IP, peer.Port)
	}

	if err := sy.Start(); err != nil {
		return err
	}

	apiSrv := api.New(s, ch, co, dir)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		if err := apiSrv.ListenAndServe(addr); err != nil {
			logger.Errorw("status API stopped", "err", err)
		}
	}()

	go reportPeerCount(dir, m)

	stopWatch, err := config.WatchKnownPeers(ctx.String("config"), func(newCfg config.Config) {
		for _, peer := range newCfg.KnownPeers {
			go helloPeer(transport, peer.IP, peer.Port)
		}
	})
	if err == nil {
		defer stopWatch()
	}

	repl := console.New(co, s, ch, pool, dir, transport, common.Address(cfg.NodeID))
	repl.Run()
	return nil
}

// dispatch routes an inbound envelope to the consensus coordinator and,
// for the message types it doesn't own, to the syncer.
func dispatch(remoteIP string, env gossip.Envelope, co *consensus.Coordinator, sy *syncer.Syncer) {
	switch env.Type {
	case gossip.TypeStateRequest:
		var p syncer.StateRequestPayload
		if err := env.UnmarshalPayload(&p); err != nil {
			logger.Debugw("malformed state_request", "err", err)
			return
		}
		sy.HandleStateRequest(remoteIP, env.SenderPort)
	case gossip.TypeStateUpdate:
		var p syncer.StateUpdatePayload
		if err := env.UnmarshalPayload(&p); err != nil {
			logger.Debugw("malformed state_update", "err", err)
			return
		}
		sy.HandleStateUpdate(p)
	case gossip.TypeBlockAnnounce:
		var p consensus.BlockAnnouncePayload
		if err := env.UnmarshalPayload(&p); err != nil {
			logger.Debugw("malformed block_announce", "err", err)
			return
		}
		sy.HandleBlockAnnounce(p.BlockNumber)
	default:
		co.HandleEnvelope(remoteIP, env)
	}
}

// reportPeerCount keeps the peers_known gauge current without the
// directory needing to know about metrics itself.
func reportPeerCount(dir *gossip.Directory, m *metrics.Metrics) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.PeersKnown.Set(float64(len(dir.All())))
	}
}

func helloPeer(t *gossip.Transport, ip string, port int) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := t.SayHello(ctx, ip, port); err != nil {
		logger.Debugw("hello failed", "ip", ip, "port", port, "err", err)
	}
}
