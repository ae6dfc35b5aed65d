// Command kbgpd is the daemon entrypoint: it reads the environment
// configuration, builds one reactor.Peer per configured neighbor,
// starts the BGP and API listeners, and runs the reactor until a
// termination signal arrives.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Exa-Networks/exabgp-sub008/api"
	apihttp "github.com/Exa-Networks/exabgp-sub008/api/http"
	"github.com/Exa-Networks/exabgp-sub008/config"
	"github.com/Exa-Networks/exabgp-sub008/fsm"
	"github.com/Exa-Networks/exabgp-sub008/logging"
	"github.com/Exa-Networks/exabgp-sub008/metrics"
	"github.com/Exa-Networks/exabgp-sub008/reactor"
	"github.com/Exa-Networks/exabgp-sub008/rib"
)

func main() {
	env := config.FromEnviron()

	var log *zap.Logger
	if env.LogEnable {
		var err error
		log, err = logging.New(env.LogLevel, env.DebugAll)
		if err != nil {
			fmt.Fprintln(os.Stderr, "kbgpd: logger init:", err)
			os.Exit(1)
		}
	} else {
		log = logging.Nop()
	}
	defer log.Sync()

	neighbors, err := config.ParseNeighbors(env.Neighbors)
	if err != nil {
		log.Error("invalid neighbor configuration", zap.Error(err))
		os.Exit(1)
	}
	if len(neighbors) == 0 {
		log.Warn("no neighbors configured (exabgp_neighbors is empty), running with no peers")
	}

	metrics.Register()

	r := reactor.New(log)
	apiMgr := api.NewManager(r, 0, log)
	r.SetEventSink(eventSink{apiMgr})

	for _, n := range neighbors {
		machine := fsm.New(n.MachineConfig())
		peerRIB := rib.New(rib.DefaultMaxMessageSize, n.GroupName != "", n.SendAddPath())
		peer := reactor.NewPeer(n.Name, n.PeerAddress, machine, peerRIB, nil, log)
		r.AddPeer(peer)
		peer.Start(true)
	}

	bgpAddr := fmt.Sprintf("%s:%d", env.TCPBind, env.TCPPort)
	bgpListener, err := reactor.Listen(bgpAddr, log)
	if err != nil {
		log.Error("failed to listen for BGP connections", zap.String("addr", bgpAddr), zap.Error(err))
		os.Exit(1)
	}
	r.SetListener(bgpListener)
	log.Info("listening for BGP connections", zap.String("addr", bgpAddr))

	closeAPI := startAPITransports(env, apiMgr, log)
	r.SetAPIHook(apiMgr.Poll)

	var httpSrv *apihttp.Server
	if env.HTTPDebugAddr != "" {
		httpSrv = apihttp.NewServer(env.HTTPDebugAddr, r.AnyEstablished, log)
		if err := httpSrv.Start(); err != nil {
			log.Error("failed to start debug HTTP server", zap.Error(err))
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received termination signal", zap.String("signal", sig.String()))
		cancel()
	}()

	r.Run(ctx)

	closeAPI()
	if httpSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), reactor.DefaultShutdownGrace)
		defer shutdownCancel()
		httpSrv.Shutdown(shutdownCtx)
	}
	bgpListener.Close()
	log.Info("kbgpd stopped")
}

// eventSink adapts a *api.Manager to reactor.EventSink, letting the
// reactor publish subscriber events (spec §4.6) without the reactor
// package importing api.
type eventSink struct {
	mgr *api.Manager
}

func (s eventSink) Publish(peer, category string, fields map[string]any) {
	s.mgr.Publish(api.Event{
		Category: api.EventCategory(category),
		Peer:     peer,
		Fields:   fields,
	})
}

// startAPITransports wires whichever API transports env enables and
// returns a function that closes them all.
func startAPITransports(env config.Env, mgr *api.Manager, log *zap.Logger) func() {
	var closers []func() error

	if env.APISocketPath != "" {
		ln, err := api.ListenSocket(env.APISocketPath)
		if err != nil {
			log.Error("failed to listen on API socket", zap.String("path", env.APISocketPath), zap.Error(err))
		} else {
			closers = append(closers, ln.Close)
			go acceptSocketSessions(ln, mgr, log)
		}
	}

	if env.CLIPipeDir != "" {
		t, err := api.OpenPipes(env.CLIPipeDir)
		if err != nil {
			log.Error("failed to open API named pipes", zap.String("dir", env.CLIPipeDir), zap.Error(err))
		} else if err := mgr.Attach(t); err != nil {
			log.Error("failed to attach API named-pipe session", zap.Error(err))
		}
	}

	return func() {
		for _, c := range closers {
			c()
		}
	}
}

// acceptSocketSessions runs on its own goroutine (spec §4.5: only
// blocking-accept primitives get a goroutine); every accepted
// connection is handed to the Manager, whose own per-session reader
// goroutine takes over from there.
func acceptSocketSessions(ln *api.SocketListener, mgr *api.Manager, log *zap.Logger) {
	for {
		t, err := ln.Accept()
		if err != nil {
			return
		}
		if err := mgr.Attach(t); err != nil {
			log.Warn("rejected API session", zap.Error(err))
		}
	}
}
