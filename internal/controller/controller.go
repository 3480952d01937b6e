// Package controller is the actor-model core that owns every piece of
// mutable node state and exposes one method per user-facing LSNP
// operation (spec.md §4.13). It is grounded on the teacher's node.go: a
// single goroutine reads the socket in a loop and a small number of
// periodic tickers drive housekeeping, but — since each leaf package
// (peertable, social, group, game, filetransfer, token, reliability)
// already guards its own state behind a mutex per spec.md §5's
// partitioned-state strategy — the controller does not additionally
// funnel every call through a single command channel the way the
// teacher's handler() does for ZRE. Outbound operations call straight
// into the guarded leaf packages and the socket; the one piece of
// actor-style single-ownership that remains is the receive loop itself,
// which is the sole reader of the UDP socket.
package controller

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/discovery"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/filetransfer"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/game"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/group"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/logx"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/peertable"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/reliability"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/social"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/token"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/transport"
)

// metrics are the Prometheus gauges/counters this node exposes on
// /metrics, supplementing spec.md with the observability surface
// SPEC_FULL.md §3 maps onto prometheus/client_golang.
type metrics struct {
	registry       *prometheus.Registry
	framesReceived *prometheus.CounterVec
	framesDropped  *prometheus.CounterVec
	peersKnown     prometheus.Gauge
}

// newMetrics registers into a registry owned by this node, so more than
// one Controller can live in the same process.
func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	auto := promauto.With(reg)
	return &metrics{
		registry: reg,
		framesReceived: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "lsnp_frames_received_total",
			Help: "Frames received by TYPE.",
		}, []string{"type"}),
		framesDropped: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "lsnp_frames_dropped_total",
			Help: "Frames dropped by reason.",
		}, []string{"reason"}),
		peersKnown: auto.NewGauge(prometheus.GaugeOpts{
			Name: "lsnp_peers_known",
			Help: "Number of peers currently in the peer table.",
		}),
	}
}

// Controller wires every leaf subsystem into one node.
type Controller struct {
	cfg Config

	userID string // cfg.Username + "@" + sock.LocalIP()

	sock      *transport.Socket
	peers     *peertable.Table
	ipTrack   *peertable.IPTracker
	tokens    *token.Registry
	soc       *social.Sets
	inbox     *social.Inbox
	groups    *group.Table
	games     *game.Table
	transfers *filetransfer.Manager
	acks      *reliability.Registry
	fileWait  *reliability.Registry
	disco     *discovery.Service
	log       *logx.Logger
	metrics   *metrics

	avatarMIME string
	avatarB64  string

	quit     chan struct{}
	wg       sync.WaitGroup
	cancelFn context.CancelFunc
}

// New assembles a Controller: binds the UDP socket, loads the avatar
// file if configured, and registers the mDNS service. It does not yet
// start the receive loop or periodic tasks; call Start for that.
func New(cfg Config) (*Controller, error) {
	sock, err := transport.Bind(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("controller: bind: %w", err)
	}

	userID := fmt.Sprintf("%s@%s", cfg.Username, sock.LocalIP())
	log := logx.New(userID, cfg.Verbose)

	c := &Controller{
		cfg:       cfg,
		userID:    userID,
		sock:      sock,
		peers:     peertable.New(),
		ipTrack:   peertable.NewIPTracker(),
		tokens:    token.NewRegistry(),
		soc:       social.New(userID),
		inbox:     social.NewInbox(),
		groups:    group.New(),
		games:     game.New(),
		transfers: filetransfer.NewManager(),
		acks:      reliability.New(),
		fileWait:  reliability.New(),
		log:       log,
		metrics:   newMetrics(),
		quit:      make(chan struct{}),
	}

	if cfg.AvatarPath != "" {
		if err := c.loadAvatar(cfg.AvatarPath); err != nil {
			log.Warn("avatar load failed, continuing without one: %v", err)
		}
	}

	disco, err := discovery.Register(userID, cfg.DisplayName, sock.LocalIP(), sock.Port(), log)
	if err != nil {
		log.Warn("mDNS registration failed: %v", err)
	}
	c.disco = disco

	return c, nil
}

func (c *Controller) loadAvatar(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	av, ok := filetransfer.DecodeAvatar(mimeFromExt(path), "base64", base64.StdEncoding.EncodeToString(raw))
	if !ok {
		return fmt.Errorf("avatar file failed validation")
	}
	c.avatarMIME = av.MIMEType
	c.avatarB64 = base64.StdEncoding.EncodeToString(av.Data)
	return nil
}

// UserID returns this node's full "username@ip" identity.
func (c *Controller) UserID() string { return c.userID }

// Start launches the receive loop, the mDNS browse loop, and the
// periodic housekeeping/re-broadcast tickers, each as its own goroutine,
// grounded on node.go's engine() spawning the beacon/inbound readers
// alongside the actor loop.
func (c *Controller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFn = cancel

	c.wg.Add(1)
	go c.receiveLoop()

	if c.disco != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.disco.Browse(ctx, c.onDiscovered)
		}()
	}

	c.wg.Add(1)
	go c.runPeriodic(ctx)

	if metricsAddr := os.Getenv("LSNP_METRICS_ADDR"); metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(c.metrics.registry, promhttp.HandlerOpts{}))
		go http.ListenAndServe(metricsAddr, mux) //nolint:errcheck
	}
}

// onDiscovered materializes a peer table entry for an mDNS find that
// hasn't yet sent a PROFILE (SPEC_FULL.md §5 C3).
func (c *Controller) onDiscovered(f discovery.Found) {
	if f.UserID == c.userID {
		return
	}
	c.peers.Upsert(peertable.Record{
		UserID:      f.UserID,
		DisplayName: f.DisplayName,
		IP:          f.IP,
		Port:        f.Port,
	})
	c.metrics.peersKnown.Set(float64(len(c.peers.All())))
}

// Shutdown stops every background goroutine and releases the socket.
func (c *Controller) Shutdown() {
	if c.cancelFn != nil {
		c.cancelFn()
	}
	close(c.quit)
	c.sock.Close()
	if c.disco != nil {
		c.disco.Shutdown()
	}
	c.wg.Wait()
}

func mimeFromExt(path string) string {
	switch {
	case hasSuffix(path, ".png"):
		return "image/png"
	case hasSuffix(path, ".jpg"), hasSuffix(path, ".jpeg"):
		return "image/jpeg"
	case hasSuffix(path, ".gif"):
		return "image/gif"
	case hasSuffix(path, ".bmp"):
		return "image/bmp"
	case hasSuffix(path, ".webp"):
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

func hasSuffix(s, suf string) bool {
	return len(s) >= len(suf) && s[len(s)-len(suf):] == suf
}
