// Command gsectiond runs a single section-membership node: it either
// bootstraps a brand-new network as its genesis elder, or dials a set of
// contacts to join an existing one, then drives the stage.Node state
// machine from whatever arrives over comm until interrupted. Structured
// the way the teacher's own cmd/toskey wires a urfave/cli/v2 app around a
// small, test-covered core.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tos-network/gsection/bls"
	"github.com/tos-network/gsection/comm"
	"github.com/tos-network/gsection/config"
	"github.com/tos-network/gsection/log"
	"github.com/tos-network/gsection/messages"
	"github.com/tos-network/gsection/msgfilter"
	"github.com/tos-network/gsection/section"
	"github.com/tos-network/gsection/stage"
	"github.com/tos-network/gsection/xorname"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "path to a node config TOML file",
	}
	listenFlag = &cli.StringFlag{
		Name:  "listen",
		Usage: "address to accept inbound connections on",
		Value: "127.0.0.1:9090",
	}
	firstFlag = &cli.BoolFlag{
		Name:  "first",
		Usage: "bootstrap as the genesis elder of a brand-new network",
	}
	contactFlag = &cli.StringSliceFlag{
		Name:  "contact",
		Usage: "bootstrap contact address (repeatable); ignored with --first",
	}
	verboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "log at debug level instead of info",
	}
)

func main() {
	app := &cli.App{
		Name:  "gsectiond",
		Usage: "run a section-membership node",
		Flags: []cli.Flag{configFlag, listenFlag, firstFlag, contactFlag, verboseFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Bool(verboseFlag.Name) {
		log.SetLevel(log.LevelDebug)
	}

	cfg := config.DefaultNodeConfig()
	if path := c.String(configFlag.Name); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
	}
	if c.Bool(firstFlag.Name) {
		cfg.First = true
	}
	if contacts := c.StringSlice(contactFlag.Name); len(contacts) > 0 {
		cfg.Contacts = contacts
	}

	d, err := newDaemon(cfg, c.String(listenFlag.Name))
	if err != nil {
		return err
	}
	return d.run()
}

// daemon wires a stage.Node to a live TCP listener and a set of outbound
// dials, driving the state machine from a single goroutine (§5's
// cooperative event-loop model — stage.Node itself never runs one).
type daemon struct {
	log      *log.Logger
	cfg      config.NodeConfig
	listener net.Listener
	node     *stage.Node

	connsMu sync.Mutex
	conns   map[string]*comm.Conn
	filter  *msgfilter.Filter
	inbound chan inboundEnvelope

	// bootstrapLimiter throttles how often we (re)dial the current
	// bootstrap destination, so a flapping contact can't be hammered
	// every tick (§5 concurrency model).
	bootstrapLimiter *rate.Limiter
}

type inboundEnvelope struct {
	from string
	env  messages.Envelope
}

func newDaemon(cfg config.NodeConfig, listenAddr string) (*daemon, error) {
	logger := log.New("node", "listen", listenAddr)

	identitySet, err := bls.Random(0, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("gsectiond: generate identity: %w", err)
	}
	identity, err := identitySet.SecretKeyShare(1)
	if err != nil {
		return nil, fmt.Errorf("gsectiond: derive identity share: %w", err)
	}
	name, err := xorname.RandomFrom(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("gsectiond: draw name: %w", err)
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("gsectiond: listen on %s: %w", listenAddr, err)
	}

	node, err := stage.NewNode(name, listenAddr, identity, cfg.Contacts, nil, rand.Reader)
	if err != nil {
		ln.Close()
		return nil, err
	}

	if cfg.First {
		founder := section.NewPeer(name, listenAddr, section.MinAge)
		sec, err := section.FirstNode(founder, identity)
		if err != nil {
			ln.Close()
			return nil, err
		}
		node.Section = sec
		node.Stage = stage.Elder
		logger.Info("bootstrapped genesis section", "name", name.String(), "prefix", sec.Prefix().String())
	}

	filter := msgfilter.NewFilter(4 << 20)

	return &daemon{
		log:              logger,
		cfg:              cfg,
		listener:         ln,
		node:             node,
		conns:            make(map[string]*comm.Conn),
		filter:           filter,
		inbound:          make(chan inboundEnvelope, 64),
		bootstrapLimiter: rate.NewLimiter(rate.Every(config.DefaultBootstrapTimeout), 1),
	}, nil
}

func (d *daemon) run() error {
	defer d.listener.Close()

	go d.acceptLoop()
	if d.node.Stage == stage.Bootstrapping {
		for _, addr := range d.cfg.Contacts {
			go d.dialAndBootstrap(addr)
			break // one outstanding bootstrap destination at a time (§4.7)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	bootstrapTick := time.NewTicker(time.Second)
	defer bootstrapTick.Stop()
	gossipTick := time.NewTicker(stage.NextGossipTick())
	defer gossipTick.Stop()

	for {
		select {
		case <-sigCh:
			d.log.Info("shutting down")
			d.node.Terminate()
			return nil

		case in := <-d.inbound:
			d.handleEnvelope(in)

		case <-bootstrapTick.C:
			if d.node.BootstrapTimedOut() {
				d.log.Warn("bootstrap request timed out, retrying first contact")
				d.retryBootstrap()
			}

		case <-gossipTick.C:
			if d.node.Stage == stage.Adult && d.node.MaybePromote() {
				d.log.Info("promoted to elder")
			}
		}
	}
}

func (d *daemon) acceptLoop() {
	for {
		raw, err := d.listener.Accept()
		if err != nil {
			return
		}
		go d.serve(raw)
	}
}

func (d *daemon) serve(raw net.Conn) {
	conn, err := comm.Accept(raw, rand.Reader)
	if err != nil {
		d.log.Debug("handshake failed", "remote", raw.RemoteAddr(), "err", err)
		raw.Close()
		return
	}
	d.readLoop(conn)
}

func (d *daemon) dialAndBootstrap(addr string) {
	raw, err := net.Dial("tcp", addr)
	if err != nil {
		d.log.Warn("dial failed", "addr", addr, "err", err)
		return
	}
	conn, err := comm.Dial(raw, rand.Reader)
	if err != nil {
		d.log.Warn("handshake failed", "addr", addr, "err", err)
		raw.Close()
		return
	}
	d.connsMu.Lock()
	d.conns[addr] = conn
	d.connsMu.Unlock()

	req := d.node.SendBootstrapRequest(addr)
	d.send(conn, messages.Envelope{Variant: req})
	d.readLoop(conn)
}

func (d *daemon) retryBootstrap() {
	if !d.bootstrapLimiter.Allow() {
		d.log.Debug("bootstrap retry throttled")
		return
	}
	for _, addr := range d.cfg.Contacts {
		go d.dialAndBootstrap(addr)
		return
	}
}

// sendJoinRequestToElders dials every elder of the section we're joining
// concurrently and hands each the same JoinRequest (§4.7 Joining), using
// errgroup to bound the fan-out to its first error without leaking
// goroutines if one elder is unreachable.
func (d *daemon) sendJoinRequestToElders(elders []section.Peer, req messages.JoinRequest) {
	g, _ := errgroup.WithContext(context.Background())
	for _, elder := range elders {
		elder := elder
		g.Go(func() error {
			raw, err := net.Dial("tcp", elder.Address)
			if err != nil {
				return fmt.Errorf("dial elder %s: %w", elder.Address, err)
			}
			conn, err := comm.Dial(raw, rand.Reader)
			if err != nil {
				raw.Close()
				return fmt.Errorf("handshake with elder %s: %w", elder.Address, err)
			}
			d.connsMu.Lock()
			d.conns[elder.Address] = conn
			d.connsMu.Unlock()
			d.send(conn, messages.Envelope{Variant: req})
			go d.readLoop(conn)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.log.Warn("join request fan-out", "err", err)
	}
}

func (d *daemon) readLoop(conn *comm.Conn) {
	for {
		payload, err := conn.Recv()
		if err != nil {
			return
		}
		if d.filter.Seen(payload) {
			continue
		}
		env, err := messages.DecodeEnvelope(payload)
		if err != nil {
			d.log.Debug("dropping malformed envelope", "err", err)
			continue
		}
		d.inbound <- inboundEnvelope{from: conn.RemoteAddr().String(), env: env}
	}
}

func (d *daemon) send(conn *comm.Conn, env messages.Envelope) {
	b, err := messages.EncodeEnvelope(env)
	if err != nil {
		d.log.Error("encode envelope failed", "err", err)
		return
	}
	if err := conn.Send(b); err != nil {
		d.log.Debug("send failed", "err", err)
	}
}

func (d *daemon) handleEnvelope(in inboundEnvelope) {
	switch v := in.env.Variant.(type) {
	case messages.BootstrapResponseJoin:
		join, err := d.node.HandleBootstrapJoin(in.from, v)
		if err != nil {
			d.log.Warn("bootstrap join rejected", "from", in.from, "err", err)
			return
		}
		if join == nil {
			return
		}
		d.sendJoinRequestToElders(v.EldersInfo.Peers(), *join)

	case messages.BootstrapResponseRebootstrap:
		if err := d.node.HandleRebootstrap(in.from, v); err != nil {
			d.log.Warn("rebootstrap rejected", "from", in.from, "err", err)
			return
		}
		d.cfg.Contacts = v.Addresses
		d.retryBootstrap()

	case messages.NodeApproval:
		if err := d.node.HandleNodeApproval(v); err != nil {
			d.log.Warn("node approval rejected", "err", err)
			return
		}
		d.log.Info("joined section", "prefix", d.node.Section.Prefix().String())

	case messages.Sync:
		if err := d.node.HandleSync(v); err != nil {
			d.log.Debug("sync rejected", "err", err)
		}

	default:
		d.log.Debug("unhandled envelope variant", "type", fmt.Sprintf("%T", v))
	}
}
