/**
 * Supervisor.
 *
 * Wires the capture source, decoder, parser, resolver and plugin
 * registry into a running pipeline, owns the lifecycle state machine
 * from spec.md §4.8, and is the single event-loop entry point.
 *
 * Author: raventrace
 */

package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raventrace/pdnsd/internal/capture"
	"github.com/raventrace/pdnsd/internal/config"
	"github.com/raventrace/pdnsd/internal/decode"
	"github.com/raventrace/pdnsd/internal/dnsmsg"
	"github.com/raventrace/pdnsd/internal/endpoint"
	"github.com/raventrace/pdnsd/internal/logging"
	"github.com/raventrace/pdnsd/internal/plugin"
	"github.com/raventrace/pdnsd/internal/stats"
	"github.com/raventrace/pdnsd/internal/store"
)

// One of the six supervisor states from spec.md §4.8.
type State int

const (
	Init State = iota
	Starting
	Running
	Draining
	Failed
	Stopped
)

func (s State) String() string {
	return [...]string{"INIT", "STARTING", "RUNNING", "DRAINING", "FAILED", "STOPPED"}[s]
}

// Shutdown timing, per spec.md §5.
type Timeouts struct {
	DecodeDrain  time.Duration // default 5s
	PluginGrace  time.Duration // default 10s
	StatsPeriod  time.Duration // default 60s
}

func (t Timeouts) withDefaults() Timeouts {
	if t.DecodeDrain <= 0 {
		t.DecodeDrain = 5 * time.Second
	}
	if t.PluginGrace <= 0 {
		t.PluginGrace = 10 * time.Second
	}
	if t.StatsPeriod <= 0 {
		t.StatsPeriod = 60 * time.Second
	}
	return t
}

// Owns the running pipeline: capture source, plugin registry, stats
// accumulator.
type Supervisor struct {
	cfg      *config.Config
	log      logging.Sink
	st       store.Store
	timeouts Timeouts

	mu    sync.Mutex
	state State

	source   *capture.Source
	registry *plugin.Registry
	acc      *stats.Accumulator

	segCh chan []capture.Frame
}

// Builds a supervisor from configuration; does not open capture or
// spawn plugins yet (that happens in Run).
func New(cfg *config.Config, st store.Store, log logging.Sink, timeouts Timeouts) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		log:      log,
		st:       st,
		timeouts: timeouts.withDefaults(),
		state:    Init,
		acc:      stats.New(),
	}
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Runs the pipeline until ctx is canceled, then drains per spec.md §5.
// Returns a non-nil error only on a STARTING->FAILED transition.
func (s *Supervisor) Run(ctx context.Context) error {
	s.setState(Starting)

	s.registry = plugin.Discover(s.cfg, s.st, s.log)

	src, err := capture.Open(capture.Config{
		Device:  s.cfg.Device,
		SnapLen: s.cfg.SnapLen,
		Promisc: s.cfg.Promisc,
		Timeout: s.cfg.Timeout,
		Filter:  s.cfg.Filter,
	}, s.log)
	if err != nil {
		s.setState(Failed)
		s.log.Log(logging.Error, "startup failed: capture open", errField(err))
		return fmt.Errorf("supervisor: %w", err)
	}
	s.source = src
	s.segCh = make(chan []capture.Frame, 64)

	s.setState(Running)
	s.log.Log(logging.Notice, "supervisor running")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(s.segCh)
		if err := s.source.Run(runCtx, func(batch []capture.Frame) {
			select {
			case s.segCh <- batch:
			case <-runCtx.Done():
			}
		}); err != nil && runCtx.Err() == nil {
			s.log.Log(logging.Warning, "capture worker exited nonzero", errField(err))
		}
	}()

	statsTicker := time.NewTicker(s.timeouts.StatsPeriod)
	defer statsTicker.Stop()

	processDone := make(chan struct{})
	go func() {
		defer close(processDone)
		s.processLoop()
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-statsTicker.C:
			s.acc.Flush(s.log)
		}
	}

	s.setState(Draining)
	s.log.Log(logging.Notice, "supervisor draining")

	cancel()
	wg.Wait()

	select {
	case <-processDone:
	case <-time.After(s.timeouts.DecodeDrain):
		s.log.Log(logging.Warning, "decode drain timed out")
	}

	s.acc.Flush(s.log)

	s.registry.Close(func() <-chan struct{} {
		ch := make(chan struct{})
		go func() {
			time.Sleep(s.timeouts.PluginGrace)
			close(ch)
		}()
		return ch
	})

	s.setState(Stopped)
	s.log.Log(logging.Notice, "supervisor stopped")
	return nil
}

// Consumes frame batches and drives decode -> parse -> resolve ->
// dispatch, serialized on a single goroutine per spec.md §5 (DNS
// parsing and the store's find-or-create dominate cost; serializing
// keeps the store's uniqueness contract simple).
func (s *Supervisor) processLoop() {
	for batch := range s.segCh {
		for _, frame := range batch {
			s.acc.Increment("packet")
			s.processFrame(frame)
		}
	}
}

func (s *Supervisor) processFrame(frame capture.Frame) {
	seg, err := decode.Decode(frame.LinkType, frame.Data)
	if err != nil {
		s.acc.Increment("invalid")
		return
	}

	switch seg.Protocol {
	case decode.UDP:
		s.acc.Increment("udp")
	case decode.TCP:
		s.acc.Increment("tcp")
	}
	if seg.SrcPort == 53 || seg.DstPort == 53 {
		s.acc.Increment("port53")
	}

	var msg *dnsmsg.Message
	if seg.Protocol == decode.TCP {
		msg, err = dnsmsg.ParseTCP(seg.Payload)
	} else {
		msg, err = dnsmsg.Parse(seg.Payload)
	}
	if err != nil {
		return
	}

	roles := endpoint.RolesFor(seg, msg)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	server, client, err := endpoint.Resolve(ctx, s.st.Servers(), s.st.Clients(), roles)
	cancel()
	if err != nil {
		// Retry once per spec.md §7's store-failure policy.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		server, client, err = endpoint.Resolve(ctx, s.st.Servers(), s.st.Clients(), roles)
		cancel()
		if err != nil {
			s.log.Log(logging.Warning, "store find-or-create failed twice, dropping event", errField(err))
			return
		}
	}

	plugin.Dispatch(s.registry, plugin.Event{
		DNS:    msg.Raw,
		QR:     msg.QR,
		Roles:  roles,
		Server: server,
		Client: client,
	}, s.acc)
}

func errField(err error) zap.Field { return zap.String("error", err.Error()) }
