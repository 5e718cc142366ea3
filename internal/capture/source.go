/**
 * Capture Source.
 *
 * Opens a live interface, applies a BPF filter, and delivers batches of
 * raw frames on its own goroutine so decoding never stalls the kernel
 * capture buffer, per spec.md §4.1. Generalizes the inactive-handle
 * activation sequence from internal/capture/engine.go (teacher), which
 * hard-coded a single long-running interface; this version also owns
 * the backoff-and-reopen loop spec.md requires on runtime read errors,
 * which the teacher did not implement.
 *
 * Author: raventrace
 */

package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"go.uber.org/zap"

	"github.com/raventrace/pdnsd/internal/logging"
)

// One captured link-layer frame plus its capture header.
type Frame struct {
	CapturedAt     time.Time
	CaptureLength  int
	OriginalLength int
	Data           []byte
	LinkType       layers.LinkType
}

// Capture tuning, mirroring spec.md §6's config schema.
type Config struct {
	Device  string
	SnapLen int32
	Promisc bool
	Timeout time.Duration
	Filter  string

	// BatchSize and BatchLinger bound how many frames accumulate before
	// a delivery; spec.md permits and expects batching. Either
	// reaching BatchSize or BatchLinger elapsing flushes the batch.
	BatchSize   int
	BatchLinger time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.BatchLinger <= 0 {
		c.BatchLinger = 50 * time.Millisecond
	}
	return c
}

// Drives one live pcap capture. Deliver is invoked with a non-empty
// batch of frames for every flush; it runs on the capture goroutine, so
// it must hand off quickly (it posts into the decode stage's channel).
type Source struct {
	cfg    Config
	log    logging.Sink
	handle *pcap.Handle
}

// Opens the interface and applies the filter. A failure here is fatal
// to startup per spec.md §4.1; a filter failure is logged as a warning
// and capture continues unfiltered (catch-all).
func Open(cfg Config, log logging.Sink) (*Source, error) {
	cfg = cfg.withDefaults()

	if _, err := FindInterface(cfg.Device); err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	inactive, err := pcap.NewInactiveHandle(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("capture: inactive handle: %w", err)
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(int(cfg.SnapLen)); err != nil {
		return nil, fmt.Errorf("capture: snaplen: %w", err)
	}
	if err := inactive.SetPromisc(cfg.Promisc); err != nil {
		return nil, fmt.Errorf("capture: promisc: %w", err)
	}
	if err := inactive.SetTimeout(cfg.Timeout); err != nil {
		return nil, fmt.Errorf("capture: timeout: %w", err)
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, fmt.Errorf("capture: activate: %w", err)
	}

	if cfg.Filter != "" {
		if err := handle.SetBPFFilter(cfg.Filter); err != nil {
			log.Log(logging.Warning, "capture: BPF filter rejected, continuing unfiltered", fieldErr(err))
		}
	}

	return &Source{cfg: cfg, log: log, handle: handle}, nil
}

// Runs the capture loop until ctx is canceled, delivering batches to
// deliver. Read errors trigger a reopen with capped exponential
// backoff (1s, 2s, 4s, ... capped at 30s) rather than terminating.
func (s *Source) Run(ctx context.Context, deliver func([]Frame)) error {
	defer s.handle.Close()

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := s.readLoop(ctx, deliver)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		s.log.Log(logging.Warning, "capture: read error, backing off and reopening", fieldErr(err))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := s.reopen(); err != nil {
			s.log.Log(logging.Warning, "capture: reopen failed", fieldErr(err))
			continue
		}
		backoff = time.Second
	}
}

func (s *Source) reopen() error {
	ns, err := Open(s.cfg, s.log)
	if err != nil {
		return err
	}
	s.handle.Close()
	s.handle = ns.handle
	return nil
}

func (s *Source) readLoop(ctx context.Context, deliver func([]Frame)) error {
	source := gopacket.NewPacketSource(s.handle, s.handle.LinkType())
	linkType := s.handle.LinkType()
	packets := source.Packets()

	batch := make([]Frame, 0, s.cfg.BatchSize)
	ticker := time.NewTicker(s.cfg.BatchLinger)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		deliver(batch)
		batch = make([]Frame, 0, s.cfg.BatchSize)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return nil

		case pkt, ok := <-packets:
			if !ok {
				flush()
				return fmt.Errorf("capture: packet channel closed")
			}
			if pkt == nil {
				continue
			}
			md := pkt.Metadata()
			batch = append(batch, Frame{
				CapturedAt:     md.Timestamp,
				CaptureLength:  md.CaptureLength,
				OriginalLength: md.Length,
				Data:           pkt.Data(),
				LinkType:       linkType,
			})
			if len(batch) >= s.cfg.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()
		}
	}
}

func fieldErr(err error) zap.Field { return zap.String("error", err.Error()) }
