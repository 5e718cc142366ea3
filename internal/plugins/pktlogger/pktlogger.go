/**
 * Packet Logger Plugin.
 *
 * Appends one line per observed DNS event to a rotating log file, and
 * keeps an in-memory history of the logged lines that an hourly timer
 * prunes of entries older than the parsed keep_for duration. keep_for
 * does not apply to the file on disk, which is rotated by size only
 * (100 MB, 7 compressed backups). Registers itself under "packet::logger", the
 * first entry in spec.md §6's default plugin set. The teacher has no
 * packet-logging subsystem to adapt; this is new code built in its
 * idiom, using github.com/natefinch/lumberjack (present in the pack's
 * DataDog-datadog-agent and packetd-packetd dependency sets) for
 * rotation instead of hand-rolling size-capped file management.
 *
 * Author: raventrace
 */

package pktlogger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"

	"github.com/raventrace/pdnsd/internal/logging"
	"github.com/raventrace/pdnsd/internal/plugin"
	"github.com/raventrace/pdnsd/internal/store"
)

func init() {
	plugin.Register("packet::logger", New)
}

var keepForPattern = regexp.MustCompile(`^(\d+)\s*(day|days|hour|hours|minute|minutes)$`)

func parseKeepFor(s string) time.Duration {
	m := keepForPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 30 * 24 * time.Hour
	}
	n, _ := strconv.Atoi(m[1])
	switch {
	case strings.HasPrefix(m[2], "day"):
		return time.Duration(n) * 24 * time.Hour
	case strings.HasPrefix(m[2], "hour"):
		return time.Duration(n) * time.Hour
	default:
		return time.Duration(n) * time.Minute
	}
}

type entry struct {
	at   time.Time
	line string
}

// Logs each event and prunes entries older than keepFor.
type Logger struct {
	out     *lumberjack.Logger
	keepFor time.Duration

	mu      sync.Mutex
	history []entry
	stop    chan struct{}
}

func New(opts map[string]any, _ store.Store, _ logging.Sink) (plugin.Plugin, error) {
	keepFor := 30 * 24 * time.Hour
	if v, ok := opts["keep_for"]; ok {
		if s, ok := v.(string); ok {
			keepFor = parseKeepFor(s)
		}
	}

	path := "dns-events.log"
	if v, ok := opts["path"]; ok {
		if s, ok := v.(string); ok && s != "" {
			path = s
		}
	}

	l := &Logger{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100, // MB
			MaxBackups: 7,
			Compress:   true,
		},
		keepFor: keepFor,
		stop:    make(chan struct{}),
	}
	go l.pruneLoop()
	return l, nil
}

func (l *Logger) Process(ev plugin.Event) {
	kind := "question"
	if ev.QR {
		kind = "answer"
	}
	line := fmt.Sprintf("%s server=%s client=%s\n", kind, ev.Server.IP, ev.Client.IP)

	l.mu.Lock()
	l.history = append(l.history, entry{at: time.Now(), line: line})
	l.mu.Unlock()

	l.out.Write([]byte(line))
}

func (l *Logger) pruneLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.prune()
		}
	}
}

func (l *Logger) prune() {
	cutoff := time.Now().Add(-l.keepFor)
	l.mu.Lock()
	defer l.mu.Unlock()
	i := 0
	for i < len(l.history) && l.history[i].at.Before(cutoff) {
		i++
	}
	l.history = l.history[i:]
}

func (l *Logger) Shutdown() {
	close(l.stop)
	l.out.Close()
}
