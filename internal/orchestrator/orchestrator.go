// Package orchestrator wires NTRIP sources to per-stream SSR decoders,
// the combination engine, and the RTCM3 uploader (component K),
// following `FengXuebin-gnssgo/app/rtkrcv`'s main-loop shape (a
// goroutine per source) generalized from rtkrcv's single RTK server
// task to a per-stream-decoder / combiner / uploader task set, with
// cooperative cancellation via context instead of rtkrcv's
// package-global intflg. The PPP filter and RINEX/SP3 output are not
// driven from this package.
package orchestrator

import (
	"context"
	"io"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bncgo/internal/combination"
	"bncgo/internal/config"
	"bncgo/internal/ephemeris"
	"bncgo/internal/latency"
	"bncgo/internal/prn"
	"bncgo/internal/pubsub"
	"bncgo/internal/reencoder"
	"bncgo/internal/ssr"
)

const (
	initPause       = 1 * time.Second
	maxReconnectPause = 960 * time.Second // spec §5 "capped at 960 s"
)

// StreamEvent tags a decoded SSR event with the source stream it came
// from, so the combination task can route it back into the right
// ACStream.
type StreamEvent struct {
	Stream string
	Event  ssr.Event
}

// Task is one cancellable unit of work the orchestrator is running,
// identified by a uuid so logs and diagnostics can correlate lines back
// to a particular stream/session without name collisions across
// reconnects.
type Task struct {
	ID     uuid.UUID
	Name   string
	cancel context.CancelFunc
}

// Stop cancels the task's context.
func (t *Task) Stop() { t.cancel() }

// Dialer opens a fresh connection to a source; orchestrator retries it
// with exponential backoff on failure or EOF.
type Dialer func(ctx context.Context) (io.ReadCloser, error)

// streamState is the decoder-task-owned, orchestrator-read accumulator
// for one AC's latest per-satellite corrections: the combination task
// snapshots this on each sampling tick rather than the event-exact
// epoch synchronization spec §4.D's decoder already performs
// internally (simplifying the cross-stream join to "latest known per
// PRN" for the orchestration layer that consumes it).
type streamState struct {
	mu     sync.Mutex
	name   string
	weight float64
	orbit  map[prn.Prn]*ephemeris.OrbCorr
	clock  map[prn.Prn]*ephemeris.ClkCorr
}

func newStreamState(name string, weight float64) *streamState {
	return &streamState{
		name: name, weight: weight,
		orbit: make(map[prn.Prn]*ephemeris.OrbCorr),
		clock: make(map[prn.Prn]*ephemeris.ClkCorr),
	}
}

func (s *streamState) apply(ev ssr.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.OrbCorr != nil {
		s.orbit[ev.OrbCorr.Prn] = ev.OrbCorr
	}
	if ev.ClkCorr != nil {
		s.clock[ev.ClkCorr.Prn] = ev.ClkCorr
	}
}

func (s *streamState) snapshot() combination.ACStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := combination.ACStream{
		Name: s.name, Weight: s.weight,
		Orbit: make(map[prn.Prn]*ephemeris.OrbCorr, len(s.orbit)),
		Clock: make(map[prn.Prn]*ephemeris.ClkCorr, len(s.clock)),
	}
	for p, c := range s.orbit {
		out.Orbit[p] = c
	}
	for p, c := range s.clock {
		out.Clock[p] = c
	}
	return out
}

// Orchestrator owns the decoder/combination/uploader task set and the
// shared ephemeris store they read (§5 "Shared resources").
type Orchestrator struct {
	cfg    *config.Config
	store  *ephemeris.Store
	engine *combination.Engine
	log    *logrus.Logger

	mu      sync.Mutex
	streams map[string]*streamState
	tasks   map[uuid.UUID]*Task

	latMu     sync.Mutex
	latencies map[string]*latency.Monitor

	consensus *pubsub.Topic[*combination.Consensus]
}

// New constructs an Orchestrator bound to cfg and the shared ephemeris
// store, designating the first AC in cfg.ACList as the combination
// master per §4.H step 4.
func New(cfg *config.Config, store *ephemeris.Store, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	master := ""
	if len(cfg.ACList) > 0 {
		master = cfg.ACList[0].Name
	}
	o := &Orchestrator{
		cfg:       cfg,
		store:     store,
		engine:    combination.NewEngine(master, cfg.CmbMaxres, log),
		log:       log,
		streams:   make(map[string]*streamState),
		tasks:     make(map[uuid.UUID]*Task),
		latencies: make(map[string]*latency.Monitor),
		consensus: pubsub.NewTopic[*combination.Consensus](32),
	}
	for _, ac := range cfg.ACList {
		o.streams[ac.Name] = newStreamState(ac.Name, ac.Weight)
	}
	return o
}

// Consensus exposes the combination task's output topic for the
// uploader task to subscribe to.
func (o *Orchestrator) Consensus() *pubsub.Topic[*combination.Consensus] { return o.consensus }

func (o *Orchestrator) monitorFor(stream string) *latency.Monitor {
	o.latMu.Lock()
	defer o.latMu.Unlock()
	m, ok := o.latencies[stream]
	if !ok {
		m = latency.NewMonitor(stream, o.log)
		o.latencies[stream] = m
	}
	return m
}

// RunSource drives one analysis-center stream: dial, byte-feed the SSR
// decoder, apply events into that stream's accumulator, and on
// disconnect retry with exponential backoff capped at
// maxReconnectPause, exactly mirroring spec §5's reconnect policy.
// RunSource blocks until ctx is cancelled.
func (o *Orchestrator) RunSource(ctx context.Context, name string, hostWeek int, dial Dialer) {
	o.mu.Lock()
	st, ok := o.streams[name]
	if !ok {
		st = newStreamState(name, 1.0)
		o.streams[name] = st
	}
	o.mu.Unlock()

	mon := o.monitorFor(name)
	pause := initPause
	for {
		if ctx.Err() != nil {
			return
		}
		session := uuid.New()
		conn, err := dial(ctx)
		if err != nil {
			o.log.WithError(err).WithFields(logrus.Fields{"stream": name, "session": session}).Warn("orchestrator: dial failed, backing off")
			mon.Observe(0, time.Now())
			if !sleepOrDone(ctx, pause) {
				return
			}
			pause = nextPause(pause)
			continue
		}
		pause = initPause
		o.log.WithFields(logrus.Fields{"stream": name, "session": session}).Info("orchestrator: source connected")
		o.drain(ctx, name, hostWeek, conn, st, mon)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		o.log.WithFields(logrus.Fields{"stream": name, "session": session}).Info("orchestrator: source disconnected, reconnecting")
	}
}

func nextPause(p time.Duration) time.Duration {
	next := time.Duration(math.Min(float64(p*2), float64(maxReconnectPause)))
	return next
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (o *Orchestrator) drain(ctx context.Context, name string, hostWeek int, r io.Reader, st *streamState, mon *latency.Monitor) {
	dec := ssr.NewDecoder(hostWeek)
	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := r.Read(buf)
		now := time.Now()
		for i := 0; i < n; i++ {
			events, derr := dec.Feed(buf[i])
			if derr != nil {
				o.log.WithError(derr).WithField("stream", name).Debug("orchestrator: discarding malformed frame")
				continue
			}
			for _, ev := range events {
				st.apply(ev)
			}
		}
		if n > 0 {
			mon.Observe(0, now)
		}
		if err != nil {
			if err != io.EOF {
				o.log.WithError(err).WithField("stream", name).Warn("orchestrator: read error")
			}
			return
		}
	}
}

// RunCombiner periodically snapshots every source stream's latest
// corrections and runs the combination engine, publishing the result on
// Consensus(). It blocks until ctx is cancelled.
func (o *Orchestrator) RunCombiner(ctx context.Context, satClock *combination.State) {
	interval := time.Duration(o.cfg.CmbSampl * float64(time.Second))
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.mu.Lock()
			snapshots := make([]combination.ACStream, 0, len(o.streams))
			for _, st := range o.streams {
				snapshots = append(snapshots, st.snapshot())
			}
			o.mu.Unlock()

			var consensus *combination.Consensus
			if o.cfg.CmbMethod == combination.MethodSingleEpoch {
				consensus = o.engine.CombineSingleEpoch(snapshots)
			} else {
				consensus = o.engine.Combine(snapshots, satClock)
			}
			if consensus != nil {
				o.consensus.Publish(consensus)
			}
		}
	}
}

// RunUploader subscribes to the combination task's Consensus output and
// re-encodes each one as RTCM3 SSR, writing the resulting frames to
// upload. Splits by constellation and picks the combined vs split
// message form based on whether samplRtcmEphCorr == 0, per spec §6.
func (o *Orchestrator) RunUploader(ctx context.Context, encoder *reencoder.Encoder, upload io.Writer) {
	sub := o.consensus.Subscribe()
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub.C():
			if !ok {
				return
			}
			o.uploadConsensus(encoder, upload, c)
		}
	}
}

func (o *Orchestrator) uploadConsensus(encoder *reencoder.Encoder, upload io.Writer, c *combination.Consensus) {
	bySys := make(map[prn.System]map[prn.Prn]*ephemeris.OrbCorr)
	for p, oc := range c.Orbit {
		if bySys[p.System] == nil {
			bySys[p.System] = make(map[prn.Prn]*ephemeris.OrbCorr)
		}
		bySys[p.System][p] = oc
	}
	clkBySys := make(map[prn.System]map[prn.Prn]*ephemeris.ClkCorr)
	for p, dclk := range c.Clock {
		if clkBySys[p.System] == nil {
			clkBySys[p.System] = make(map[prn.Prn]*ephemeris.ClkCorr)
		}
		clkBySys[p.System][p] = &ephemeris.ClkCorr{Prn: p, DClk: dclk}
	}

	combined := o.cfg.UploadSamplRtcmEphCorr == 0
	for sys, orbits := range bySys {
		clocks := clkBySys[sys]
		var frame []byte
		var err error
		if combined && clocks != nil {
			frame, err = encoder.CombinedMessage(sys, false, 0, o.cfg.UploadSamplRtcmEphCorr, 0, orbits, clocks)
		} else {
			frame, err = encoder.OrbitMessage(sys, false, 0, o.cfg.UploadSamplRtcmEphCorr, 0, orbits)
		}
		if err != nil {
			o.log.WithError(err).Warn("orchestrator: orbit/combined encode failed")
			continue
		}
		if _, err := upload.Write(frame); err != nil {
			o.log.WithError(err).Warn("orchestrator: upload write failed")
		}
		if !combined && clocks != nil {
			cframe, err := encoder.ClockMessage(sys, false, 0, o.cfg.UploadSamplRtcmEphCorr, clocks)
			if err != nil {
				o.log.WithError(err).Warn("orchestrator: clock encode failed")
				continue
			}
			if _, err := upload.Write(cframe); err != nil {
				o.log.WithError(err).Warn("orchestrator: upload write failed")
			}
		}
	}
}

// Spawn starts fn in a new cancellable task and registers it so
// Shutdown can stop everything cooperatively.
func (o *Orchestrator) Spawn(ctx context.Context, name string, fn func(context.Context)) *Task {
	taskCtx, cancel := context.WithCancel(ctx)
	t := &Task{ID: uuid.New(), Name: name, cancel: cancel}
	o.mu.Lock()
	o.tasks[t.ID] = t
	o.mu.Unlock()
	go fn(taskCtx)
	return t
}

// Shutdown cancels every task spawned via Spawn.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, t := range o.tasks {
		t.Stop()
	}
}
