package orchestrator

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bncgo/internal/combination"
	"bncgo/internal/config"
	"bncgo/internal/ephemeris"
	"bncgo/internal/prn"
	"bncgo/internal/reencoder"
	"bncgo/internal/ssr"
)

func ssrEventWithOrbit(p prn.Prn) ssr.Event {
	return ssr.Event{OrbCorr: &ephemeris.OrbCorr{Prn: p}}
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig() *config.Config {
	return &config.Config{
		ACList:   []config.ACEntry{{Mountpoint: "M1", Name: "AC1", Weight: 1}},
		CmbSampl: 0, // RunCombiner clamps non-positive to 1s; tests trigger manually instead
	}
}

type closerReader struct {
	io.Reader
}

func (closerReader) Close() error { return nil }

func TestOrchestratorRunSourceReconnectsAfterEndOfStream(t *testing.T) {
	cfg := testConfig()
	store := ephemeris.NewStore()
	o := New(cfg, store, testLogger())

	dialed := 0
	dial := func(ctx context.Context) (io.ReadCloser, error) {
		dialed++
		if dialed == 1 {
			return closerReader{bytes.NewReader(nil)}, nil
		}
		return nil, context.Canceled
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	o.RunSource(ctx, "AC1", 2300, dial)

	assert.GreaterOrEqual(t, dialed, 2, "expected a redial after the first connection reached end of stream")
}

func TestNextPauseDoublesAndCaps(t *testing.T) {
	p := initPause
	for i := 0; i < 20; i++ {
		p = nextPause(p)
	}
	assert.Equal(t, maxReconnectPause, p)
}

func TestStreamStateSnapshotCopiesAccumulatedCorrections(t *testing.T) {
	st := newStreamState("AC1", 1.0)
	p := prn.Prn{System: prn.GPS, Number: 5}
	st.apply(ssrEventWithOrbit(p))

	snap := st.snapshot()
	require.Equal(t, "AC1", snap.Name)
	require.Equal(t, 1.0, snap.Weight)
	_, ok := snap.Orbit[p]
	assert.True(t, ok, "expected snapshot to contain applied orbit correction")
}

func TestOrchestratorUploadConsensusWritesFrames(t *testing.T) {
	cfg := testConfig()
	store := ephemeris.NewStore()
	o := New(cfg, store, testLogger())

	p := prn.Prn{System: prn.GPS, Number: 5}
	c := &combination.Consensus{
		Clock: map[prn.Prn]float64{p: 0.01},
		Orbit: map[prn.Prn]*ephemeris.OrbCorr{p: {Prn: p}},
		Used:  map[prn.Prn][]string{p: {"AC1"}},
	}

	var buf bytes.Buffer
	enc := &reencoder.Encoder{}
	o.uploadConsensus(enc, &buf, c)
	assert.NotEmpty(t, buf.Bytes(), "expected at least one encoded frame written")
}

func TestSpawnAndShutdownStopsTasks(t *testing.T) {
	cfg := testConfig()
	store := ephemeris.NewStore()
	o := New(cfg, store, testLogger())

	done := make(chan struct{})
	o.Spawn(context.Background(), "test", func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})
	o.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected spawned task to stop after Shutdown")
	}
}
