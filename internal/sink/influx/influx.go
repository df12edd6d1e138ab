// Package influx writes decoded SSR corrections and latency reports to
// InfluxDB, wiring the example pack's influxdb-client-go/v2 dependency
// (named in go.mod but otherwise unwired) into a concrete output sink,
// in the spirit of the teacher's single-writer-per-output-resource
// pattern (§5 "Shared resources").
package influx

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"bncgo/internal/ephemeris"
	"bncgo/internal/prn"
)

// Sink writes correction and latency records as Influx line-protocol
// points.
type Sink struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	log    *logrus.Logger
}

// New connects to an InfluxDB server at url using token, writing into
// org/bucket.
func New(url, token, org, bucket string, log *logrus.Logger) *Sink {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := influxdb2.NewClient(url, token)
	return &Sink{client: c, write: c.WriteAPIBlocking(org, bucket), log: log}
}

// Close flushes and releases the underlying client.
func (s *Sink) Close() { s.client.Close() }

// WriteClock records one consensus clock correction (§4.H step 7).
func (s *Sink) WriteClock(ctx context.Context, stream string, sat prn.Prn, cc *ephemeris.ClkCorr, t time.Time) error {
	p := influxdb2.NewPoint("ssr_clock",
		map[string]string{"stream": stream, "sat": sat.String()},
		map[string]interface{}{
			"dclk":       cc.DClk,
			"dot_dclk":   cc.DotDClk,
			"dotdot_dclk": cc.DotDotDClk,
			"iod":        cc.Iod,
		}, t)
	if err := s.write.WritePoint(ctx, p); err != nil {
		s.log.WithError(err).WithField("stream", stream).Warn("influx: write failed")
		return err
	}
	return nil
}

// WriteOrbit records one consensus orbit correction.
func (s *Sink) WriteOrbit(ctx context.Context, stream string, sat prn.Prn, oc *ephemeris.OrbCorr, t time.Time) error {
	p := influxdb2.NewPoint("ssr_orbit",
		map[string]string{"stream": stream, "sat": sat.String()},
		map[string]interface{}{
			"radial": oc.Xr[0],
			"along":  oc.Xr[1],
			"cross":  oc.Xr[2],
			"iod":    oc.Iod,
		}, t)
	if err := s.write.WritePoint(ctx, p); err != nil {
		s.log.WithError(err).WithField("stream", stream).Warn("influx: write failed")
		return err
	}
	return nil
}

// WriteLatency records one latency-monitor report (§4.J).
func (s *Sink) WriteLatency(ctx context.Context, stream string, mean, min, max, rms float64, gaps int, t time.Time) error {
	p := influxdb2.NewPoint("stream_latency",
		map[string]string{"stream": stream},
		map[string]interface{}{
			"mean": mean, "min": min, "max": max, "rms": rms, "gaps": gaps,
		}, t)
	if err := s.write.WritePoint(ctx, p); err != nil {
		s.log.WithError(err).WithField("stream", stream).Warn("influx: write failed")
		return err
	}
	return nil
}
