// Command bncgo is the GNSS SSR correction-combination middleware
// entry point: it reads NTRIP SSR streams from one or more analysis
// centers, combines them into a single consensus correction stream,
// and re-uploads it as RTCM3 SSR (optionally also writing Clock RINEX,
// SP3, and on-disk correction files).
//
// The flag surface is grounded on `de-bkg-gognss/cmd/rnxgo`'s
// `urfave/cli/v2` App structure; the signal-driven shutdown and
// per-source goroutine model are grounded on `app/rtkrcv`'s main loop,
// generalized from rtkrcv's single RTK server task to one task per
// configured source plus the combination/uploader tasks.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"bncgo/internal/combination"
	"bncgo/internal/config"
	"bncgo/internal/ephemeris"
	"bncgo/internal/orchestrator"
	"bncgo/internal/reencoder"
	"bncgo/internal/sink/prom"
)

var version = "v0.1.0"

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	app := &cli.App{
		Version:   version,
		Compiled:  time.Now(),
		HelpName:  "bncgo",
		Usage:     "GNSS SSR correction combination and re-upload middleware",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "antex", Usage: "path to the ANTEX antenna phase-center file", Required: true},
			&cli.StringSliceFlag{Name: "source", Usage: "NTRIP source in host:port/mountpoint form, repeatable", Required: true},
			&cli.StringFlag{Name: "station-id", Usage: "upload station identifier"},
			&cli.StringFlag{Name: "upload-mountpoint", Usage: "NTRIP caster mountpoint to upload the combined stream to", Required: true},
			&cli.StringSliceFlag{Name: "ac", Usage: "analysis-center entry \"<mountpoint> <name> <weight>\", repeatable"},
			&cli.StringFlag{Name: "cmb-method", Value: "Filter", Usage: "combination method: Filter or Single-Epoch"},
			&cli.Float64Flag{Name: "cmb-sampl", Value: 5, Usage: "combination sampling interval in seconds"},
			&cli.BoolFlag{Name: "cmb-use-glonass", Usage: "include GLONASS satellites in the combination"},
			&cli.Float64Flag{Name: "cmb-maxres", Value: 999, Usage: "outlier-rejection residual threshold in meters"},
			&cli.Float64Flag{Name: "upload-sampl-clk-rnx", Usage: "Clock RINEX upload sampling interval (0 disables)"},
			&cli.Float64Flag{Name: "upload-sampl-sp3", Usage: "SP3 upload sampling interval (0 disables)"},
			&cli.Float64Flag{Name: "upload-sampl-rtcm-eph-corr", Usage: "RTCM3 orbit/clock split-vs-combined threshold (0 = combined)"},
			&cli.StringFlag{Name: "target-frame", Value: "ETRF2000", Usage: "target reference frame for the Helmert transform"},
			&cli.Float64Flag{Name: "trafo-dx", Usage: "custom frame: X translation, mm"},
			&cli.Float64Flag{Name: "trafo-dy", Usage: "custom frame: Y translation, mm"},
			&cli.Float64Flag{Name: "trafo-dz", Usage: "custom frame: Z translation, mm"},
			&cli.Float64Flag{Name: "trafo-dxr", Usage: "custom frame: X translation rate, mm/yr"},
			&cli.Float64Flag{Name: "trafo-dyr", Usage: "custom frame: Y translation rate, mm/yr"},
			&cli.Float64Flag{Name: "trafo-dzr", Usage: "custom frame: Z translation rate, mm/yr"},
			&cli.Float64Flag{Name: "trafo-ox", Usage: "custom frame: X rotation, mas"},
			&cli.Float64Flag{Name: "trafo-oy", Usage: "custom frame: Y rotation, mas"},
			&cli.Float64Flag{Name: "trafo-oz", Usage: "custom frame: Z rotation, mas"},
			&cli.Float64Flag{Name: "trafo-oxr", Usage: "custom frame: X rotation rate, mas/yr"},
			&cli.Float64Flag{Name: "trafo-oyr", Usage: "custom frame: Y rotation rate, mas/yr"},
			&cli.Float64Flag{Name: "trafo-ozr", Usage: "custom frame: Z rotation rate, mas/yr"},
			&cli.Float64Flag{Name: "trafo-sc", Usage: "custom frame: scale, ppb"},
			&cli.Float64Flag{Name: "trafo-scr", Usage: "custom frame: scale rate, ppb/yr"},
			&cli.Float64Flag{Name: "trafo-t0", Usage: "custom frame: reference epoch, decimal year"},
			&cli.IntFlag{Name: "provider-id", Usage: "RTCM3 SSR provider ID to emit"},
			&cli.IntFlag{Name: "solution-id", Usage: "RTCM3 SSR solution ID to emit"},
			&cli.StringFlag{Name: "rinex-obs-path", Usage: "directory to archive observation RINEX files"},
			&cli.StringFlag{Name: "rinex-nav-path", Usage: "directory to archive navigation RINEX files"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "logrus level: debug, info, warn, error"},
			&cli.StringFlag{Name: "metrics-addr", Value: ":9121", Usage: "address to serve /metrics on"},
		},
		Action: func(c *cli.Context) error {
			return run(c, log)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("bncgo: fatal error")
	}
}

func run(c *cli.Context, log *logrus.Logger) error {
	if lvl, err := logrus.ParseLevel(c.String("log-level")); err == nil {
		log.SetLevel(lvl)
	}

	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store := ephemeris.NewStore()
	orch := orchestrator.New(cfg, store, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := prom.New(c.String("metrics-addr"), log)
	go func() {
		if err := metrics.Serve(ctx); err != nil {
			log.WithError(err).Warn("bncgo: metrics server stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		s := <-sig
		log.WithField("signal", s).Info("bncgo: shutting down")
		cancel()
	}()

	for _, src := range cfg.NtripSources {
		src := src
		orch.Spawn(ctx, "source:"+src, func(taskCtx context.Context) {
			orch.RunSource(taskCtx, src, currentGPSWeek(), ntripDialer(src))
		})
	}

	orch.Spawn(ctx, "combiner", func(taskCtx context.Context) {
		orch.RunCombiner(taskCtx, combination.NewState())
	})

	uploadConn, err := net.Dial("tcp", cfg.UploadMountpoint)
	if err != nil {
		log.WithError(err).Warn("bncgo: upload connection unavailable, consensus will be encoded but not sent")
		uploadConn = nil
	}
	enc := &reencoder.Encoder{ProviderID: cfg.ProviderID, SolutionID: cfg.SolutionID}
	if uploadConn != nil {
		defer uploadConn.Close()
		orch.Spawn(ctx, "uploader", func(taskCtx context.Context) {
			orch.RunUploader(taskCtx, enc, uploadConn)
		})
	}

	<-ctx.Done()
	orch.Shutdown()
	return nil
}

// ntripDialer opens a plain TCP connection to an NTRIP source mountpoint
// and issues the minimal NTRIP 1 request line; full chunked-transfer and
// digest-auth handling is out of scope (NTRIP transport is external per
// the spec's boundary), so this is deliberately the simplest client that
// can hand the decoder a byte stream.
func ntripDialer(source string) orchestrator.Dialer {
	return func(ctx context.Context) (io.ReadCloser, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", source)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+source+"/", nil)
		if err != nil {
			conn.Close()
			return nil, err
		}
		req.Header.Set("User-Agent", "NTRIP bncgo/"+version)
		if err := req.Write(conn); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func currentGPSWeek() int {
	const gpsEpochUnix = 315964800 // 1980-01-06 00:00:00 UTC
	return int((time.Now().Unix() - gpsEpochUnix) / (7 * 86400))
}

func buildConfig(c *cli.Context) (*config.Config, error) {
	method, err := config.ParseCmbMethod(c.String("cmb-method"))
	if err != nil {
		return nil, err
	}
	var acList []config.ACEntry
	for _, raw := range c.StringSlice("ac") {
		ac, err := config.ParseACEntry(raw)
		if err != nil {
			return nil, err
		}
		acList = append(acList, ac)
	}
	frame := reencoder.Frame(c.String("target-frame"))
	switch frame {
	case reencoder.FrameIGS08, reencoder.FrameETRF2000, reencoder.FrameNAD83,
		reencoder.FrameGDA94, reencoder.FrameSIRGAS2000, reencoder.FrameSIRGAS95,
		reencoder.FrameDREF91, reencoder.FrameCustom:
	default:
		return nil, fmt.Errorf("bncgo: unknown target frame %q", frame)
	}
	trafo := reencoder.HelmertParams{
		Dx: c.Float64("trafo-dx"), Dy: c.Float64("trafo-dy"), Dz: c.Float64("trafo-dz"),
		Dxr: c.Float64("trafo-dxr"), Dyr: c.Float64("trafo-dyr"), Dzr: c.Float64("trafo-dzr"),
		Ox: c.Float64("trafo-ox"), Oy: c.Float64("trafo-oy"), Oz: c.Float64("trafo-oz"),
		Oxr: c.Float64("trafo-oxr"), Oyr: c.Float64("trafo-oyr"), Ozr: c.Float64("trafo-ozr"),
		Sc: c.Float64("trafo-sc"), Scr: c.Float64("trafo-scr"), T0: c.Float64("trafo-t0"),
	}
	if frame == reencoder.FrameCustom {
		reencoder.RegisterCustomFrame(trafo)
	}

	return &config.Config{
		RinexObsPath:           c.String("rinex-obs-path"),
		RinexNavPath:           c.String("rinex-nav-path"),
		AntexPath:              c.String("antex"),
		NtripSources:           c.StringSlice("source"),
		StationID:              c.String("station-id"),
		UploadMountpoint:       c.String("upload-mountpoint"),
		ACList:                 acList,
		CmbMethod:              method,
		CmbSampl:               c.Float64("cmb-sampl"),
		CmbUseGlonass:          c.Bool("cmb-use-glonass"),
		CmbMaxres:              c.Float64("cmb-maxres"),
		UploadSamplClkRnx:      c.Float64("upload-sampl-clk-rnx"),
		UploadSamplSp3:         c.Float64("upload-sampl-sp3"),
		UploadSamplRtcmEphCorr: c.Float64("upload-sampl-rtcm-eph-corr"),
		TargetFrame:            frame,
		Trafo:                  trafo,
		ProviderID:             c.Int("provider-id"),
		SolutionID:             c.Int("solution-id"),
	}, nil
}
