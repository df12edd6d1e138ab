// Package rinexout formats the combination engine's consensus clock
// stream as RINEX clock (.clk) records, grounded on
// `original_source/src/bncclockrinex.cpp`'s bncClockRinex (fixed header
// block plus one "AS <prn> <date> <sec> 1 <clk>" line per satellite per
// epoch) and on the header-date convention used throughout
// `_examples/de-bkg-gognss/pkg/encoding/rinex`.
package rinexout

import (
	"fmt"
	"io"
	"sort"

	"bncgo/internal/ephemeris"
	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

// ClockWriter serializes per-epoch consensus clock corrections as a
// RINEX 3.00 clock file. One ClockWriter owns one output file, matching
// spec §5's "single-writer per file, serialized by the owning
// component."
type ClockWriter struct {
	w           io.Writer
	programName string
	analysisCtr string
	headerDone  bool
	prns        []prn.Prn
}

// NewClockWriter creates a writer that will emit a header naming
// programName/analysisCenter once WriteHeader or the first WriteEpoch
// call fires, and then one "AS" record line per satellite per epoch.
func NewClockWriter(w io.Writer, programName, analysisCenter string) *ClockWriter {
	return &ClockWriter{w: w, programName: programName, analysisCtr: analysisCenter}
}

// WriteHeader emits the fixed RINEX clock header block, listing prns in
// the "# OF SOLN SATS" / "PRN LIST" records (bncClockRinex::writeHeader,
// generalized from its hardcoded 54-satellite GPS/GLONASS table to the
// caller-supplied constellation set).
func (cw *ClockWriter) WriteHeader(t gtime.Time, prns []prn.Prn) error {
	cw.prns = append([]prn.Prn(nil), prns...)
	sort.Slice(cw.prns, func(i, j int) bool {
		if cw.prns[i].System != cw.prns[j].System {
			return cw.prns[i].System < cw.prns[j].System
		}
		return cw.prns[i].Number < cw.prns[j].Number
	})

	if _, err := fmt.Fprintf(cw.w, "%6s%3s%-51s%s\n", "3.00", "", "C", "RINEX VERSION / TYPE"); err != nil {
		return err
	}
	y, mo, d, h, mi, s := t.Calendar()
	stamp := fmt.Sprintf("%04d%02d%02d %02d%02d%02d", y, mo, d, h, mi, int(s))
	if _, err := fmt.Fprintf(cw.w, "%-20s%-20s%-20s%s\n", cw.programName, "", stamp, "PGM / RUN BY / DATE"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(cw.w, "%6d    %-54s%s\n", 1, "AS", "# / TYPES OF DATA"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(cw.w, "%-60s%s\n", cw.analysisCtr, "ANALYSIS CENTER"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(cw.w, "%6d%54s%s\n", len(cw.prns), "", "# OF SOLN SATS"); err != nil {
		return err
	}
	for i := 0; i < len(cw.prns); i += 15 {
		end := i + 15
		if end > len(cw.prns) {
			end = len(cw.prns)
		}
		var line string
		for _, p := range cw.prns[i:end] {
			line += fmt.Sprintf("%c%02d ", byte(p.System), p.Number)
		}
		if _, err := fmt.Fprintf(cw.w, "%-60s%s\n", line, "PRN LIST"); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(cw.w, "%6d    %-54s%s\n", 0, "IGS08", "# OF SOLN STA / TRF"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(cw.w, "%-60s%s\n", "", "END OF HEADER"); err != nil {
		return err
	}
	cw.headerDone = true
	return nil
}

// WriteEpoch emits one "AS" record per entry in clocks, keyed by the
// epoch time common to all of them.
func (cw *ClockWriter) WriteEpoch(t gtime.Time, clocks map[prn.Prn]*ephemeris.ClkCorr) error {
	if !cw.headerDone {
		if err := cw.WriteHeader(t, prnsOf(clocks)); err != nil {
			return err
		}
	}
	ordered := prnsOf(clocks)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].System != ordered[j].System {
			return ordered[i].System < ordered[j].System
		}
		return ordered[i].Number < ordered[j].Number
	})
	y, mo, d, h, mi, s := t.Calendar()
	for _, p := range ordered {
		cc := clocks[p]
		if _, err := fmt.Fprintf(cw.w, "AS %c%02d  %04d %02d %02d %02d %02d%10.6f  1   %19.12e\n",
			byte(p.System), p.Number, y, mo, d, h, mi, s, cc.DClk); err != nil {
			return err
		}
	}
	return nil
}

func prnsOf(clocks map[prn.Prn]*ephemeris.ClkCorr) []prn.Prn {
	out := make([]prn.Prn, 0, len(clocks))
	for p := range clocks {
		out = append(out, p)
	}
	return out
}
