// Package gtime implements the GNSS time scales, leap-second handling
// and coordinate-frame transforms shared by every other component
// (component A of the system design).
package gtime

import (
	"fmt"
	"math"
	"time"
)

const (
	secPerWeek = 7 * 86400
	bdsGpsLeap = 14.0 // BDS second = GPS second - 14
	bdsGpsWeek = 1356 // BDS week = GPS week - 1356
)

// Time is an instant on the GPS timescale, stored as whole seconds since
// the Unix epoch plus a sub-second fraction, mirroring the gtime_t
// representation used throughout the teacher codebase. A zero Time is
// the sentinel "undefined" instant; arithmetic on it is meaningless and
// callers must check Valid() first.
type Time struct {
	sec  int64   // whole seconds since 1970-01-01 (Unix, no leap adjustment)
	frac float64 // [0,1) fractional seconds
}

// Valid reports whether t has been set to a real instant.
func (t Time) Valid() bool { return t.sec != 0 || t.frac != 0 }

var gpsEpoch = mustEpoch(1980, 1, 6, 0, 0, 0)

func mustEpoch(y, mo, d, h, mi int, s float64) int64 {
	tt := time.Date(y, time.Month(mo), d, h, mi, int(s), 0, time.UTC)
	return tt.Unix()
}

// Set builds a Time from a UTC-free GPS calendar date (the teacher's
// Epoch2Time convention: no leap-second correction is applied here —
// GPS time has none).
func Set(year, month, day, hour, min int, sec float64) Time {
	whole := math.Floor(sec)
	base := time.Date(year, time.Month(month), day, hour, min, int(whole), 0, time.UTC)
	return Time{sec: base.Unix(), frac: sec - whole}
}

// SetFromBdsCalendar builds a Time from a BeiDou-time calendar date.
// BDS time equals GPS time minus 14 seconds, so the instant is stored
// on the GPS timescale with the 14 s offset folded in at construction.
func SetFromBdsCalendar(year, month, day, hour, min int, sec float64) Time {
	t := Set(year, month, day, hour, min, sec)
	return t.Add(bdsGpsLeap)
}

// Add returns t shifted by sec seconds (handles week rollover naturally
// since the internal representation is a flat second counter).
func (t Time) Add(sec float64) Time {
	t.frac += sec
	shift := math.Floor(t.frac)
	t.sec += int64(shift)
	t.frac -= shift
	return t
}

// Sub returns t-u in seconds.
func (t Time) Sub(u Time) float64 {
	return float64(t.sec-u.sec) + t.frac - u.frac
}

// GpsWeek returns the GPS week number.
func (t Time) GpsWeek() int {
	return int((t.sec - gpsEpoch) / secPerWeek)
}

// GpsSec returns the GPS time-of-week in [0, 604800).
func (t Time) GpsSec() float64 {
	w := t.GpsWeek()
	return float64(t.sec-gpsEpoch-int64(w)*secPerWeek) + t.frac
}

// FromGpsWeekSec constructs a Time from a GPS week and time-of-week.
func FromGpsWeekSec(week int, sec float64) Time {
	whole := math.Floor(sec)
	return Time{sec: gpsEpoch + int64(week)*secPerWeek + int64(whole), frac: sec - whole}
}

// BdsWeek returns the BeiDou week number: BDS week = GPS week - 1356.
func (t Time) BdsWeek() int { return t.GpsWeek() - bdsGpsWeek }

// BdsSec returns the BeiDou time-of-week: BDS second = GPS second - 14,
// wrapped into [0, 604800).
func (t Time) BdsSec() float64 {
	s := t.GpsSec() - bdsGpsLeap
	if s < 0 {
		s += secPerWeek
	}
	return s
}

// Mjd returns the Modified Julian Day (integer part) on the GPS
// timescale.
func (t Time) Mjd() int {
	return int((t.sec - mustEpoch(1858, 11, 17, 0, 0, 0)) / 86400)
}

// Daysec returns the seconds elapsed since the start of the day
// (UTC-free, GPS timescale), including fraction.
func (t Time) Daysec() float64 {
	return float64(((t.sec % 86400) + 86400) % 86400) + t.frac
}

// Mjddec returns the Modified Julian Day including the fractional part
// of the day.
func (t Time) Mjddec() float64 {
	return float64(t.Mjd()) + t.Daysec()/86400.0
}

// Calendar returns the (year, month, day, hour, min, sec) breakdown.
func (t Time) Calendar() (int, int, int, int, int, float64) {
	u := time.Unix(t.sec, 0).UTC()
	return u.Year(), int(u.Month()), u.Day(), u.Hour(), u.Minute(), float64(u.Second()) + t.frac
}

func (t Time) String() string {
	y, mo, d, h, mi, s := t.Calendar()
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%06.3f", y, mo, d, h, mi, s)
}

// leap second table (y,m,d,h,m,s, utc-gps offset), newest first.
var leaps = [][7]int{
	{2017, 1, 1, 0, 0, 0, -18},
	{2015, 7, 1, 0, 0, 0, -17},
	{2012, 7, 1, 0, 0, 0, -16},
	{2009, 1, 1, 0, 0, 0, -15},
	{2006, 1, 1, 0, 0, 0, -14},
	{1999, 1, 1, 0, 0, 0, -13},
	{1997, 7, 1, 0, 0, 0, -12},
	{1996, 1, 1, 0, 0, 0, -11},
	{1994, 7, 1, 0, 0, 0, -10},
	{1993, 7, 1, 0, 0, 0, -9},
	{1992, 7, 1, 0, 0, 0, -8},
	{1991, 1, 1, 0, 0, 0, -7},
	{1990, 1, 1, 0, 0, 0, -6},
	{1988, 1, 1, 0, 0, 0, -5},
	{1985, 7, 1, 0, 0, 0, -4},
	{1983, 7, 1, 0, 0, 0, -3},
	{1982, 7, 1, 0, 0, 0, -2},
	{1981, 7, 1, 0, 0, 0, -1},
}

// LeapSeconds returns the UTC-GPS leap second offset (a negative
// number of seconds) applicable at t.
func (t Time) LeapSeconds() float64 {
	for _, l := range leaps {
		lt := Set(l[0], l[1], l[2], l[3], l[4], float64(l[5]))
		_ = lt
		epoch := mustEpoch(l[0], l[1], l[2], l[3], l[4], 0)
		if t.sec >= epoch {
			return float64(l[6])
		}
	}
	return 0
}

// GNumLeap returns the whole number of leap seconds (unsigned count)
// applicable for the given calendar date, used by the GLONASS
// Moscow-time conversion.
func GNumLeap(year, month, day int) int {
	t := Set(year, month, day, 0, 0, 0)
	return -int(t.LeapSeconds())
}

// MoscowToGps converts a GLONASS Moscow second-of-day, passed as
// secOfWeek and placed in GPS week week, into GPS time. The value is
// shifted by gnumleap(y,m,d)-3h (Moscow = UTC+3) and then moved by whole
// days toward the reference GPS time hostTime; it ends within a 4-hour
// window of hostTime whenever the two differ by less than 4 hours modulo
// a day, per the 2026 wraparound design note (REDESIGN FLAGS).
func MoscowToGps(hostTime Time, week int, secOfWeek float64) Time {
	y, mo, d, _, _, _ := hostTime.Calendar()
	leap := float64(GNumLeap(y, mo, d))
	sec := secOfWeek + leap - 3*3600
	t := FromGpsWeekSec(week, sec)
	for t.Sub(hostTime) > 4*3600 {
		t = t.Add(-86400)
	}
	for t.Sub(hostTime) < -4*3600 {
		t = t.Add(86400)
	}
	return t
}

// RollToNearest shifts t by whole weeks toward ref, the rule the SSR
// decoder uses (with a 12-hour window) to disambiguate the
// second-of-week encoding against the receiver's wall clock. t ends
// within window seconds of ref when its offset modulo a week allows it;
// otherwise it ends less than a week after ref.
func RollToNearest(t, ref Time, window float64) Time {
	for t.Sub(ref) > window {
		t = t.Add(-secPerWeek)
	}
	for t.Sub(ref) < -window {
		t = t.Add(secPerWeek)
	}
	return t
}
