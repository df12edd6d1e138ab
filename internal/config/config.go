// Package config defines the key-value configuration surface of spec
// §6 ("RINEX paths, NTRIP endpoints, antenna file, station ID, upload
// mountpoints, AC list, transformation frame, cmbMethod, cmbSampl,
// cmbUseGlonass, cmbMaxres, the three upload sampling intervals, the
// Helmert trafo_* scalars") and validates it once at startup, grounded
// on `de-bkg-gognss/pkg/site`'s single cached `validator.Validate`
// instance and `Struct`-tag validation pattern.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"bncgo/internal/combination"
	"bncgo/internal/reencoder"
)

// ACEntry is one analysis-center upload source: "<mountpoint> <name>
// <weight>" per spec §6.
type ACEntry struct {
	Mountpoint string  `validate:"required"`
	Name       string  `validate:"required"`
	Weight     float64 `validate:"gte=0"`
}

// Config is the full set of options read once at process startup.
type Config struct {
	// RINEX paths
	RinexObsPath string
	RinexNavPath string
	AntexPath    string `validate:"required"`

	// NTRIP endpoints
	NtripSources []string `validate:"required,min=1,dive,required"`
	StationID    string   `validate:"required"`

	// Upload
	UploadMountpoint string `validate:"required"`
	ACList           []ACEntry

	// Combination (§4.H / §6 cmbMethod, cmbSampl, cmbUseGlonass, cmbMaxres)
	CmbMethod      combination.Method
	CmbSampl       float64 `validate:"gte=0"`
	CmbUseGlonass  bool
	CmbMaxres      float64 `validate:"gte=0"`

	// Upload sampling intervals (§6)
	UploadSamplClkRnx      float64 `validate:"gte=0"`
	UploadSamplSp3         float64 `validate:"gte=0"`
	UploadSamplRtcmEphCorr float64 `validate:"gte=0"`

	// Reference frame (§4.I / §6 Frame parameters)
	TargetFrame reencoder.Frame `validate:"required"`
	Trafo       reencoder.HelmertParams

	ProviderID int
	SolutionID int
}

// ParseCmbMethod maps the config string form ("Filter" or
// "Single-Epoch") onto combination.Method, per spec §6 "cmbMethod ∈
// {Filter, Single-Epoch}".
func ParseCmbMethod(s string) (combination.Method, error) {
	switch s {
	case "Filter":
		return combination.MethodFilter, nil
	case "Single-Epoch":
		return combination.MethodSingleEpoch, nil
	default:
		return 0, fmt.Errorf("config: cmbMethod must be %q or %q, got %q", "Filter", "Single-Epoch", s)
	}
}

// ParseACEntry parses one "<mountpoint> <name> <weight>" AC-list entry.
func ParseACEntry(s string) (ACEntry, error) {
	f := strings.Fields(s)
	if len(f) != 3 {
		return ACEntry{}, fmt.Errorf("config: malformed AC entry %q, want \"<mountpoint> <name> <weight>\"", s)
	}
	w, err := strconv.ParseFloat(f[2], 64)
	if err != nil {
		return ACEntry{}, fmt.Errorf("config: bad AC weight in %q: %w", s, err)
	}
	return ACEntry{Mountpoint: f[0], Name: f[1], Weight: w}, nil
}

// validate is a single cached validator.Validate instance; constructing
// one is relatively expensive since it builds a struct-tag cache.
var validate = validator.New()

// Validate checks every struct tag once, per spec §6 "All options are
// read at startup."
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	for i, ac := range c.ACList {
		if err := validate.Struct(ac); err != nil {
			return fmt.Errorf("config: AC entry %d invalid: %w", i, err)
		}
	}
	return nil
}
