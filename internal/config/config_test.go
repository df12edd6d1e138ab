package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bncgo/internal/combination"
)

func TestParseCmbMethodAcceptsBothValues(t *testing.T) {
	m, err := ParseCmbMethod("Filter")
	require.NoError(t, err)
	assert.Equal(t, combination.MethodFilter, m)

	m, err = ParseCmbMethod("Single-Epoch")
	require.NoError(t, err)
	assert.Equal(t, combination.MethodSingleEpoch, m)

	_, err = ParseCmbMethod("bogus")
	assert.Error(t, err)
}

func TestParseACEntryParsesMountpointNameWeight(t *testing.T) {
	ac, err := ParseACEntry("RTCM3EPH CLK93 0.5")
	require.NoError(t, err)
	assert.Equal(t, "RTCM3EPH", ac.Mountpoint)
	assert.Equal(t, "CLK93", ac.Name)
	assert.Equal(t, 0.5, ac.Weight)
}

func TestParseACEntryRejectsMalformed(t *testing.T) {
	_, err := ParseACEntry("only two")
	assert.Error(t, err)
}

func TestValidateRejectsMissingRequiredFields(t *testing.T) {
	c := &Config{}
	assert.Error(t, c.Validate())
}

func TestValidateAcceptsMinimalCompleteConfig(t *testing.T) {
	c := &Config{
		AntexPath:        "igs14.atx",
		NtripSources:     []string{"ntrip://caster/MOUNT"},
		StationID:        "STA1",
		UploadMountpoint: "CLK93",
		TargetFrame:      "ETRF2000",
	}
	assert.NoError(t, c.Validate())
}
