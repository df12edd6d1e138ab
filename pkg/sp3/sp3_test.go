package sp3

import (
	"strings"
	"testing"
)

const sampleA = `#aP2024 03 15 0 0 0.00000000     2 ORBIT IGS08 HLM  IGS
## 2300   43200.00000000     30.00000000 60310 0.5000000000000
*  2024  3 15  0  0  0.00000000
PG01   1000.000000  2000.000000  3000.000000    100.000000
*  2024  3 15  0  1  0.00000000
PG01   1000.300000  2000.300000  3000.300000    100.000000
EOF
`

const sampleB = `#aP2024 03 15 0 0 0.00000000     2 ORBIT IGS08 HLM  IGS
## 2300   43200.00000000     30.00000000 60310 0.5000000000000
*  2024  3 15  0  0  0.00000000
PG01   1000.010000  2000.010000  3000.010000    100.000010
*  2024  3 15  0  1  0.00000000
PG01   1000.310000  2000.310000  3000.310000    100.000010
EOF
`

func TestParseReadsEpochsAndSatellites(t *testing.T) {
	set, err := Parse(strings.NewReader(sampleA))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(set.Epochs) != 2 {
		t.Fatalf("expected 2 epochs, got %d", len(set.Epochs))
	}
	if len(set.Epochs[0].Sats) != 1 {
		t.Fatalf("expected 1 satellite, got %d", len(set.Epochs[0].Sats))
	}
}

func TestCompareProducesNonZeroDiffsForDifferingSets(t *testing.T) {
	a, err := Parse(strings.NewReader(sampleA))
	if err != nil {
		t.Fatalf("Parse a: %v", err)
	}
	b, err := Parse(strings.NewReader(sampleB))
	if err != nil {
		t.Fatalf("Parse b: %v", err)
	}
	diffs, summary := Compare(a, b)
	if len(diffs) == 0 {
		t.Fatalf("expected non-empty diffs")
	}
	if summary.Count == 0 {
		t.Fatalf("expected non-zero summary count")
	}
	if summary.RMSRadial == 0 && summary.RMSAlong == 0 && summary.RMSCross == 0 {
		t.Fatalf("expected some nonzero RMS component, got all-zero summary: %+v", summary)
	}
}

func TestCompareRequiresAtLeastTwoCommonEpochs(t *testing.T) {
	const oneEpoch = `*  2024  3 15  0  0  0.00000000
PG01   1000.000000  2000.000000  3000.000000    100.000000
EOF
`
	a, _ := Parse(strings.NewReader(oneEpoch))
	b, _ := Parse(strings.NewReader(oneEpoch))
	diffs, summary := Compare(a, b)
	if diffs != nil || summary.Count != 0 {
		t.Fatalf("expected no diffs with fewer than 2 common epochs, got %d diffs", len(diffs))
	}
}
