package reencoder

import (
	"fmt"
	"strings"
)

// EncodeVTecCorrectionFile renders a VTEC record in the on-disk
// correction-file body format (§6: "VTEC body per layer: <idx> <N> <M>
// <height>, then (N+1)x(M+1) cosine coefficients, then the same number
// of sine coefficients"). The teacher's RTCM3 encoder (rtcm3e.go) never
// implements an over-the-wire VTEC message — ctype=7 there is phase
// bias, and no IGS-SSR VTEC subtype encoder exists to ground a bit
// layout on — so VTEC is emitted in the correction-file text format
// instead, which the specification itself fully defines (§6) and the
// teacher already round-trips via its correction-file reader/writer
// pair; see DESIGN.md.
func EncodeVTecCorrectionFile(v *VTecData) string {
	var b strings.Builder
	for idx, layer := range v.Layers {
		fmt.Fprintf(&b, "%d %d %d %.4f\n", idx, layer.N, layer.M, layer.Height)
		writeCoeffMatrix(&b, layer.C)
		writeCoeffMatrix(&b, layer.S)
	}
	return b.String()
}

func writeCoeffMatrix(b *strings.Builder, m [][]float64) {
	for _, row := range m {
		for j, v := range row {
			if j > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(b, "%.6e", v)
		}
		b.WriteByte('\n')
	}
}
