/*Package crosstalk mixes signal between amplifier channels.

Electronic coupling between readout channels puts a small fraction of
each amplifier's apparent signal into the others.  The effect is modeled
as a single linear pass over the ordered per-amplifier arrays: one-shot
mixing, no iteration to convergence.
*/
package crosstalk

import (
	"strconv"

	"github.com/rubin-sim/readoutsim/pix"
)

// Apply mixes the ordered per-amplifier arrays with the coefficient
// matrix: output i = input i + sum_j coeffs[i][j] * input[j].  A nil
// coeffs is the identity and returns the inputs unchanged without
// copying.  All arrays must share one shape and coeffs must be square
// with size len(arrays); violations return a *pix.ShapeError.
func Apply(arrays []*pix.Image, coeffs [][]float64) ([]*pix.Image, error) {
	if coeffs == nil {
		return arrays, nil
	}
	n := len(arrays)
	if len(coeffs) != n {
		return nil, &pix.ShapeError{
			Op:   "crosstalk.Apply",
			Want: strconv.Itoa(n) + " coefficient rows",
			Got:  strconv.Itoa(len(coeffs)),
		}
	}
	for i := 1; i < n; i++ {
		if !arrays[i].SameShape(arrays[0]) {
			return nil, &pix.ShapeError{
				Op:   "crosstalk.Apply",
				Want: arrays[0].Bounds.String(),
				Got:  arrays[i].Bounds.String(),
			}
		}
	}
	out := make([]*pix.Image, n)
	for i, row := range coeffs {
		if len(row) != n {
			return nil, &pix.ShapeError{
				Op:   "crosstalk.Apply",
				Want: strconv.Itoa(n) + " coefficients in row " + strconv.Itoa(i),
				Got:  strconv.Itoa(len(row)),
			}
		}
		mixed := arrays[i].Copy()
		for j, c := range row {
			if c == 0 {
				continue
			}
			src := arrays[j].Data
			for k := range mixed.Data {
				mixed.Data[k] += c * src[k]
			}
		}
		out[i] = mixed
	}
	return out, nil
}
