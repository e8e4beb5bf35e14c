package sparse

import "gonum.org/v1/gonum/mat"

// ForEachNonZero calls fn for every non-zero element of row i of X.
// CSR rows are visited without densifying; other matrices are scanned.
func ForEachNonZero(X mat.Matrix, i int, fn func(j int, v float64)) {
	switch m := X.(type) {
	case *CSR:
		indices, values := m.Row(i)
		for k, j := range indices {
			if values[k] != 0 {
				fn(j, values[k])
			}
		}
	case mat.RawRowViewer:
		for j, v := range m.RawRowView(i) {
			if v != 0 {
				fn(j, v)
			}
		}
	default:
		_, c := X.Dims()
		for j := 0; j < c; j++ {
			if v := X.At(i, j); v != 0 {
				fn(j, v)
			}
		}
	}
}
