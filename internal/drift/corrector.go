package drift

// Corrected holds drift-corrected positions aligned 1:1 with the all stream.
type Corrected struct {
	X, Y []float64
	// RefIndex is the reference applied to each sample, -1 when there were
	// no references and the sample was left as is.
	RefIndex []int
}

// Correct subtracts a fixation reference from every sample of all.
//
// A sample at time t is corrected with the most recent reference recorded
// before t, stepped back by lookback references. Samples preceding the
// usable references take reference 0. Without any reference the samples
// are returned unchanged.
func Correct(refs []FixationReference, all Stream, lookback int) (Corrected, error) {
	if err := checkSorted("sample time", all.Times); err != nil {
		return Corrected{}, err
	}
	if lookback < 0 {
		lookback = 0
	}

	n := all.Len()
	out := Corrected{
		X:        make([]float64, n),
		Y:        make([]float64, n),
		RefIndex: make([]int, n),
	}
	if len(refs) == 0 {
		copy(out.X, all.X)
		copy(out.Y, all.Y)
		for i := range out.RefIndex {
			out.RefIndex[i] = -1
		}
		return out, nil
	}

	gap := lookback + 1
	j := 0
	for i, t := range all.Times {
		for j < len(refs)-gap && t > refs[j+gap].Time {
			j++
		}
		out.X[i] = all.X[i] - refs[j].X
		out.Y[i] = all.Y[i] - refs[j].Y
		out.RefIndex[i] = j
	}
	return out, nil
}
