package drift

// Trial is one row of the run's event table.
type Trial struct {
	Number   int     // TrialNumber, unique within a run
	Onset    float64 // seconds from task onset
	Duration float64 // seconds
}

// Offset is the end of the image period.
func (t Trial) Offset() float64 { return t.Onset + t.Duration }
