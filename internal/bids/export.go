package bids

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/gzip"

	"github.com/banshee-data/gaze.driftcorr/internal/drift"
	"github.com/banshee-data/gaze.driftcorr/internal/events"
	"github.com/banshee-data/gaze.driftcorr/internal/gaze"
)

// GazeColumns is the header of the eyetrack.tsv.gz export.
var GazeColumns = []string{
	"eye_timestamp",
	"eye1_x_coordinate", "eye1_y_coordinate",
	"eye1_confidence",
	"eye1_x_coordinate_driftCorr", "eye1_y_coordinate_driftCorr",
	"eye1_pupil_x_coordinate", "eye1_pupil_y_coordinate",
	"eye1_pupil_diameter",
	"eye1_pupil_ellipse_axes",
	"eye1_pupil_ellipse_angle",
	"eye1_pupil_ellipse_center",
}

func formatPair(p [2]float64) string {
	return "[" + strconv.FormatFloat(p[0], 'f', -1, 64) + ", " + strconv.FormatFloat(p[1], 'f', -1, 64) + "]"
}

// WriteGazeExport writes the drift-corrected samples as a gzipped TSV.
// kept and corr must be aligned, as returned in drift.Result.
func WriteGazeExport(w io.Writer, kept []gaze.Sample, corr drift.Corrected) error {
	if len(kept) != len(corr.X) || len(kept) != len(corr.Y) {
		return fmt.Errorf("%d samples but %d corrected positions", len(kept), len(corr.X))
	}

	zw := gzip.NewWriter(w)
	cw := csv.NewWriter(zw)
	cw.Comma = '\t'

	if err := cw.Write(GazeColumns); err != nil {
		zw.Close()
		return err
	}
	f := events.FormatFloat
	row := make([]string, len(GazeColumns))
	for i, s := range kept {
		row[0] = f(s.ResetTime)
		row[1], row[2] = f(s.X()), f(s.Y())
		row[3] = f(s.Confidence)
		row[4], row[5] = f(corr.X[i]), f(corr.Y[i])
		row[6], row[7] = f(s.Pupil.NormPos[0]), f(s.Pupil.NormPos[1])
		row[8] = f(s.Pupil.Diameter)
		row[9] = formatPair(s.Pupil.Ellipse.Axes)
		row[10] = f(s.Pupil.Ellipse.Angle)
		row[11] = formatPair(s.Pupil.Ellipse.Center)
		if err := cw.Write(row); err != nil {
			zw.Close()
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		zw.Close()
		return fmt.Errorf("write gaze export: %w", err)
	}
	return zw.Close()
}
