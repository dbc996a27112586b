package drift

import (
	"fmt"
	"math"

	"github.com/banshee-data/gaze.driftcorr/internal/units"
)

// Column is one appended events-table column, one value per trial. Text is
// set instead of Values for string columns.
type Column struct {
	Name   string
	Values []float64
	Text   []string
}

func thresholdSuffix(limit float64) string {
	return fmt.Sprintf("%.1f", limit)
}

// Columns renders the metrics as events-table columns, one value per trial
// in trials order. Lagged values read from trial n-TrialLookback, falling
// back to the first trial with a populated fixation period.
func (m *MetricsTable) Columns(trials []Trial, s Strategy, threshold float64, t Timing, g units.Geometry) []Column {
	n := len(trials)
	col := func(name string) Column {
		return Column{Name: name, Values: make([]float64, n)}
	}

	strategy := Column{Name: "drift_correction_strategy", Text: make([]string, n)}
	conf := col("confidence_threshold")
	fixCount := col("fix_gaze_count_ratio")
	trialCount := col("trial_gaze_count_ratio")
	fixConf90 := col("fix_gaze_confidence_ratio_0.9")
	fixConf75 := col("fix_gaze_confidence_ratio_0.75")
	trialConf90 := col("trial_gaze_confidence_ratio_0.9")
	trialConf75 := col("trial_gaze_confidence_ratio_0.75")
	toFix := col("median_dist_to_fixation_in_deg")
	toPrev := col("median_dist_to_previous_trial_in_deg")

	var compliance, trialD2M, fixD2M [len(ComplianceThresholds)]Column
	for k, limit := range ComplianceThresholds {
		sfx := thresholdSuffix(limit)
		compliance[k] = col("trial_fixation_compliance_ratio_" + sfx)
		trialD2M[k] = col("trial_dist2med_ratio_" + sfx)
		fixD2M[k] = col("fix_dist2med_ratio_" + sfx)
	}

	fixExpected := t.SampleRate * s.FixationDuration(t)
	trialExpected := t.SampleRate * t.ImageDuration
	nan := math.NaN()

	for i, tr := range trials {
		strategy.Text[i] = s.Name
		conf.Values[i] = threshold

		cur, ok := m.Lookup(tr.Number)
		if !ok {
			cur = emptyTrialMetrics()
		}
		ref, refOK := m.Lagged(tr.Number, s.TrialLookback)
		prev, prevOK := m.Lagged(tr.Number, 1)

		trialCount.Values[i] = float64(cur.Image.Count) / trialExpected
		trialConf90.Values[i] = cur.Image.Conf90
		trialConf75.Values[i] = cur.Image.Conf75

		if refOK {
			fixCount.Values[i] = float64(ref.Fixation.Count) / fixExpected
			fixConf90.Values[i] = ref.Fixation.Conf90
			fixConf75.Values[i] = ref.Fixation.Conf75
			toFix.Values[i] = g.Angle(ref.Fixation.MedianX, ref.Fixation.MedianY, cur.Image.MedianX, cur.Image.MedianY, false)
		} else {
			fixCount.Values[i], fixConf90.Values[i], fixConf75.Values[i], toFix.Values[i] = nan, nan, nan, nan
		}
		if prevOK {
			toPrev.Values[i] = g.Angle(prev.Image.MedianX, prev.Image.MedianY, cur.Image.MedianX, cur.Image.MedianY, false)
		} else {
			toPrev.Values[i] = nan
		}

		for k := range ComplianceThresholds {
			compliance[k].Values[i] = cur.Image.Compliance[k]
			trialD2M[k].Values[i] = cur.Image.Dist2Med[k]
			fixD2M[k].Values[i] = cur.Fixation.Dist2Med[k]
		}
	}

	out := []Column{
		strategy, conf, fixCount, trialCount,
		fixConf90, fixConf75, trialConf90, trialConf75,
		toFix, toPrev,
	}
	out = append(out, compliance[:]...)
	out = append(out, trialD2M[:]...)
	out = append(out, fixD2M[:]...)
	return out
}

func emptyTrialMetrics() TrialMetrics {
	var tm TrialMetrics
	for _, b := range []*BucketMetrics{&tm.Image, &tm.Fixation} {
		b.Conf90, b.Conf75 = math.NaN(), math.NaN()
		b.MedianX, b.MedianY = math.NaN(), math.NaN()
		for k := range ComplianceThresholds {
			b.Compliance[k] = math.NaN()
			b.Dist2Med[k] = math.NaN()
		}
	}
	return tm
}
