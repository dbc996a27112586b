// Package drift implements drift correction of gaze recordings acquired
// during fMRI runs.
//
// A run goes through a fixed sequence of stages:
//
//   - ReconcileOnset places the first scanner trigger (TTL 0) on the
//     eye-tracker clock;
//   - Normalize re-anchors samples to that onset and splits them into the
//     "all" and confidence-filtered "clean" streams;
//   - ExtractReferences computes one median fixation position per trial;
//   - Correct subtracts the applicable reference from every sample;
//   - AggregateMetrics summarises per-trial compliance and confidence.
//
// Process chains the stages. All stages are pure functions over in-memory
// slices; the streams they walk must be sorted by time, which is checked once
// on entry to each merge pass.
package drift
