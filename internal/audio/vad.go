package audio

// Interval is one contiguous region classified as speech, in seconds.
type Interval struct {
	Start float64
	End   float64
}

// Detector classifies regions of a float signal as speech using a plain
// energy threshold. No model, no state across calls.
//
// The default gap semantics replicate the heuristic this service has always
// shipped with: an interval closing at a speech->silence transition is kept
// only if the elapsed samples since the interval opened exceed
// MinSilence*SampleRate. That measures the length of the speech run, not the
// trailing silence. StrictSilence switches to the corrected reading, where an
// interval closes only once the silence run itself has lasted MinSilence.
type Detector struct {
	Threshold     float32 // energy (absolute amplitude) above which a sample counts as speech
	MinSilence    float64 // seconds
	SampleRate    int
	StrictSilence bool
}

// Detect scans samples left to right and returns the speech intervals in
// order. Empty input and all-silent input return nil. Intervals never
// overlap and their bounds are non-decreasing.
func (d Detector) Detect(samples []float32) []Interval {
	if len(samples) == 0 {
		return nil
	}
	if d.StrictSilence {
		return d.detectStrict(samples)
	}

	minSamples := int(d.MinSilence * float64(d.SampleRate))
	rate := float64(d.SampleRate)

	var intervals []Interval
	open := -1
	for i, s := range samples {
		speech := abs(s) > d.Threshold
		switch {
		case speech && open < 0:
			open = i
		case !speech && open >= 0:
			if i-open > minSamples {
				intervals = append(intervals, Interval{
					Start: float64(open) / rate,
					End:   float64(i) / rate,
				})
			}
			open = -1
		}
	}
	if open >= 0 {
		intervals = append(intervals, Interval{
			Start: float64(open) / rate,
			End:   float64(len(samples)) / rate,
		})
	}
	return intervals
}

// detectStrict closes an interval at the point silence began, once the
// silence run has lasted MinSilence. Short dropouts inside an utterance are
// bridged instead of splitting or discarding it.
func (d Detector) detectStrict(samples []float32) []Interval {
	minSamples := int(d.MinSilence * float64(d.SampleRate))
	rate := float64(d.SampleRate)

	var intervals []Interval
	open := -1
	silenceFrom := -1
	for i, s := range samples {
		speech := abs(s) > d.Threshold
		switch {
		case speech && open < 0:
			open = i
			silenceFrom = -1
		case speech:
			silenceFrom = -1
		case open >= 0:
			if silenceFrom < 0 {
				silenceFrom = i
			}
			if i-silenceFrom >= minSamples {
				intervals = append(intervals, Interval{
					Start: float64(open) / rate,
					End:   float64(silenceFrom) / rate,
				})
				open = -1
				silenceFrom = -1
			}
		}
	}
	if open >= 0 {
		end := len(samples)
		if silenceFrom >= 0 {
			end = silenceFrom
		}
		intervals = append(intervals, Interval{
			Start: float64(open) / rate,
			End:   float64(end) / rate,
		})
	}
	return intervals
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
