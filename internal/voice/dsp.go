package voice

// TargetRate is the sample rate speech recognition expects.
const TargetRate = 16000

// Downmix averages interleaved frames of channels samples into mono.
// A trailing partial frame is dropped.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	mono := make([]float32, 0, len(samples)/channels)
	for i := 0; i+channels <= len(samples); i += channels {
		var sum float32
		for _, s := range samples[i : i+channels] {
			sum += s
		}
		mono = append(mono, sum/float32(channels))
	}
	return mono
}

// Resample converts mono samples from rate from to rate to by stepping
// through the input at the rate ratio and taking the nearest earlier
// sample. It does not low-pass filter, so downsampling aliases.
func Resample(samples []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}
	ratio := float64(from) / float64(to)
	out := make([]float32, 0, int(float64(len(samples))/ratio)+1)
	for pos := 0.0; pos < float64(len(samples)); pos += ratio {
		out = append(out, samples[int(pos)])
	}
	return out
}
