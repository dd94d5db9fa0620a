package audio

// Concat joins 16-bit PCM buffers that already share a common format,
// inserting gapMs of silence between consecutive turns for pacing. Used by
// the multi-speaker path to stitch per-turn synthesis output into one asset
// (§4.4.2).
func Concat(buffers [][]byte, format Format, gapMs int) []byte {
	if len(buffers) == 0 {
		return nil
	}
	gapSamples := format.SampleRate * gapMs / 1000
	gapBytes := make([]byte, gapSamples*2*format.Channels)

	total := 0
	for _, b := range buffers {
		total += len(b)
	}
	total += len(gapBytes) * (len(buffers) - 1)

	out := make([]byte, 0, total)
	for i, b := range buffers {
		if i > 0 {
			out = append(out, gapBytes...)
		}
		out = append(out, b...)
	}
	return out
}

// DurationSec returns the playback duration of a PCM buffer in format.
func DurationSec(pcm []byte, format Format) float64 {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return 0
	}
	frameBytes := 2 * format.Channels
	frames := len(pcm) / frameBytes
	return float64(frames) / float64(format.SampleRate)
}
