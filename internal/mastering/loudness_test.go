package mastering

import (
	"encoding/binary"
	"math"
	"testing"
)

func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestMeasureRMSDBFS_FullScale(t *testing.T) {
	// A constant full-scale square wave measures at 0 dBFS.
	pcm := samplesToBytes([]int16{32767, -32768, 32767, -32768})
	got := measureRMSDBFS(pcm)
	if got < -0.5 || got > 0.5 {
		t.Errorf("full-scale square wave: got %.2f dBFS, want ~0", got)
	}
}

func TestMeasureRMSDBFS_Silence(t *testing.T) {
	pcm := samplesToBytes([]int16{0, 0, 0, 0})
	if got := measureRMSDBFS(pcm); got != dBFSFloor {
		t.Errorf("silence: got %.2f dBFS, want %.2f", got, dBFSFloor)
	}
}

func TestMeasurePeakDBFS(t *testing.T) {
	pcm := samplesToBytes([]int16{100, -16384, 200})
	got := measurePeakDBFS(pcm)
	want := 20 * math.Log10(16384.0/32768.0)
	if math.Abs(got-want) > 0.01 {
		t.Errorf("got %.4f dBFS, want %.4f", got, want)
	}
}

func TestApplyGainDB_Unity(t *testing.T) {
	pcm := samplesToBytes([]int16{1000, -2000, 3000})
	got := applyGainDB(pcm, 0)
	if string(got) != string(pcm) {
		t.Errorf("zero gain should return input unchanged")
	}
}

func TestApplyGainDB_Clamps(t *testing.T) {
	pcm := samplesToBytes([]int16{30000})
	out := applyGainDB(pcm, 12) // +12dB should clip well above int16 range
	got := int16(binary.LittleEndian.Uint16(out))
	if got != 32767 {
		t.Errorf("expected clamp to 32767, got %d", got)
	}
}

func TestLimitPeakDB_NoOpBelowLimit(t *testing.T) {
	pcm := samplesToBytes([]int16{1000, -1000})
	out := limitPeakDB(pcm, -1.0)
	if string(out) != string(pcm) {
		t.Errorf("peak already under limit should be unchanged")
	}
}

func TestLimitPeakDB_ReducesAboveLimit(t *testing.T) {
	pcm := samplesToBytes([]int16{32767, -32768})
	out := limitPeakDB(pcm, -3.0)
	gotPeak := measurePeakDBFS(out)
	if gotPeak > -2.9 {
		t.Errorf("expected peak at or below -3 dBFS after limiting, got %.2f", gotPeak)
	}
}
