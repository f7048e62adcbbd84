// Package audio connects flowgraphs to sound files and sound hardware: WAV
// files through go-audio, capture through PortAudio and playback through oto.
package audio

import (
	"encoding/binary"
	"io"
	"math"
)

// toPCM16 scales a float sample in [-1, 1] to a signed 16-bit value,
// saturating outside that range. clipped reports saturation.
func toPCM16(x float64) (v int16, clipped bool) {
	s := math.Round(x * 32767)
	switch {
	case s > 32767:
		return 32767, true
	case s < -32768:
		return -32768, true
	case math.IsNaN(s):
		return 0, true
	}
	return int16(s), false
}

// writePCM16 encodes samples·gain as little-endian int16 and writes them. It
// returns the number of samples that had to be clipped.
func writePCM16(w io.Writer, samples []float32, gain float64, scratch []byte) (clipped int, err error) {
	buf := scratch[:0]
	for _, x := range samples {
		v, c := toPCM16(float64(x) * gain)
		if c {
			clipped++
		}
		buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
	}
	_, err = w.Write(buf)
	return clipped, err
}
