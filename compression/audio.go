package compression

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hmic-media/hmic"
)

// DefaultEpsilon is the sample equality tolerance the audio quantizer uses
// when the caller doesn't override it.
const DefaultEpsilon = 1e-5

// minAudioRun is the shortest within-tolerance run worth collapsing into a
// range token. Below this a range token is no smaller than the literals.
const minAudioRun = 5

// QuantizeChannel encodes one channel's samples as a comma-separated token
// stream. A run of at least five consecutive samples within epsilon of the
// run's first sample collapses to a "start-end=value" token; shorter runs
// are emitted as literal samples.
//
// This is a lossy quantization step, not a compressor: every sample inside
// a collapsed run snaps to the run's first value, so decoded output is only
// guaranteed to be within epsilon of the input.
func QuantizeChannel(samples []float32, epsilon float64) string {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}

	var b strings.Builder
	i := 0
	for i < len(samples) {
		value := samples[i]
		runLength := 1
		for i+runLength < len(samples) &&
			math.Abs(float64(samples[i+runLength])-float64(value)) < epsilon {
			runLength++
		}

		if b.Len() > 0 {
			b.WriteByte(',')
		}
		if runLength >= minAudioRun {
			fmt.Fprintf(&b, "%d-%d=%s", i, i+runLength-1, formatSample(value))
		} else {
			for j := 0; j < runLength; j++ {
				if j > 0 {
					b.WriteByte(',')
				}
				b.WriteString(formatSample(samples[i+j]))
			}
		}
		i += runLength
	}

	return b.String()
}

// ParseChannel decodes a token stream produced by QuantizeChannel, appending
// onto dst (which may be nil). Range tokens may leave gaps when the stream
// was produced out of order; gaps are filled with silence, matching the
// writer's dense output. Any malformed token is a hard reject.
func ParseChannel(tokens string, dst []float32) ([]float32, error) {
	if tokens == "" {
		return dst, nil
	}

	for _, token := range strings.Split(tokens, ",") {
		eq := strings.IndexByte(token, '=')
		if eq >= 0 && strings.IndexByte(token[:eq], '-') >= 0 {
			var err error
			dst, err = parseRangeToken(token, eq, dst)
			if err != nil {
				return nil, err
			}
			continue
		}

		value, err := strconv.ParseFloat(token, 32)
		if err != nil {
			return nil, hmic.ErrMalformedToken.WithMessage(
				fmt.Sprintf("bad sample %q", token))
		}
		dst = append(dst, float32(value))
	}

	return dst, nil
}

func parseRangeToken(token string, eq int, dst []float32) ([]float32, error) {
	bounds := token[:eq]
	dash := strings.IndexByte(bounds, '-')

	start, err := strconv.Atoi(bounds[:dash])
	if err != nil {
		return nil, hmic.ErrMalformedToken.WithMessage(
			fmt.Sprintf("bad sample range %q", token))
	}
	end, err := strconv.Atoi(bounds[dash+1:])
	if err != nil || end < start || start < 0 {
		return nil, hmic.ErrMalformedToken.WithMessage(
			fmt.Sprintf("bad sample range %q", token))
	}
	value, err := strconv.ParseFloat(token[eq+1:], 32)
	if err != nil {
		return nil, hmic.ErrMalformedToken.WithMessage(
			fmt.Sprintf("bad sample value %q", token))
	}

	for len(dst) <= end {
		dst = append(dst, 0)
	}
	for i := start; i <= end; i++ {
		dst[i] = float32(value)
	}
	return dst, nil
}

// formatSample renders a sample with the shortest representation that
// round-trips exactly through ParseFloat at 32-bit precision.
func formatSample(value float32) string {
	return strconv.FormatFloat(float64(value), 'g', -1, 32)
}
