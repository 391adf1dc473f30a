package compression_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmic-media/hmic"
	"github.com/hmic-media/hmic/compression"
)

type QuantizeTestCase struct {
	Samples  []float32
	Expected string
	Name     string
}

func TestQuantizeChannel__Basic(t *testing.T) {
	tests := []QuantizeTestCase{
		{nil, "", "empty"},
		{[]float32{0.25}, "0.25", "single literal"},
		{[]float32{0.5, 0.5, 0.5, 0.5, 0.5, 0.9}, "0-4=0.5,0.9", "run then literal"},
		{[]float32{0.5, 0.5, 0.5, 0.5}, "0.5,0.5,0.5,0.5", "four below threshold"},
		{[]float32{0, 0, 0, 0, 0, 0, 0}, "0-6=0", "silence"},
		{
			[]float32{0.1, 0.2, 0.3, 0.3, 0.3, 0.3, 0.3, 0.4},
			"0.1,0.2,2-6=0.3,0.4",
			"run in the middle",
		},
	}

	for _, test := range tests {
		t.Run(
			test.Name,
			func(t *testing.T) {
				result := compression.QuantizeChannel(test.Samples, compression.DefaultEpsilon)
				assert.Equal(t, test.Expected, result)
			},
		)
	}
}

// Samples within epsilon of the run head collapse onto it even when they are
// not bit-identical; the decoded channel must stay within epsilon of the
// input everywhere.
func TestQuantizeChannel__LossyWithinEpsilon(t *testing.T) {
	const epsilon = 0.01
	samples := []float32{0.5, 0.501, 0.499, 0.502, 0.5, 0.8}

	tokens := compression.QuantizeChannel(samples, epsilon)
	assert.Equal(t, "0-4=0.5,0.8", tokens)

	decoded, err := compression.ParseChannel(tokens, nil)
	require.NoError(t, err)
	require.Len(t, decoded, len(samples))
	for i := range samples {
		assert.InDelta(t, samples[i], decoded[i], epsilon, "sample %d", i)
	}
}

func TestParseChannel__RoundTrip(t *testing.T) {
	samples := make([]float32, 300)
	for i := 40; i < 200; i++ {
		samples[i] = float32(math.Sin(float64(i) / 20))
	}

	tokens := compression.QuantizeChannel(samples, compression.DefaultEpsilon)
	decoded, err := compression.ParseChannel(tokens, nil)
	require.NoError(t, err)
	require.Len(t, decoded, len(samples))
	for i := range samples {
		assert.InDelta(t, samples[i], decoded[i], compression.DefaultEpsilon, "sample %d", i)
	}
}

// A negative literal contains a dash but no equals sign; a range token has
// both. The parser must not confuse the two.
func TestParseChannel__NegativeLiterals(t *testing.T) {
	decoded, err := compression.ParseChannel("-0.5,-1,3-7=-0.25", nil)
	require.NoError(t, err)
	assert.Equal(
		t,
		[]float32{-0.5, -1, 0, -0.25, -0.25, -0.25, -0.25, -0.25},
		decoded,
		"gap before the range token is silence")
}

func TestParseChannel__Malformed(t *testing.T) {
	tokens := []string{"abc", "1-x=0.5", "x-4=0.5", "7-3=0.5", "2-4=oops", "0.5,,0.5"}
	for _, token := range tokens {
		t.Run(
			token,
			func(t *testing.T) {
				_, err := compression.ParseChannel(token, nil)
				assert.ErrorIs(t, err, hmic.ErrMalformedToken)
			},
		)
	}
}
