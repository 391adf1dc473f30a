package fast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmic-media/hmic"
	"github.com/hmic-media/hmic/container/fast"
)

func testHeader() fast.Header {
	return fast.Header{
		Version:          fast.FormatVersion,
		Width:            320,
		Height:           200,
		FPS:              24,
		TotalFrames:      100,
		HasAudio:         true,
		Compressed:       true,
		AudioSampleRate:  44100,
		AudioChannels:    2,
		AudioSamples:     441000,
		FrameIndexOffset: fast.HeaderSize,
		AudioDataOffset:  123456789,
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	header := testHeader()

	raw, err := header.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, raw, fast.HeaderSize, "header wire size is fixed")
	assert.Equal(t, []byte(fast.Magic), raw[:8])

	decoded, err := fast.UnmarshalHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, header, decoded)
}

func TestHeaderRoundTrip__NoAudio(t *testing.T) {
	header := fast.Header{
		Version:          fast.FormatVersion,
		Width:            8,
		Height:           8,
		FPS:              1,
		TotalFrames:      1,
		FrameIndexOffset: fast.HeaderSize,
	}

	raw, err := header.MarshalBinary()
	require.NoError(t, err)
	decoded, err := fast.UnmarshalHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, header, decoded)
	assert.Zero(t, decoded.AudioBlobSize())
}

func TestUnmarshalHeader__BadMagic(t *testing.T) {
	header := testHeader()
	raw, err := header.MarshalBinary()
	require.NoError(t, err)
	copy(raw, "NOTHMIC!")

	_, err = fast.UnmarshalHeader(raw)
	assert.ErrorIs(t, err, hmic.ErrBadMagic)
}

func TestUnmarshalHeader__UnsupportedVersion(t *testing.T) {
	header := testHeader()
	header.Version = 2
	raw, err := header.MarshalBinary()
	require.NoError(t, err)

	_, err = fast.UnmarshalHeader(raw)
	assert.ErrorIs(t, err, hmic.ErrUnsupportedVersion)
}

func TestUnmarshalHeader__Truncated(t *testing.T) {
	header := testHeader()
	raw, err := header.MarshalBinary()
	require.NoError(t, err)

	_, err = fast.UnmarshalHeader(raw[:fast.HeaderSize-1])
	assert.ErrorIs(t, err, hmic.ErrTruncatedContainer)
}

func TestHeaderDerivedSizes(t *testing.T) {
	header := testHeader()
	assert.Equal(t, 320*200*4, header.FrameSize())
	assert.Equal(t, int64(441000*2*4), header.AudioBlobSize())

	info := header.VideoInfo()
	assert.Equal(t, hmic.VideoInfo{Width: 320, Height: 200, FPS: 24, TotalFrames: 100}, info)

	audio := header.AudioInfo()
	assert.Equal(
		t,
		hmic.AudioInfo{SampleRate: 44100, Channels: 2, TotalSamples: 441000},
		audio)
}
