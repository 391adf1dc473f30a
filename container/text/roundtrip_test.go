package text_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmic-media/hmic"
	"github.com/hmic-media/hmic/compression"
	"github.com/hmic-media/hmic/container/text"
)

var (
	red  = hmic.Pixel{R: 255, A: 255}
	blue = hmic.Pixel{B: 255, A: 255}
)

func solidFrame(color hmic.Pixel, width, height int) []hmic.Pixel {
	pixels := make([]hmic.Pixel, width*height)
	for i := range pixels {
		pixels[i] = color
	}
	return pixels
}

func testVideo(t *testing.T) (hmic.VideoInfo, [][]hmic.Pixel, []byte) {
	t.Helper()

	info := hmic.VideoInfo{Width: 3, Height: 2, FPS: 30, TotalFrames: 3, Loop: true}
	frames := [][]hmic.Pixel{
		solidFrame(red, 3, 2),
		solidFrame(red, 3, 2),
		solidFrame(blue, 3, 2),
	}
	commands := compression.ExtractFrames(frames, info.Width, info.Height)
	encoded := text.EncodeVisual(info, compression.CompressTemporal(commands))
	return info, frames, encoded
}

func testAudio() *hmic.AudioBuffer {
	return &hmic.AudioBuffer{
		AudioInfo: hmic.AudioInfo{SampleRate: 8000, Channels: 2, TotalSamples: 10},
		ChannelData: [][]float32{
			{0, 0, 0, 0, 0, 0.25, 0.5, 0.25, 0, 0},
			{0.125, 0.125, 0.125, 0.125, 0.125, 0.125, 0, 0, 0, 0.75},
		},
	}
}

func TestVisualRoundTrip(t *testing.T) {
	info, frames, encoded := testVideo(t)

	media, err := text.Decode(encoded)
	require.NoError(t, err)
	require.NotNil(t, media.Video)
	assert.Nil(t, media.Audio)
	assert.Equal(t, info, media.Video.Info)

	require.Len(t, media.Video.Frames, info.TotalFrames)
	for i, commands := range media.Video.Frames {
		rendered, err := compression.RenderFrame(commands, info.Width, info.Height)
		require.NoError(t, err, "frame %d", i)
		assert.Equal(t, frames[i], rendered, "frame %d", i)
	}
}

func TestVisualEncoding__WireFormat(t *testing.T) {
	_, _, encoded := testVideo(t)
	wire := string(encoded)

	// Frames and coordinates are 1-based on the wire: the run shared between
	// internal frames 0 and 1 must appear as a block over frames 1-2, with
	// the originating frame's residual copy alongside it.
	assert.Contains(t, wire, "DISPLAY=3X2\n")
	assert.Contains(t, wire, "LOOP=Y\n")
	assert.Contains(t, wire, "F2{\n")
	assert.Contains(t, wire, "F1{\n")
	assert.Contains(t, wire, "rgba(255,0,0,255){\n")
	assert.Contains(t, wire, "PL=1x1-3x1\n")
	assert.NotContains(t, wire, "P=0x")
}

// Three identical solid frames: the shared block covers wire frames 2-3 and
// the originating frame 1 repeats the commands in its own block.
func TestVisualEncoding__SharedBlockExcludesOrigin(t *testing.T) {
	info := hmic.VideoInfo{Width: 2, Height: 2, FPS: 1, TotalFrames: 3}
	pixels := solidFrame(red, 2, 2)
	commands := compression.ExtractFrames(
		[][]hmic.Pixel{pixels, pixels, pixels}, 2, 2)

	encoded := text.EncodeVisual(info, compression.CompressTemporal(commands))
	wire := string(encoded)

	assert.Contains(t, wire, "F2-3{\n")
	assert.Contains(t, wire, "F1{\n")
	assert.NotContains(t, wire, "F1-3{")
	assert.Contains(t, wire, "PL=1x1-2x1\n")
	assert.Contains(t, wire, "PL=1x2-2x2\n")
}

func TestAudioRoundTrip(t *testing.T) {
	audio := testAudio()
	encoded := text.EncodeAudio(audio, compression.DefaultEpsilon)

	media, err := text.Decode(encoded)
	require.NoError(t, err)
	assert.Nil(t, media.Video)
	require.NotNil(t, media.Audio)

	assert.Equal(t, audio.AudioInfo, media.Audio.AudioInfo)
	require.Len(t, media.Audio.ChannelData, audio.Channels)
	for ch := range audio.ChannelData {
		require.Len(t, media.Audio.ChannelData[ch], int(audio.TotalSamples))
		for i, want := range audio.ChannelData[ch] {
			assert.InDelta(
				t, want, media.Audio.ChannelData[ch][i],
				compression.DefaultEpsilon, "channel %d sample %d", ch, i)
		}
	}
}

func TestCombinedRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "compressed"
		}
		t.Run(
			name,
			func(t *testing.T) {
				info, _, video := testVideo(t)
				audio := testAudio()
				audioText := text.EncodeAudio(audio, compression.DefaultEpsilon)

				encoded := text.EncodeCombined(video, audioText, compress)
				media, err := text.Decode(encoded)
				require.NoError(t, err)

				require.NotNil(t, media.Video)
				require.NotNil(t, media.Audio)
				assert.Equal(t, info, media.Video.Info)
				assert.Equal(t, audio.AudioInfo, media.Audio.AudioInfo)
			},
		)
	}
}

// A channel's token stream is one line that grows with the sample count;
// decoding must not cap the line length. Sixteenths never collapse into
// range tokens and round-trip exactly through the formatter, so every
// sample comes back bit-identical.
func TestAudioRoundTrip__VeryLongChannelLine(t *testing.T) {
	const totalSamples = 3_000_000
	audio := &hmic.AudioBuffer{
		AudioInfo: hmic.AudioInfo{
			SampleRate:   44100,
			Channels:     1,
			TotalSamples: totalSamples,
		},
		ChannelData: [][]float32{make([]float32, totalSamples)},
	}
	for i := range audio.ChannelData[0] {
		audio.ChannelData[0][i] = float32(i%17) / 16
	}

	encoded := text.EncodeAudio(audio, compression.DefaultEpsilon)
	require.Greater(t, len(encoded), 16*1024*1024, "single line past any scanner cap")

	media, err := text.Decode(encoded)
	require.NoError(t, err)
	require.NotNil(t, media.Audio)
	decoded := media.Audio.ChannelData[0]
	require.Len(t, decoded, totalSamples)
	for _, i := range []int{0, 1, 16, 17, totalSamples / 2, totalSamples - 1} {
		assert.Equal(t, audio.ChannelData[0][i], decoded[i], "sample %d", i)
	}
}

func TestCombinedRoundTrip__AudioOnly(t *testing.T) {
	audio := testAudio()
	audioText := text.EncodeAudio(audio, compression.DefaultEpsilon)

	encoded := text.EncodeCombined(nil, audioText, false)
	assert.Contains(t, string(encoded), "HAS_VIDEO=N\n")
	assert.NotContains(t, string(encoded), "VIDEO_DATA{")

	media, err := text.Decode(encoded)
	require.NoError(t, err)
	assert.Nil(t, media.Video)
	require.NotNil(t, media.Audio)
	assert.Equal(t, audio.AudioInfo, media.Audio.AudioInfo)
}

func TestCombinedRoundTrip__VideoOnly(t *testing.T) {
	_, _, video := testVideo(t)

	media, err := text.Decode(text.EncodeCombined(video, nil, false))
	require.NoError(t, err)
	require.NotNil(t, media.Video)
	assert.Nil(t, media.Audio)
}

type RejectTestCase struct {
	Input string
	Name  string
}

func TestDecode__MalformedInputs(t *testing.T) {
	tests := []RejectTestCase{
		{"", "empty"},
		{"F1{\n}\n", "frame block before info"},
		{"info{\nDISPLAY=abcX2\nFPS=1\nF=1\nLOOP=N\n}\n", "bad display width"},
		{"info{\nDISPLAY=2X2\nFPS=0\nF=1\nLOOP=N\n}\n", "zero fps"},
		{"info{\nDISPLAY=2X2\nFPS=1\nF=1\nLOOP=maybe\n}\n", "bad loop flag"},
		{"info{\nDISPLAY=2X2\nFPS=1\nLOOP=N\n}\n", "missing frame count"},
		{"info{\nWIDTH=2\n}\n", "unknown info key"},
		{
			"info{\nDISPLAY=2X2\nFPS=1\nF=1\nLOOP=N\n}\nF5{\nrgba(0,0,0,255){\nP=1x1\n}\n}\n",
			"frame number out of range",
		},
		{
			"info{\nDISPLAY=2X2\nFPS=1\nF=1\nLOOP=N\n}\nF1{\nP=1x1\n}\n",
			"command outside color block",
		},
		{
			"info{\nDISPLAY=2X2\nFPS=1\nF=1\nLOOP=N\n}\nF1{\nrgba(0,0,300,255){\nP=1x1\n}\n}\n",
			"color component out of range",
		},
		{
			"info{\nDISPLAY=2X2\nFPS=1\nF=1\nLOOP=N\n}\nF1{\nrgba(0,0,0,255){\nPL=1x1-2x2\n}\n}\n",
			"non-horizontal line",
		},
		{
			"info{\nDISPLAY=2X2\nFPS=1\nF=1\nLOOP=N\n}\nF1{\nrgba(0,0,0,255){\nP=0x1\n}\n}\n",
			"zero coordinate",
		},
		{"info{\nDISPLAY=2X2\nFPS=1\n", "input ends inside info block"},
		{
			"info{\nDISPLAY=2X2\nFPS=1\nF=1\nLOOP=N\n}\nF1{\nrgba(0,0,0,255){\nP=1x1\n",
			"input ends inside color block",
		},
		{
			"info{\nDISPLAY=2X2\nFPS=1\nF=1\nLOOP=N\n}\nF1{\n",
			"input ends inside frame block",
		},
		{"info{\nhz=8000\nc=0\nsam=4\n}\n", "zero channels"},
		{"info{\nhz=8000\nc=1\nsam=4\n}\nC2{\n0,0,0,0\n}\n", "channel out of range"},
		{"info{\nhz=8000\nc=1\nsam=4\n}\nC1{\n0,x,0,0\n}\n", "bad sample literal"},
		{"info{\nhz=8000\nc=1\nsam=4\n}\nC1{\n0,0\n}\n", "channel shorter than declared"},
		{"info{\nhz=8000\nc=1\nsam=2\n}\nC1{\n0,0\n", "input ends inside channel block"},
	}

	for _, test := range tests {
		t.Run(
			test.Name,
			func(t *testing.T) {
				_, err := text.Decode([]byte(test.Input))
				assert.ErrorIs(t, err, hmic.ErrMalformedContainer)
			},
		)
	}
}
