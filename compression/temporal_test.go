package compression_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmic-media/hmic"
	"github.com/hmic-media/hmic/compression"
)

// Three identical 2x2 solid frames: the full-frame runs of frame 0 extend
// through frames 1 and 2, so one shared block covers frames 1-2 and frame 0
// keeps its own copy in the residual set. Frames 1 and 2 end up empty.
func TestCompressTemporal__IdenticalFrames(t *testing.T) {
	pixels := frame(
		[]hmic.Pixel{red, red},
		[]hmic.Pixel{red, red},
	)
	commands := compression.ExtractFrames(
		[][]hmic.Pixel{pixels, pixels, pixels}, 2, 2)

	result := compression.CompressTemporal(commands)

	require.Len(t, result.Shared, 1)
	assert.Equal(t, []int{1, 2}, result.Shared[0].Frames)
	assert.Equal(t, commands[0][red], result.Shared[0].Entries[red])

	require.Len(t, result.Residual, 3)
	assert.Equal(t, commands[0], result.Residual[0], "origin keeps its copy")
	assert.Zero(t, result.Residual[1].TotalCommands())
	assert.Zero(t, result.Residual[2].TotalCommands())
}

func TestCompressTemporal__NoSharingBetweenDistinctFrames(t *testing.T) {
	frames := []hmic.FrameCommands{
		{red: {{Kind: hmic.Point, StartX: 0, EndX: 0, Y: 0}}},
		{green: {{Kind: hmic.Point, StartX: 0, EndX: 0, Y: 0}}},
		{blue: {{Kind: hmic.Point, StartX: 0, EndX: 0, Y: 0}}},
	}

	result := compression.CompressTemporal(frames)
	assert.Empty(t, result.Shared)
	assert.Equal(t, frames, result.Residual)
}

// A run interrupted in the middle must not bridge the gap: red is present in
// frames 0, 1 and 3 but not 2, so the shared block only covers frame 1 and a
// fresh residual copy remains in frame 3.
func TestCompressTemporal__GapBreaksRun(t *testing.T) {
	redDot := hmic.FrameCommands{
		red: {{Kind: hmic.Point, StartX: 0, EndX: 0, Y: 0}},
	}
	greenDot := hmic.FrameCommands{
		green: {{Kind: hmic.Point, StartX: 0, EndX: 0, Y: 0}},
	}
	frames := []hmic.FrameCommands{redDot, redDot, greenDot, redDot}

	result := compression.CompressTemporal(frames)

	require.Len(t, result.Shared, 1)
	assert.Equal(t, []int{1}, result.Shared[0].Frames)
	assert.Equal(t, redDot, result.Residual[0])
	assert.Zero(t, result.Residual[1].TotalCommands())
	assert.Equal(t, greenDot, result.Residual[2])
	assert.Equal(t, redDot, result.Residual[3], "frame after the gap starts over")
}

// Expanding every shared block back into its member frames and adding the
// residuals must reproduce each frame's original command multiset.
func TestCompressTemporal__LosslessReconstruction(t *testing.T) {
	base := frame(
		[]hmic.Pixel{red, red, green, blue},
		[]hmic.Pixel{blue, blue, blue, red},
		[]hmic.Pixel{green, red, red, red},
	)
	variant := make([]hmic.Pixel, len(base))
	copy(variant, base)
	variant[5] = green

	sources := [][]hmic.Pixel{base, base, variant, base, variant}
	commands := compression.ExtractFrames(sources, 4, 3)
	result := compression.CompressTemporal(commands)

	reconstructed := make([]hmic.FrameCommands, len(sources))
	for i := range reconstructed {
		reconstructed[i] = make(hmic.FrameCommands)
		reconstructed[i].Merge(result.Residual[i])
	}
	for _, block := range result.Shared {
		for _, f := range block.Frames {
			reconstructed[f].Merge(hmic.FrameCommands(block.Entries))
		}
	}

	for i := range sources {
		rendered, err := compression.RenderFrame(reconstructed[i], 4, 3)
		require.NoError(t, err, "frame %d", i)
		assert.Equal(t, sources[i], rendered, "frame %d", i)

		assert.Equal(
			t,
			commands[i].TotalCommands(),
			reconstructed[i].TotalCommands(),
			"frame %d: every occurrence claimed at most once", i)
	}
}
