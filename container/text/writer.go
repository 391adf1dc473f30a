// Package text implements the human-readable HMIC container family: the
// visual format (block-structured run commands with temporal sharing), the
// audio format (run-length sample tokens), and the combined HMICAV container
// wrapping both, optionally zstd compressed as a whole.
package text

import (
	"fmt"
	"strings"

	"github.com/hmic-media/hmic"
	"github.com/hmic-media/hmic/compression"
)

// EncodeVisual serializes video metadata and a temporal compression result
// into the visual text format. Shared blocks come first, then the non-empty
// per-frame residual blocks. Frame numbers and coordinates are 1-based on
// the wire.
func EncodeVisual(info hmic.VideoInfo, result compression.Result) []byte {
	var b strings.Builder

	loop := "N"
	if info.Loop {
		loop = "Y"
	}
	fmt.Fprintf(&b, "info{\nDISPLAY=%dX%d\nFPS=%d\nF=%d\nLOOP=%s\n}\n\n",
		info.Width, info.Height, info.FPS, info.TotalFrames, loop)

	for _, block := range result.Shared {
		wire := make([]int, len(block.Frames))
		for i, frame := range block.Frames {
			wire[i] = frame + 1
		}
		fmt.Fprintf(&b, "F%s{\n", compression.CollapseFrameRange(wire))
		writeColorBlocks(&b, block.Entries)
		b.WriteString("}\n")
	}

	for frame, commands := range result.Residual {
		if commands.TotalCommands() == 0 {
			continue
		}
		fmt.Fprintf(&b, "F%d{\n", frame+1)
		writeColorBlocks(&b, commands)
		b.WriteString("}\n")
	}

	return []byte(b.String())
}

func writeColorBlocks(b *strings.Builder, entries map[hmic.Pixel][]hmic.Command) {
	for _, color := range hmic.FrameCommands(entries).Colors() {
		fmt.Fprintf(b, "  rgba(%d,%d,%d,%d){\n", color.R, color.G, color.B, color.A)
		for _, command := range entries[color] {
			fmt.Fprintf(b, "    %s\n", formatCommand(command))
		}
		b.WriteString("  }\n")
	}
}

// formatCommand renders a command as its wire token, shifting the 0-based
// internal coordinates to the format's 1-based ones.
func formatCommand(c hmic.Command) string {
	if c.Kind == hmic.Point {
		return fmt.Sprintf("P=%dx%d", c.StartX+1, c.Y+1)
	}
	return fmt.Sprintf("PL=%dx%d-%dx%d", c.StartX+1, c.Y+1, c.EndX+1, c.Y+1)
}

// EncodeAudio serializes decoded audio into the audio text format, running
// each channel through the run-length quantizer with the given tolerance
// (epsilon <= 0 selects the default).
func EncodeAudio(audio *hmic.AudioBuffer, epsilon float64) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "info{\nhz=%d\nc=%d\nsam=%d\n}\n\n",
		audio.SampleRate, audio.Channels, audio.TotalSamples)

	for ch := 0; ch < audio.Channels; ch++ {
		fmt.Fprintf(&b, "C%d{\n%s\n}\n", ch+1,
			compression.QuantizeChannel(audio.ChannelData[ch], epsilon))
		if ch < audio.Channels-1 {
			b.WriteByte('\n')
		}
	}

	return []byte(b.String())
}

// EncodeCombined wraps an encoded visual stream and an optional encoded
// audio stream in the HMICAV container. The header records presence flags
// and the byte size of each embedded stream. When compress is set the whole
// container is zstd compressed.
func EncodeCombined(video, audio []byte, compress bool) []byte {
	var b strings.Builder

	flag := func(present bool) string {
		if present {
			return "Y"
		}
		return "N"
	}
	b.WriteString("HMICAV_HEADER{\nVERSION=1.0\n")
	fmt.Fprintf(&b, "HAS_VIDEO=%s\nHAS_AUDIO=%s\n", flag(len(video) > 0), flag(len(audio) > 0))
	if len(video) > 0 {
		fmt.Fprintf(&b, "VIDEO_SIZE=%d\n", len(video))
	}
	if len(audio) > 0 {
		fmt.Fprintf(&b, "AUDIO_SIZE=%d\n", len(audio))
	}
	b.WriteString("}\n\n")

	if len(video) > 0 {
		fmt.Fprintf(&b, "VIDEO_DATA{\n%s\n}\n", video)
	}
	if len(audio) > 0 {
		fmt.Fprintf(&b, "\nAUDIO_DATA{\n%s\n}\n", audio)
	}

	out := []byte(b.String())
	if compress {
		out = compression.CompressContainer(out)
	}
	return out
}
