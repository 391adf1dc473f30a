// Package encoder is the front door for producing containers from decoded
// media. It pulls fully decoded frames and samples from the caller's
// FrameSource and AudioSource collaborators, runs them through the
// compression stages, and hands the result to the container writers. All
// source material is collected before any output is produced, so a failing
// decoder aborts the operation with nothing written.
package encoder

import (
	"errors"
	"fmt"
	"io"

	"github.com/hmic-media/hmic"
	"github.com/hmic-media/hmic/compression"
	"github.com/hmic-media/hmic/container/fast"
	"github.com/hmic-media/hmic/container/text"
)

// Options configures an encode operation.
type Options struct {
	// Compress enables zstd: per-frame payloads in the binary container,
	// the whole stream in the combined text container.
	Compress bool
	// Epsilon is the audio quantization tolerance; zero or negative selects
	// the default.
	Epsilon float64
	// Loop marks the visual stream as looping.
	Loop bool
}

// CollectFrames drains a frame source. The returned info carries the true
// frame count, which may differ from the source's estimate.
func CollectFrames(source hmic.FrameSource) (hmic.VideoInfo, [][]hmic.Pixel, error) {
	info := source.Info()
	expected := info.Width * info.Height
	if expected <= 0 {
		return hmic.VideoInfo{}, nil, hmic.ErrSourceFailed.WithMessage(
			fmt.Sprintf("source reports %dx%d frames", info.Width, info.Height))
	}

	var frames [][]hmic.Pixel
	for {
		frame, err := source.NextFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return hmic.VideoInfo{}, nil, hmic.ErrSourceFailed.Wrap(err)
		}
		if len(frame) != expected {
			return hmic.VideoInfo{}, nil, hmic.ErrSourceFailed.WithMessage(fmt.Sprintf(
				"frame %d has %d pixels, want %d", len(frames), len(frame), expected))
		}
		frames = append(frames, frame)
	}
	if len(frames) == 0 {
		return hmic.VideoInfo{}, nil, hmic.ErrSourceFailed.WithMessage(
			"source produced no frames")
	}

	info.TotalFrames = len(frames)
	return info, frames, nil
}

func collectAudio(source hmic.AudioSource) (*hmic.AudioBuffer, error) {
	if source == nil {
		return nil, nil
	}
	audio, err := source.ReadAll()
	if err != nil {
		return nil, hmic.ErrSourceFailed.Wrap(err)
	}
	return audio, nil
}

// EncodeText produces a text container from the sources: the combined
// HMICAV format when audio is present, the plain visual format otherwise.
func EncodeText(
	video hmic.FrameSource, audio hmic.AudioSource, opts Options,
) ([]byte, error) {
	info, frames, err := CollectFrames(video)
	if err != nil {
		return nil, err
	}
	info.Loop = opts.Loop

	samples, err := collectAudio(audio)
	if err != nil {
		return nil, err
	}

	commands := compression.ExtractFrames(frames, info.Width, info.Height)
	visual := text.EncodeVisual(info, compression.CompressTemporal(commands))

	if samples == nil {
		return visual, nil
	}
	audioText := text.EncodeAudio(samples, opts.Epsilon)
	return text.EncodeCombined(visual, audioText, opts.Compress), nil
}

// EncodeFast lays a binary container out on ws from the sources.
func EncodeFast(
	ws io.WriteSeeker, video hmic.FrameSource, audio hmic.AudioSource, opts Options,
) error {
	info, frames, err := CollectFrames(video)
	if err != nil {
		return err
	}

	samples, err := collectAudio(audio)
	if err != nil {
		return err
	}

	return fast.Write(ws, info, frames, samples, opts.Compress)
}
