// Package hmic implements the HMIC family of media container formats: a
// run-length/temporally compressed text format for pixel data (HMIC), a
// companion run-length audio format (HMICA), a combined container wrapping
// both (HMICAV), and a memory-mappable binary format for instant playback
// (HMICFAST).
//
// This package holds the data model shared by every component. The actual
// codecs live in the subpackages:
//
//   - [github.com/hmic-media/hmic/compression] turns decoded frames and PCM
//     audio into run commands and tokens;
//   - [github.com/hmic-media/hmic/container/text] and
//     [github.com/hmic-media/hmic/container/fast] serialize those into files;
//   - [github.com/hmic-media/hmic/player] drives synchronized playback.
//
// Decoding of source media (video files, images, audio) and presentation
// (window surfaces, audio devices) are deliberately out of scope; callers
// plug those in through the FrameSource, AudioSource and FramePresenter
// interfaces.
package hmic

import "sort"

// Pixel is one RGBA pixel. The zero value is fully transparent black.
//
// Pixels are totally ordered (lexicographically by R, G, B, A) so they can
// be used as deterministic grouping keys when emitting container output.
type Pixel struct {
	R, G, B, A uint8
}

// Less reports whether p sorts before other in the canonical pixel order.
func (p Pixel) Less(other Pixel) bool {
	if p.R != other.R {
		return p.R < other.R
	}
	if p.G != other.G {
		return p.G < other.G
	}
	if p.B != other.B {
		return p.B < other.B
	}
	return p.A < other.A
}

// CommandKind discriminates the two drawing command shapes.
type CommandKind uint8

const (
	// Point draws a single pixel.
	Point CommandKind = iota
	// Line draws a horizontal run of pixels on one row.
	Line
)

// Command is a horizontal run of same-colored pixels on one row, in 0-based
// frame coordinates. StartX == EndX if and only if Kind is Point.
type Command struct {
	Kind         CommandKind
	StartX, EndX int
	Y            int
}

// Less reports whether c sorts before other in the canonical command order
// (Y, then StartX, then EndX, then Kind).
func (c Command) Less(other Command) bool {
	if c.Y != other.Y {
		return c.Y < other.Y
	}
	if c.StartX != other.StartX {
		return c.StartX < other.StartX
	}
	if c.EndX != other.EndX {
		return c.EndX < other.EndX
	}
	return c.Kind < other.Kind
}

// Width returns the number of pixels the command covers.
func (c Command) Width() int {
	return c.EndX - c.StartX + 1
}

// FrameCommands maps each color occurring in one frame to the ordered list
// of commands drawing it. A FrameCommands is built once per frame and never
// mutated after it is handed to the temporal compressor.
type FrameCommands map[Pixel][]Command

// Merge appends all of other's command lists onto fc. Order across merged
// row ranges is irrelevant; the container writers restore the canonical
// ordering through [FrameCommands.Colors] and the extractor's row order.
func (fc FrameCommands) Merge(other FrameCommands) {
	for color, commands := range other {
		fc[color] = append(fc[color], commands...)
	}
}

// Colors returns every color present in fc in ascending pixel order.
func (fc FrameCommands) Colors() []Pixel {
	colors := make([]Pixel, 0, len(fc))
	for color := range fc {
		colors = append(colors, color)
	}
	sort.Slice(colors, func(i, j int) bool {
		return colors[i].Less(colors[j])
	})
	return colors
}

// TotalCommands returns the number of commands across all colors.
func (fc FrameCommands) TotalCommands() int {
	total := 0
	for _, commands := range fc {
		total += len(commands)
	}
	return total
}

// VideoInfo describes the visual stream of a container.
type VideoInfo struct {
	Width       int
	Height      int
	FPS         int
	TotalFrames int
	Loop        bool
}

// AudioInfo describes the audio stream of a container. TotalSamples counts
// per-channel samples; every channel has exactly TotalSamples entries.
type AudioInfo struct {
	SampleRate   int
	Channels     int
	TotalSamples int64
}

// AudioBuffer is fully decoded PCM audio, one float32 slice per channel.
type AudioBuffer struct {
	AudioInfo
	ChannelData [][]float32
}

// Interleaved flattens the per-channel data into a single interleaved
// sample stream (the layout the HMICFAST audio blob uses).
func (ab *AudioBuffer) Interleaved() []float32 {
	out := make([]float32, int(ab.TotalSamples)*ab.Channels)
	for ch := 0; ch < ab.Channels; ch++ {
		data := ab.ChannelData[ch]
		for i := int64(0); i < ab.TotalSamples; i++ {
			out[i*int64(ab.Channels)+int64(ch)] = data[i]
		}
	}
	return out
}

// DeinterleaveAudio splits an interleaved sample stream into per-channel
// slices. len(samples) must be a multiple of channels.
func DeinterleaveAudio(samples []float32, channels int) [][]float32 {
	perChannel := len(samples) / channels
	out := make([][]float32, channels)
	for ch := 0; ch < channels; ch++ {
		out[ch] = make([]float32, perChannel)
		for i := 0; i < perChannel; i++ {
			out[ch][i] = samples[i*channels+ch]
		}
	}
	return out
}

// FrameSource is the pull interface a media decoder exposes to the encoder.
// NextFrame returns one fully decoded RGBA frame of Info().Width*Height
// pixels in row-major order, or io.EOF once the stream is exhausted.
type FrameSource interface {
	Info() VideoInfo
	NextFrame() ([]Pixel, error)
}

// AudioSource is the pull interface an audio decoder exposes to the encoder.
type AudioSource interface {
	AudioInfo() AudioInfo
	// ReadAll returns the entire decoded stream as per-channel samples.
	ReadAll() (*AudioBuffer, error)
}

// FramePresenter receives decoded frames from the player. Implementations
// own the screen surface or texture; the player guarantees the slice is
// valid only until the next call.
type FramePresenter interface {
	Present(frame []Pixel, index int) error
}
