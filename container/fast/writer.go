package fast

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/hmic-media/hmic"
	"github.com/hmic-media/hmic/compression"
)

// Write serializes a complete container to ws. The layout is written in two
// passes: the header and a placeholder index go out first, then every frame
// payload (recording its true offset and stored size as it lands), then the
// audio blob, and finally the header and index are rewritten in place with
// the now-known offsets. Payload sizes are only known after compression, so
// the patch pass cannot be avoided.
func Write(
	ws io.WriteSeeker,
	info hmic.VideoInfo,
	frames [][]hmic.Pixel,
	audio *hmic.AudioBuffer,
	compress bool,
) error {
	if len(frames) != info.TotalFrames {
		return hmic.ErrInvalidArgument.WithMessage(fmt.Sprintf(
			"info declares %d frames but %d were provided",
			info.TotalFrames, len(frames)))
	}

	header := Header{
		Version:     FormatVersion,
		Width:       uint32(info.Width),
		Height:      uint32(info.Height),
		FPS:         uint32(info.FPS),
		TotalFrames: uint32(len(frames)),
		Compressed:  compress,
	}
	if audio != nil && audio.TotalSamples > 0 {
		header.HasAudio = true
		header.AudioSampleRate = uint32(audio.SampleRate)
		header.AudioChannels = uint8(audio.Channels)
		header.AudioSamples = uint64(audio.TotalSamples)
	}
	header.FrameIndexOffset = HeaderSize

	// Pass one: header and a zeroed index reserve their final positions.
	index := make([]IndexEntry, len(frames))
	headerBytes, err := header.MarshalBinary()
	if err != nil {
		return hmic.ErrIOFailed.Wrap(err)
	}
	if _, err := ws.Write(headerBytes); err != nil {
		return hmic.ErrIOFailed.Wrap(err)
	}
	if _, err := ws.Write(marshalIndex(index)); err != nil {
		return hmic.ErrIOFailed.Wrap(err)
	}

	position := int64(HeaderSize + len(frames)*IndexEntrySize)
	frameSize := header.FrameSize()

	for i, frame := range frames {
		if len(frame)*4 != frameSize {
			return hmic.ErrInvalidArgument.WithMessage(fmt.Sprintf(
				"frame %d has %d pixels, want %d", i, len(frame), frameSize/4))
		}

		payload := pixelsToBytes(frame)
		if compress {
			payload = compression.CompressFrame(payload)
		}

		index[i] = IndexEntry{Offset: uint64(position), Size: uint32(len(payload))}
		if _, err := ws.Write(payload); err != nil {
			return hmic.ErrIOFailed.Wrap(err)
		}
		position += int64(len(payload))
	}

	if header.HasAudio {
		header.AudioDataOffset = uint64(position)
		if _, err := ws.Write(interleavedBytes(audio)); err != nil {
			return hmic.ErrIOFailed.Wrap(err)
		}
	}

	// Patch pass: both the header and the index are complete now.
	if _, err := ws.Seek(0, io.SeekStart); err != nil {
		return hmic.ErrIOFailed.Wrap(err)
	}
	headerBytes, err = header.MarshalBinary()
	if err != nil {
		return hmic.ErrIOFailed.Wrap(err)
	}
	if _, err := ws.Write(headerBytes); err != nil {
		return hmic.ErrIOFailed.Wrap(err)
	}
	if _, err := ws.Write(marshalIndex(index)); err != nil {
		return hmic.ErrIOFailed.Wrap(err)
	}

	return nil
}

// pixelsToBytes flattens a frame into its raw RGBA wire bytes.
func pixelsToBytes(frame []hmic.Pixel) []byte {
	out := make([]byte, len(frame)*4)
	for i, p := range frame {
		out[i*4] = p.R
		out[i*4+1] = p.G
		out[i*4+2] = p.B
		out[i*4+3] = p.A
	}
	return out
}

// interleavedBytes renders the audio blob: interleaved little-endian
// float32, channel-major within each sample frame.
func interleavedBytes(audio *hmic.AudioBuffer) []byte {
	out := make([]byte, audio.TotalSamples*int64(audio.Channels)*4)
	pos := 0
	for i := int64(0); i < audio.TotalSamples; i++ {
		for ch := 0; ch < audio.Channels; ch++ {
			bits := math.Float32bits(audio.ChannelData[ch][i])
			binary.LittleEndian.PutUint32(out[pos:], bits)
			pos += 4
		}
	}
	return out
}
