// Package fast implements the HMICFAST binary container: a fixed packed
// header, a frame index table, per-frame payloads (raw RGBA or zstd), and an
// optional interleaved float32 audio blob. The reader memory-maps the whole
// file and serves frame and audio data as bounds-checked views into the
// mapping, so an uncompressed container plays back with no per-frame
// allocation at all.
package fast

import (
	"encoding/binary"
	"fmt"

	"github.com/noxer/bytewriter"

	"github.com/hmic-media/hmic"
)

// Magic identifies an HMICFAST container. It is the first 8 bytes of every
// file; anything else is a fatal format error.
const Magic = "HMICFAST"

// FormatVersion is the only layout revision this package reads and writes.
const FormatVersion = 1

// All integers are little-endian with no implicit padding.
const (
	// HeaderSize is the exact packed size of Header on the wire.
	HeaderSize = 59
	// IndexEntrySize is the packed size of one frame index entry.
	IndexEntrySize = 12
)

// Header is the fixed-size container header. It is written twice: once up
// front with the byte offsets still unresolved, and again at the end once
// the payload pass has produced them.
type Header struct {
	Version          uint32
	Width            uint32
	Height           uint32
	FPS              uint32
	TotalFrames      uint32
	HasAudio         bool
	Compressed       bool
	AudioSampleRate  uint32
	AudioChannels    uint8
	AudioSamples     uint64
	FrameIndexOffset uint64
	AudioDataOffset  uint64
}

// IndexEntry locates one frame payload inside the file. Offset is absolute
// from the start of the file; Size is the stored payload size (compressed
// size when the container's compressed flag is set).
type IndexEntry struct {
	Offset uint64
	Size   uint32
}

// FrameSize returns the decoded byte size of one frame.
func (h *Header) FrameSize() int {
	return int(h.Width) * int(h.Height) * 4
}

// AudioBlobSize returns the byte size of the interleaved audio region, zero
// when the container has no audio.
func (h *Header) AudioBlobSize() int64 {
	if !h.HasAudio {
		return 0
	}
	return int64(h.AudioSamples) * int64(h.AudioChannels) * 4
}

// VideoInfo converts the header's visual fields to the shared data model.
// The binary format does not record a loop flag; playback decides that.
func (h *Header) VideoInfo() hmic.VideoInfo {
	return hmic.VideoInfo{
		Width:       int(h.Width),
		Height:      int(h.Height),
		FPS:         int(h.FPS),
		TotalFrames: int(h.TotalFrames),
	}
}

// AudioInfo converts the header's audio fields to the shared data model.
func (h *Header) AudioInfo() hmic.AudioInfo {
	return hmic.AudioInfo{
		SampleRate:   int(h.AudioSampleRate),
		Channels:     int(h.AudioChannels),
		TotalSamples: int64(h.AudioSamples),
	}
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// MarshalBinary packs the header into its wire layout.
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	writer := bytewriter.New(buf)

	writer.Write([]byte(Magic))
	for _, field := range []uint32{h.Version, h.Width, h.Height, h.FPS, h.TotalFrames} {
		binary.Write(writer, binary.LittleEndian, field)
	}
	writer.Write([]byte{boolByte(h.HasAudio), boolByte(h.Compressed)})
	binary.Write(writer, binary.LittleEndian, h.AudioSampleRate)
	writer.Write([]byte{h.AudioChannels})
	binary.Write(writer, binary.LittleEndian, h.AudioSamples)
	binary.Write(writer, binary.LittleEndian, h.FrameIndexOffset)
	if err := binary.Write(writer, binary.LittleEndian, h.AudioDataOffset); err != nil {
		return nil, err
	}

	return buf, nil
}

// UnmarshalHeader decodes and validates the fixed header at the start of
// data. It checks the magic and version but not the offsets; the reader
// validates those against the real file length.
func UnmarshalHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, hmic.ErrTruncatedContainer.WithMessage(fmt.Sprintf(
			"%d bytes is smaller than the %d byte header", len(data), HeaderSize))
	}
	if string(data[:8]) != Magic {
		return Header{}, hmic.ErrBadMagic
	}

	h := Header{
		Version:          binary.LittleEndian.Uint32(data[8:]),
		Width:            binary.LittleEndian.Uint32(data[12:]),
		Height:           binary.LittleEndian.Uint32(data[16:]),
		FPS:              binary.LittleEndian.Uint32(data[20:]),
		TotalFrames:      binary.LittleEndian.Uint32(data[24:]),
		HasAudio:         data[28] != 0,
		Compressed:       data[29] != 0,
		AudioSampleRate:  binary.LittleEndian.Uint32(data[30:]),
		AudioChannels:    data[34],
		AudioSamples:     binary.LittleEndian.Uint64(data[35:]),
		FrameIndexOffset: binary.LittleEndian.Uint64(data[43:]),
		AudioDataOffset:  binary.LittleEndian.Uint64(data[51:]),
	}
	if h.Version != FormatVersion {
		return Header{}, hmic.ErrUnsupportedVersion.WithMessage(
			fmt.Sprintf("version %d", h.Version))
	}
	return h, nil
}

// marshalIndex packs the frame index table.
func marshalIndex(entries []IndexEntry) []byte {
	buf := make([]byte, len(entries)*IndexEntrySize)
	writer := bytewriter.New(buf)
	for _, entry := range entries {
		binary.Write(writer, binary.LittleEndian, entry.Offset)
		binary.Write(writer, binary.LittleEndian, entry.Size)
	}
	return buf
}

// unmarshalIndex decodes the frame index table from its on-disk bytes.
func unmarshalIndex(data []byte, totalFrames int) []IndexEntry {
	entries := make([]IndexEntry, totalFrames)
	for i := range entries {
		record := data[i*IndexEntrySize:]
		entries[i].Offset = binary.LittleEndian.Uint64(record)
		entries[i].Size = binary.LittleEndian.Uint32(record[8:])
	}
	return entries
}
