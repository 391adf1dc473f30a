package fast

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"unsafe"

	"github.com/boljen/go-bitmap"
	"github.com/edsrzf/mmap-go"

	"github.com/hmic-media/hmic"
	"github.com/hmic-media/hmic/compression"
)

// RetentionPolicy names how the decompression cache holds on to decoded
// frames. Only RetainAll is implemented: total frames times frame size is
// assumed to fit in memory alongside the mapping, which holds for the kind
// of content the format targets.
type RetentionPolicy int

const (
	// RetainAll keeps every decompressed frame for the reader's lifetime.
	RetainAll RetentionPolicy = iota
)

// Reader is a zero-copy view over a memory-mapped container. Uncompressed
// frame payloads and the audio blob are served directly out of the mapping;
// compressed frames are decompressed on first access into a cache governed
// by the retention policy.
//
// A Reader is not safe for concurrent use; in the playback engine only the
// render loop touches it.
type Reader struct {
	file   *os.File
	mapped mmap.MMap
	header Header
	index  []IndexEntry

	retention RetentionPolicy
	cache     [][]hmic.Pixel
	cached    bitmap.Bitmap

	audioBase int64
	closed    bool
}

// Open memory-maps the container at path and validates the whole layout
// (header magic and version, every index entry, and the audio region)
// against the mapped length before any view is handed out.
func Open(path string) (*Reader, error) {
	return OpenWithRetention(path, RetainAll)
}

// OpenWithRetention is Open with an explicit cache retention policy.
func OpenWithRetention(path string, retention RetentionPolicy) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, hmic.ErrIOFailed.Wrap(err)
	}

	mapped, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		file.Close()
		return nil, hmic.ErrIOFailed.Wrap(err)
	}

	reader := &Reader{file: file, mapped: mapped, retention: retention}
	if err := reader.validate(); err != nil {
		reader.Close()
		return nil, err
	}

	if reader.header.Compressed {
		total := int(reader.header.TotalFrames)
		reader.cache = make([][]hmic.Pixel, total)
		reader.cached = bitmap.NewSlice(total)
	}
	return reader, nil
}

// validate decodes the header and index and bounds-checks every region the
// file claims to contain.
func (r *Reader) validate() error {
	header, err := UnmarshalHeader(r.mapped)
	if err != nil {
		return err
	}
	r.header = header

	size := int64(len(r.mapped))
	total := int64(header.TotalFrames)
	indexEnd := int64(header.FrameIndexOffset) + total*IndexEntrySize
	if int64(header.FrameIndexOffset) < HeaderSize || indexEnd > size {
		return hmic.ErrTruncatedContainer.WithMessage(
			"frame index table extends past end of file")
	}
	r.index = unmarshalIndex(r.mapped[header.FrameIndexOffset:indexEnd], int(total))

	frameSize := int64(header.FrameSize())
	for i, entry := range r.index {
		end := int64(entry.Offset) + int64(entry.Size)
		if int64(entry.Offset) < indexEnd || end > size {
			return hmic.ErrTruncatedContainer.WithMessage(fmt.Sprintf(
				"frame %d payload [%d, %d) outside file of %d bytes",
				i, entry.Offset, end, size))
		}
		if !header.Compressed && int64(entry.Size) != frameSize {
			return hmic.ErrMalformedContainer.WithMessage(fmt.Sprintf(
				"uncompressed frame %d is %d bytes, want %d",
				i, entry.Size, frameSize))
		}
	}

	if header.HasAudio {
		r.audioBase = int64(header.AudioDataOffset)
		if r.audioBase < indexEnd || r.audioBase+header.AudioBlobSize() > size {
			return hmic.ErrTruncatedContainer.WithMessage(
				"audio blob extends past end of file")
		}
	}
	return nil
}

// Header returns the decoded container header.
func (r *Reader) Header() Header {
	return r.header
}

// FrameCount returns the number of frames in the container.
func (r *Reader) FrameCount() int {
	return int(r.header.TotalFrames)
}

// Frame returns frame i as a pixel buffer of Width*Height entries.
//
// For an uncompressed container the returned slice is a direct view into
// the mapping: no bytes are copied and the slice stays valid until Close.
// For a compressed container the frame is decompressed on first access and
// served from the cache afterwards; a decompression failure is reported for
// that frame only and does not poison the reader.
func (r *Reader) Frame(i int) ([]hmic.Pixel, error) {
	if r.closed {
		return nil, hmic.ErrContainerClosed
	}
	if i < 0 || i >= int(r.header.TotalFrames) {
		return nil, hmic.ErrFrameOutOfRange.WithMessage(fmt.Sprintf(
			"frame %d of %d", i, r.header.TotalFrames))
	}

	entry := r.index[i]
	payload := r.mapped[entry.Offset : int64(entry.Offset)+int64(entry.Size)]

	if !r.header.Compressed {
		return pixelView(payload), nil
	}

	if r.cached.Get(i) {
		return r.cache[i], nil
	}

	raw, err := compression.Decompress(payload, nil)
	if err != nil {
		return nil, hmic.ErrFrameDecompression.WithMessage(
			fmt.Sprintf("frame %d: %s", i, err))
	}
	if len(raw) != r.header.FrameSize() {
		return nil, hmic.ErrFrameDecompression.WithMessage(fmt.Sprintf(
			"frame %d decompressed to %d bytes, want %d",
			i, len(raw), r.header.FrameSize()))
	}

	frame := pixelView(raw)
	r.cache[i] = frame
	r.cached.Set(i, true)
	return frame, nil
}

// Preload decompresses the first n frames so playback starts without a
// decode hiccup. A no-op for uncompressed containers. Frames that fail to
// decompress are skipped here and will report their error on direct access.
func (r *Reader) Preload(n int) {
	if !r.header.Compressed {
		return
	}
	if n > int(r.header.TotalFrames) {
		n = int(r.header.TotalFrames)
	}
	for i := 0; i < n; i++ {
		r.Frame(i)
	}
}

// AudioAt returns the sample at the given interleaved index
// (samplePosition*channels + channel), or silence outside the blob. The
// read goes straight to the mapped bytes, which is what makes it safe to
// call from an audio callback at device rate.
func (r *Reader) AudioAt(interleaved int64) float32 {
	if !r.header.HasAudio || r.closed {
		return 0
	}
	limit := int64(r.header.AudioSamples) * int64(r.header.AudioChannels)
	if interleaved < 0 || interleaved >= limit {
		return 0
	}
	bits := binary.LittleEndian.Uint32(r.mapped[r.audioBase+interleaved*4:])
	return math.Float32frombits(bits)
}

// AudioInfo returns the audio stream's shape, or ErrNoAudio.
func (r *Reader) AudioInfo() (hmic.AudioInfo, error) {
	if !r.header.HasAudio {
		return hmic.AudioInfo{}, hmic.ErrNoAudio
	}
	return r.header.AudioInfo(), nil
}

// FrameStat is one row of the per-frame storage report.
type FrameStat struct {
	Index   int     `csv:"frame"`
	Offset  uint64  `csv:"offset"`
	Size    uint32  `csv:"stored_bytes"`
	RawSize int     `csv:"raw_bytes"`
	Ratio   float64 `csv:"ratio"`
}

// Stats reports where every frame landed in the file and how well it
// compressed.
func (r *Reader) Stats() []FrameStat {
	stats := make([]FrameStat, len(r.index))
	raw := r.header.FrameSize()
	for i, entry := range r.index {
		stats[i] = FrameStat{
			Index:   i,
			Offset:  entry.Offset,
			Size:    entry.Size,
			RawSize: raw,
			Ratio:   float64(entry.Size) / float64(raw),
		}
	}
	return stats
}

// Close unmaps the file and releases the cache. Frame views obtained from
// an uncompressed reader must not be used afterwards.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.cache = nil

	err := r.mapped.Unmap()
	if closeErr := r.file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return hmic.ErrIOFailed.Wrap(err)
	}
	return nil
}

// pixelView reinterprets raw RGBA bytes as a pixel slice without copying.
// Pixel is four bytes with byte alignment, so the cast is valid at any
// offset into the mapping.
func pixelView(data []byte) []hmic.Pixel {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*hmic.Pixel)(unsafe.Pointer(&data[0])), len(data)/4)
}
