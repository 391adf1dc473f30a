package compression

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Two encoder flavors: frame payloads are compressed on the encode hot path
// and favor speed; whole text containers are compressed once and favor
// ratio.

func mustNewEncoder(level zstd.EncoderLevel) *zstd.Encoder {
	enc, err := zstd.NewWriter(
		nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(level),
		zstd.WithLowerEncoderMem(true),
	)
	if err != nil {
		panic(err)
	}
	return enc
}

func mustNewDecoder() *zstd.Decoder {
	dec, err := zstd.NewReader(
		nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
	)
	if err != nil {
		panic(err)
	}
	return dec
}

var fastEncPool = sync.Pool{
	New: func() any {
		return mustNewEncoder(zstd.SpeedDefault)
	},
}

var bestEncPool = sync.Pool{
	New: func() any {
		return mustNewEncoder(zstd.SpeedBestCompression)
	},
}

var decPool = sync.Pool{
	New: func() any {
		return mustNewDecoder()
	},
}

// CompressFrame compresses one binary frame payload, trading ratio for
// encode speed.
func CompressFrame(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	enc := fastEncPool.Get().(*zstd.Encoder)
	out := enc.EncodeAll(data, nil)
	fastEncPool.Put(enc)
	return out
}

// CompressContainer compresses a whole container byte stream at the highest
// ratio.
func CompressContainer(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	enc := bestEncPool.Get().(*zstd.Encoder)
	out := enc.EncodeAll(data, nil)
	bestEncPool.Put(enc)
	return out
}

// Decompress reverses either compression flavor. dst may be nil; when
// non-nil its storage is reused. Callers wrap the returned error with the
// sentinel appropriate to what was being decompressed.
func Decompress(data []byte, dst []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	dec := decPool.Get().(*zstd.Decoder)
	out, err := dec.DecodeAll(data, dst[:0])
	decPool.Put(dec)
	return out, err
}
