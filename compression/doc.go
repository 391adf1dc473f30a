// Package compression implements the three lossy-to-lossless reduction
// stages the HMIC containers are built on.
//
// The pixel stage run-length encodes each frame row into drawing commands: a
// maximal horizontal run of one color becomes a single Point or Line command
// keyed by that color. On typical flat-shaded or animated content most rows
// collapse into a handful of commands.
//
// The temporal stage is where the real win comes from. A command that is
// emitted identically (same color, same geometry) across a contiguous span
// of frames only needs to be stored once, tagged with the span it covers.
// The extractor is greedy and forward-only: it walks frames in order and,
// for each still-unclaimed command, claims every consecutive forward match
// it can find. The frame a run originates in always keeps the command in
// its own residual block; only the subsequent matches move into the shared
// block. Claims are tracked in one bitmap per frame so no occurrence can be
// counted twice.
//
// The audio stage is an intentionally lossy quantizer, not a compressor:
// a run of five or more samples that stay within a small tolerance of the
// run's first sample collapses to a single start-end=value token, snapping
// any drift inside the tolerance to that first value. Shorter runs are
// emitted literally. Decoded output is therefore only guaranteed to be
// within the tolerance of the input, never bit-exact.
//
// Byte-level compression of whole containers and of binary frame payloads
// is delegated to zstd; the helpers at the bottom of this package wrap
// pooled encoders so the container writers can treat it as an opaque
// encode/decode primitive.
package compression
