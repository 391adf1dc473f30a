// Package player drives synchronized playback of an HMICFAST container: it
// owns frame selection over a master clock, on-demand decompression through
// the container reader's cache, transport controls, and the audio callback
// that keeps the two streams within a bounded drift of each other.
//
// The engine is deliberately split from presentation: the host loop calls
// Tick (or Step) once per iteration and receives decoded frames through its
// FramePresenter, and the host's audio subsystem invokes the closure from
// AudioCallback on its own thread. Those are the only two execution
// contexts; the state shared between them is limited to a published target
// sample, the callback's own position, and the play/quit flags, all
// atomics.
package player

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/hmic-media/hmic"
	"github.com/hmic-media/hmic/container/fast"
)

// ClockMode selects the master clock frame selection derives from.
type ClockMode int

const (
	// WallClock derives the frame from elapsed time; the audio callback
	// chases the published target sample.
	WallClock ClockMode = iota
	// AudioMaster derives the frame from the audio callback's own sample
	// position, making audio authoritative and video purely reactive.
	AudioMaster
)

// PresentPolicy throttles how often decoded frames reach the presenter.
// Frames that are not presented are still decoded, so the decompression
// cache stays warm and throughput measurements stay honest.
type PresentPolicy struct {
	// EveryN presents every Nth frame. Zero or one presents every frame.
	EveryN int
}

func (p PresentPolicy) wants(frame int) bool {
	if p.EveryN <= 1 {
		return true
	}
	return frame%p.EveryN == 0
}

// Options configures a Player.
type Options struct {
	Clock   ClockMode
	Present PresentPolicy
	// Loop wraps to frame 0 at the end of the stream instead of stopping.
	Loop bool
	// PreloadFrames decompresses this many frames up front on compressed
	// containers.
	PreloadFrames int
	Logger        Logger
}

// Player is the playback state machine. All methods except AudioCallback's
// closure must be called from the single host loop.
type Player struct {
	reader    *fast.Reader
	presenter hmic.FramePresenter
	opts      Options
	log       Logger

	info            hmic.VideoInfo
	audio           hmic.AudioInfo
	hasAudio        bool
	frameDuration   time.Duration
	samplesPerFrame float64

	playing       atomic.Bool
	quit          atomic.Bool
	currentFrame  int
	lastPresented int
	origin        time.Time

	// targetSample is published by the loop, read by the audio callback.
	// audioPos is owned by the callback, read by the loop in AudioMaster
	// mode.
	targetSample atomic.Int64
	audioPos     atomic.Int64

	// now is swappable so the clock can be driven in tests.
	now func() time.Time
}

// New builds a Player over an open container reader. The presenter may be
// nil, in which case frames are decoded but never handed anywhere (pure
// throughput mode).
func New(reader *fast.Reader, presenter hmic.FramePresenter, opts Options) (*Player, error) {
	header := reader.Header()
	if header.TotalFrames == 0 || header.FPS == 0 {
		return nil, hmic.ErrMalformedContainer.WithMessage(
			"container has no playable frames")
	}

	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	p := &Player{
		reader:        reader,
		presenter:     presenter,
		opts:          opts,
		log:           opts.Logger,
		info:          header.VideoInfo(),
		frameDuration: time.Second / time.Duration(header.FPS),
		lastPresented: -1,
		now:           time.Now,
	}
	p.info.Loop = opts.Loop

	if header.HasAudio {
		p.hasAudio = true
		p.audio = header.AudioInfo()
		p.samplesPerFrame = float64(p.audio.TotalSamples) / float64(header.TotalFrames)
	} else if opts.Clock == AudioMaster {
		// Nothing to master from; fall back rather than freeze on frame 0.
		p.opts.Clock = WallClock
	}

	if opts.PreloadFrames > 0 {
		reader.Preload(opts.PreloadFrames)
	}
	return p, nil
}

// Info returns the video metadata with the session's loop flag applied.
func (p *Player) Info() hmic.VideoInfo {
	return p.info
}

// CurrentFrame returns the frame the clock last selected.
func (p *Player) CurrentFrame() int {
	return p.currentFrame
}

// Playing reports whether the transport is running.
func (p *Player) Playing() bool {
	return p.playing.Load()
}

// Quitting reports whether Quit was called; the host loop polls this once
// per iteration.
func (p *Player) Quitting() bool {
	return p.quit.Load()
}

// Quit requests a cooperative shutdown.
func (p *Player) Quit() {
	p.quit.Store(true)
}

// Start begins playback from the current frame.
func (p *Player) Start() {
	p.origin = p.now().Add(-time.Duration(p.currentFrame) * p.frameDuration)
	p.playing.Store(true)
}

// TogglePlayback flips between playing and paused. Resuming recomputes the
// clock origin so elapsed time reproduces the paused frame exactly.
func (p *Player) TogglePlayback() {
	if p.playing.Load() {
		p.playing.Store(false)
		return
	}
	p.Start()
}

// SeekRelative moves the playhead by delta frames, clamping at both ends.
func (p *Player) SeekRelative(delta int) {
	p.SeekTo(p.currentFrame + delta)
}

// SeekTo moves the playhead to an absolute frame. Seeks before the start
// clamp to frame 0; seeks past the end wrap around when looping and clamp
// to the last frame otherwise.
func (p *Player) SeekTo(frame int) {
	if frame < 0 {
		frame = 0
	}
	if frame >= p.info.TotalFrames {
		if p.info.Loop {
			frame %= p.info.TotalFrames
		} else {
			frame = p.info.TotalFrames - 1
		}
	}
	p.currentFrame = frame
	p.publishTarget()
	// With audio as the master clock the next Tick rederives the frame from
	// the callback's position, so the seek has to move that position too.
	if p.opts.Clock == AudioMaster {
		p.audioPos.Store(p.targetSample.Load())
	}
	p.origin = p.now().Add(-time.Duration(frame) * p.frameDuration)
}

// SeekToStart jumps to frame 0.
func (p *Player) SeekToStart() {
	p.SeekTo(0)
}

// SeekToEnd jumps to the last frame.
func (p *Player) SeekToEnd() {
	p.SeekTo(p.info.TotalFrames - 1)
}

// Restart rewinds everything, including the audio callback's position.
func (p *Player) Restart() {
	p.currentFrame = 0
	p.targetSample.Store(0)
	p.audioPos.Store(0)
	p.origin = p.now()
}

// publishTarget converts the current frame to the audio sample the
// callback should be delivering, computed in floating point and truncated.
func (p *Player) publishTarget() {
	p.targetSample.Store(int64(float64(p.currentFrame) * p.samplesPerFrame))
}

// Tick advances the clock one host-loop iteration: it selects the frame the
// master clock calls for, publishes the matching audio target, handles
// end-of-stream, and hands the decoded frame to the presenter if the
// present policy wants it. Decompression failures skip the frame and keep
// playing.
func (p *Player) Tick() error {
	if p.playing.Load() {
		switch p.opts.Clock {
		case AudioMaster:
			p.clockFromAudio()
		default:
			p.clockFromTime()
		}
	}
	return p.present()
}

func (p *Player) clockFromTime() {
	elapsed := p.now().Sub(p.origin)
	target := int(elapsed / p.frameDuration)
	if target == p.currentFrame {
		return
	}
	p.currentFrame = target

	if p.currentFrame >= p.info.TotalFrames {
		if p.info.Loop {
			p.currentFrame = 0
			p.origin = p.now()
		} else {
			p.currentFrame = p.info.TotalFrames - 1
			p.playing.Store(false)
		}
	}
	p.publishTarget()
}

func (p *Player) clockFromAudio() {
	if p.samplesPerFrame <= 0 {
		return
	}
	frame := int(float64(p.audioPos.Load()) / p.samplesPerFrame)
	if frame > p.info.TotalFrames-1 {
		frame = p.info.TotalFrames - 1
	}
	p.currentFrame = frame
}

// Step handles the current frame and then advances exactly one, regardless
// of wall time. This is the throughput ("chaos") discipline, where the loop
// runs as fast as decode allows and the present policy independently
// throttles the screen.
func (p *Player) Step() error {
	err := p.present()

	p.currentFrame++
	if p.currentFrame >= p.info.TotalFrames {
		if p.info.Loop {
			p.currentFrame = 0
		} else {
			p.currentFrame = p.info.TotalFrames - 1
			p.playing.Store(false)
		}
	}
	p.publishTarget()
	return err
}

// present decodes the current frame and forwards it per the policy. The
// decode always happens so skipped frames still warm the cache.
func (p *Player) present() error {
	frame, err := p.reader.Frame(p.currentFrame)
	if err != nil {
		if errors.Is(err, hmic.ErrFrameDecompression) {
			p.log.Warnf("skipping frame %d: %s", p.currentFrame, err)
			return nil
		}
		return err
	}

	if p.presenter == nil || !p.opts.Present.wants(p.currentFrame) {
		return nil
	}
	if p.currentFrame == p.lastPresented {
		return nil
	}
	p.lastPresented = p.currentFrame
	return p.presenter.Present(frame, p.currentFrame)
}
