package text

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/hmic-media/hmic"
	"github.com/hmic-media/hmic/compression"
)

// Media is a fully parsed combined (or standalone) text container.
type Media struct {
	Video *Video
	Audio *hmic.AudioBuffer
}

// Video is the parsed visual stream: metadata plus, per frame, the complete
// command set with every temporally shared command re-expanded into each
// frame that owns it.
type Video struct {
	Info   hmic.VideoInfo
	Frames []hmic.FrameCommands
}

// parseState enumerates where in the block structure the line scanner is.
type parseState int

const (
	stateNone parseState = iota
	stateHeader
	stateVideoInfo
	stateVideoFrames
	stateAudioInfo
	stateAudioChannels
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Decode parses a visual, audio or combined text container. A stream that
// starts with the zstd magic is decompressed first. Unlike the formats'
// first implementation this parser validates everything it touches:
// malformed numerics, commands outside a frame block, out-of-range frame or
// channel indices and non-horizontal line commands are all hard rejects.
func Decode(data []byte) (*Media, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		var err error
		data, err = compression.Decompress(data, nil)
		if err != nil {
			return nil, hmic.ErrMalformedContainer.Wrap(err)
		}
	}

	// Channel token streams are written as one line per channel and grow
	// with the sample count, so lines are walked manually instead of through
	// a length-capped scanner.
	p := &parser{media: &Media{}}
	for start := 0; start < len(data); {
		var raw []byte
		if nl := bytes.IndexByte(data[start:], '\n'); nl < 0 {
			raw = data[start:]
			start = len(data)
		} else {
			raw = data[start : start+nl]
			start += nl + 1
		}

		p.lineNo++
		line := strings.TrimSpace(string(raw))
		if line == "" {
			continue
		}
		if err := p.consume(line); err != nil {
			return nil, err
		}
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return p.media, nil
}

type parser struct {
	media  *Media
	state  parseState
	lineNo int

	// Current contexts opened by F{, rgba(){ and C{ lines.
	currentFrames  []int
	currentColor   hmic.Pixel
	haveColor      bool
	currentChannel int
}

func (p *parser) errorf(format string, args ...any) error {
	return hmic.ErrMalformedContainer.WithMessage(
		fmt.Sprintf("line %d: %s", p.lineNo, fmt.Sprintf(format, args...)))
}

func (p *parser) consume(line string) error {
	switch {
	case line == "HMICAV_HEADER{":
		p.state = stateHeader
		return nil
	case line == "VIDEO_DATA{":
		p.state = stateNone
		return nil
	case line == "AUDIO_DATA{":
		p.state = stateAudioInfo
		return nil
	case line == "info{":
		if p.state == stateNone || p.state == stateHeader {
			// Whether this opens a visual or an audio stream is decided by
			// the first key inside the block (standalone audio containers
			// start with an info block too).
			p.state = stateVideoInfo
		} else {
			p.state = stateAudioInfo
			if p.media.Audio == nil {
				p.media.Audio = &hmic.AudioBuffer{}
			}
		}
		return nil
	}

	switch p.state {
	case stateHeader:
		// Presence flags and sizes are advisory; the embedded blocks are
		// authoritative.
		if line != "}" && !strings.Contains(line, "=") {
			return p.errorf("unexpected header line %q", line)
		}
		return nil
	case stateVideoInfo:
		if line == "}" {
			p.state = stateVideoFrames
			return p.openFrameStorage()
		}
		return p.videoInfoLine(line)
	case stateVideoFrames:
		return p.videoFrameLine(line)
	case stateAudioInfo:
		if line == "}" {
			p.state = stateAudioChannels
			return p.openChannelStorage()
		}
		return p.audioInfoLine(line)
	case stateAudioChannels:
		return p.audioChannelLine(line)
	}

	return p.errorf("unexpected line %q", line)
}

func (p *parser) videoInfoLine(line string) error {
	key, value, found := strings.Cut(line, "=")
	if !found {
		return p.errorf("bad info entry %q", line)
	}

	if p.media.Video == nil {
		switch key {
		case "hz", "c", "sam":
			// Standalone audio container: the undecided info block turned
			// out to be the audio one.
			p.state = stateAudioInfo
			p.media.Audio = &hmic.AudioBuffer{}
			return p.audioInfoLine(line)
		}
		p.media.Video = &Video{}
	}
	info := &p.media.Video.Info

	switch key {
	case "DISPLAY":
		w, h, found := strings.Cut(value, "X")
		if !found {
			return p.errorf("bad display size %q", value)
		}
		var err error
		if info.Width, err = strconv.Atoi(w); err != nil || info.Width <= 0 {
			return p.errorf("bad display width %q", w)
		}
		if info.Height, err = strconv.Atoi(h); err != nil || info.Height <= 0 {
			return p.errorf("bad display height %q", h)
		}
	case "FPS":
		fps, err := strconv.Atoi(value)
		if err != nil || fps <= 0 {
			return p.errorf("bad fps %q", value)
		}
		info.FPS = fps
	case "F":
		frames, err := strconv.Atoi(value)
		if err != nil || frames <= 0 {
			return p.errorf("bad frame count %q", value)
		}
		info.TotalFrames = frames
	case "LOOP":
		switch value {
		case "Y":
			info.Loop = true
		case "N":
			info.Loop = false
		default:
			return p.errorf("bad loop flag %q", value)
		}
	default:
		return p.errorf("unknown info key %q", key)
	}
	return nil
}

func (p *parser) openFrameStorage() error {
	if p.media.Video == nil {
		return p.errorf("incomplete video info block")
	}
	info := p.media.Video.Info
	if info.Width == 0 || info.Height == 0 || info.FPS == 0 || info.TotalFrames == 0 {
		return p.errorf("incomplete video info block")
	}
	p.media.Video.Frames = make([]hmic.FrameCommands, info.TotalFrames)
	for i := range p.media.Video.Frames {
		p.media.Video.Frames[i] = make(hmic.FrameCommands)
	}
	return nil
}

func (p *parser) videoFrameLine(line string) error {
	switch {
	case line == "}":
		// Closes either the rgba block or the frame block.
		if p.haveColor {
			p.haveColor = false
		} else {
			p.currentFrames = nil
		}
		return nil

	case strings.HasPrefix(line, "F") && strings.HasSuffix(line, "{"):
		descriptor := strings.TrimSuffix(strings.TrimPrefix(line, "F"), "{")
		wire, err := compression.ExpandFrameRange(descriptor)
		if err != nil {
			return p.errorf("bad frame range %q", descriptor)
		}
		total := p.media.Video.Info.TotalFrames
		frames := make([]int, len(wire))
		for i, number := range wire {
			if number < 1 || number > total {
				return p.errorf("frame %d outside [1, %d]", number, total)
			}
			frames[i] = number - 1
		}
		p.currentFrames = frames
		p.haveColor = false
		return nil

	case strings.HasPrefix(line, "rgba("):
		if p.currentFrames == nil {
			return p.errorf("color block outside a frame block")
		}
		color, err := parseRGBA(strings.TrimSuffix(line, "{"))
		if err != nil {
			return p.errorf("%s", err)
		}
		p.currentColor = color
		p.haveColor = true
		return nil

	case strings.HasPrefix(line, "P=") || strings.HasPrefix(line, "PL="):
		if p.currentFrames == nil || !p.haveColor {
			return p.errorf("command %q outside a color block", line)
		}
		command, err := parseCommand(line)
		if err != nil {
			return p.errorf("%s", err)
		}
		for _, frame := range p.currentFrames {
			p.media.Video.Frames[frame][p.currentColor] = append(
				p.media.Video.Frames[frame][p.currentColor], command)
		}
		return nil
	}

	return p.errorf("unexpected line %q in frame data", line)
}

func (p *parser) audioInfoLine(line string) error {
	key, value, found := strings.Cut(line, "=")
	if !found {
		return p.errorf("bad audio info entry %q", line)
	}
	audio := p.media.Audio

	switch key {
	case "hz":
		rate, err := strconv.Atoi(value)
		if err != nil || rate <= 0 {
			return p.errorf("bad sample rate %q", value)
		}
		audio.SampleRate = rate
	case "c":
		channels, err := strconv.Atoi(value)
		if err != nil || channels <= 0 {
			return p.errorf("bad channel count %q", value)
		}
		audio.Channels = channels
	case "sam":
		samples, err := strconv.ParseInt(value, 10, 64)
		if err != nil || samples < 0 {
			return p.errorf("bad sample count %q", value)
		}
		audio.TotalSamples = samples
	default:
		return p.errorf("unknown audio info key %q", key)
	}
	return nil
}

func (p *parser) openChannelStorage() error {
	audio := p.media.Audio
	if audio.SampleRate == 0 || audio.Channels == 0 {
		return p.errorf("incomplete audio info block")
	}
	audio.ChannelData = make([][]float32, audio.Channels)
	p.currentChannel = -1
	return nil
}

func (p *parser) audioChannelLine(line string) error {
	switch {
	case line == "}":
		p.currentChannel = -1
		return nil

	case strings.HasPrefix(line, "C") && strings.HasSuffix(line, "{"):
		number, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(line, "C"), "{"))
		if err != nil || number < 1 || number > p.media.Audio.Channels {
			return p.errorf("bad channel block %q", line)
		}
		p.currentChannel = number - 1
		return nil
	}

	if p.currentChannel < 0 {
		return p.errorf("sample data outside a channel block")
	}
	audio := p.media.Audio
	samples, err := compression.ParseChannel(line, audio.ChannelData[p.currentChannel])
	if err != nil {
		return p.errorf("channel %d: %s", p.currentChannel+1, err)
	}
	audio.ChannelData[p.currentChannel] = samples
	return nil
}

// finish validates cross-block consistency once the input is exhausted.
func (p *parser) finish() error {
	if p.media.Video == nil && p.media.Audio == nil {
		return hmic.ErrMalformedContainer.WithMessage("no info block found")
	}
	if p.state == stateVideoInfo || p.state == stateAudioInfo {
		return hmic.ErrMalformedContainer.WithMessage(
			"input ends inside an info block")
	}
	if p.haveColor || p.currentFrames != nil {
		return hmic.ErrMalformedContainer.WithMessage(
			"input ends inside an unterminated frame block")
	}
	if p.state == stateAudioChannels && p.currentChannel >= 0 {
		return hmic.ErrMalformedContainer.WithMessage(
			"input ends inside an unterminated channel block")
	}
	if audio := p.media.Audio; audio != nil {
		for ch, samples := range audio.ChannelData {
			if int64(len(samples)) != audio.TotalSamples {
				return hmic.ErrMalformedContainer.WithMessage(fmt.Sprintf(
					"channel %d has %d samples, info block declared %d",
					ch+1, len(samples), audio.TotalSamples))
			}
		}
	}
	return nil
}

// parseRGBA parses "rgba(r,g,b,a)" with all four components required and in
// range.
func parseRGBA(s string) (hmic.Pixel, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(s, "rgba("), ")")
	parts := strings.Split(body, ",")
	if len(parts) != 4 {
		return hmic.Pixel{}, fmt.Errorf("bad color %q", s)
	}

	var channels [4]uint8
	for i, part := range parts {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || value < 0 || value > 255 {
			return hmic.Pixel{}, fmt.Errorf("bad color component %q", part)
		}
		channels[i] = uint8(value)
	}
	return hmic.Pixel{R: channels[0], G: channels[1], B: channels[2], A: channels[3]}, nil
}

// parseCommand parses a P= or PL= token back into a 0-based command. Line
// commands must be horizontal and left-to-right.
func parseCommand(token string) (hmic.Command, error) {
	if rest, ok := strings.CutPrefix(token, "PL="); ok {
		from, to, found := strings.Cut(rest, "-")
		if !found {
			return hmic.Command{}, fmt.Errorf("bad line command %q", token)
		}
		x1, y1, err := parsePoint(from)
		if err != nil {
			return hmic.Command{}, err
		}
		x2, y2, err := parsePoint(to)
		if err != nil {
			return hmic.Command{}, err
		}
		if y1 != y2 || x2 < x1 {
			return hmic.Command{}, fmt.Errorf("non-horizontal line command %q", token)
		}
		return hmic.Command{Kind: hmic.Line, StartX: x1, EndX: x2, Y: y1}, nil
	}

	rest := strings.TrimPrefix(token, "P=")
	x, y, err := parsePoint(rest)
	if err != nil {
		return hmic.Command{}, err
	}
	return hmic.Command{Kind: hmic.Point, StartX: x, EndX: x, Y: y}, nil
}

// parsePoint parses a 1-based "XxY" coordinate pair into 0-based values.
func parsePoint(s string) (int, int, error) {
	xs, ys, found := strings.Cut(s, "x")
	if !found {
		return 0, 0, fmt.Errorf("bad coordinate %q", s)
	}
	x, err := strconv.Atoi(xs)
	if err != nil || x < 1 {
		return 0, 0, fmt.Errorf("bad x coordinate %q", xs)
	}
	y, err := strconv.Atoi(ys)
	if err != nil || y < 1 {
		return 0, 0, fmt.Errorf("bad y coordinate %q", ys)
	}
	return x - 1, y - 1, nil
}
