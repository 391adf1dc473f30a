package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/urfave/cli/v2"

	"github.com/hmic-media/hmic"
	"github.com/hmic-media/hmic/compression"
	"github.com/hmic-media/hmic/container/fast"
	"github.com/hmic-media/hmic/container/text"
	"github.com/hmic-media/hmic/player"
)

func main() {
	app := cli.App{
		Usage: "Convert and inspect HMIC media containers",
		Commands: []*cli.Command{
			{
				Name:      "convert",
				Usage:     "Convert between text and binary containers",
				Action:    convertContainer,
				ArgsUsage: "INPUT  OUTPUT",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "compress",
						Usage: "zstd-compress the output payloads",
					},
					&cli.Float64Flag{
						Name:  "epsilon",
						Usage: "audio quantization tolerance",
						Value: compression.DefaultEpsilon,
					},
					&cli.BoolFlag{
						Name:  "loop",
						Usage: "mark the visual stream as looping",
					},
				},
			},
			{
				Name:      "info",
				Usage:     "Print the header of a binary container",
				Action:    printInfo,
				ArgsUsage: "INPUT",
			},
			{
				Name:      "stats",
				Usage:     "Report per-frame storage statistics as CSV",
				Action:    printStats,
				ArgsUsage: "INPUT",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "output",
						Usage: "write the report here instead of stdout",
					},
				},
			},
			{
				Name:      "bench",
				Usage:     "Decode a binary container as fast as possible",
				Action:    benchContainer,
				ArgsUsage: "INPUT",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "every-n",
						Usage: "present only every Nth frame",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "preload",
						Usage: "decompress this many frames before timing starts",
					},
					&cli.StringFlag{
						Name:  "log-level",
						Usage: "debug, info, warn or error",
						Value: "info",
					},
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func convertContainer(context *cli.Context) error {
	if context.NArg() != 2 {
		return fmt.Errorf("expected INPUT and OUTPUT arguments")
	}
	input := context.Args().Get(0)
	output := context.Args().Get(1)

	switch strings.ToLower(filepath.Ext(output)) {
	case ".hmicfast":
		return textToFast(input, output, context.Bool("compress"))
	case ".hmic", ".hmica", ".hmicav":
		return fastToText(
			input, output, context.Bool("compress"),
			context.Float64("epsilon"), context.Bool("loop"))
	}
	return fmt.Errorf("cannot tell the output format from %q", output)
}

// textToFast renders every frame of a text container back into raw pixels
// and lays them out as a binary container.
func textToFast(input, output string, compress bool) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	media, err := text.Decode(data)
	if err != nil {
		return err
	}
	if media.Video == nil {
		return hmic.ErrMalformedContainer.WithMessage(
			"input has no visual stream to convert")
	}

	info := media.Video.Info
	frames := make([][]hmic.Pixel, len(media.Video.Frames))
	for i, commands := range media.Video.Frames {
		frames[i], err = compression.RenderFrame(commands, info.Width, info.Height)
		if err != nil {
			return err
		}
	}

	outFile, err := os.Create(output)
	if err != nil {
		return err
	}
	defer outFile.Close()
	return fast.Write(outFile, info, frames, media.Audio, compress)
}

// fastToText re-extracts run commands from a binary container's frames and
// emits the text rendition the output extension asks for.
func fastToText(input, output string, compress bool, epsilon float64, loop bool) error {
	reader, err := fast.Open(input)
	if err != nil {
		return err
	}
	defer reader.Close()

	header := reader.Header()
	audio := audioFromReader(reader)

	var visual []byte
	wantVisual := strings.ToLower(filepath.Ext(output)) != ".hmica"
	if wantVisual {
		info := header.VideoInfo()
		info.Loop = loop
		frames := make([][]hmic.Pixel, reader.FrameCount())
		for i := range frames {
			if frames[i], err = reader.Frame(i); err != nil {
				return err
			}
		}
		commands := compression.ExtractFrames(frames, info.Width, info.Height)
		visual = text.EncodeVisual(info, compression.CompressTemporal(commands))
	}

	var out []byte
	switch strings.ToLower(filepath.Ext(output)) {
	case ".hmic":
		out = visual
	case ".hmica":
		if audio == nil {
			return hmic.ErrNoAudio
		}
		out = text.EncodeAudio(audio, epsilon)
	default:
		var audioText []byte
		if audio != nil {
			audioText = text.EncodeAudio(audio, epsilon)
		}
		out = text.EncodeCombined(visual, audioText, compress)
	}
	return os.WriteFile(output, out, 0o644)
}

// audioFromReader rebuilds the per-channel sample buffers from the mapped
// audio blob, or nil when the container has none.
func audioFromReader(reader *fast.Reader) *hmic.AudioBuffer {
	info, err := reader.AudioInfo()
	if err != nil {
		return nil
	}

	buffer := &hmic.AudioBuffer{AudioInfo: info}
	buffer.ChannelData = make([][]float32, info.Channels)
	for ch := range buffer.ChannelData {
		buffer.ChannelData[ch] = make([]float32, info.TotalSamples)
	}
	for i := int64(0); i < info.TotalSamples; i++ {
		for ch := 0; ch < info.Channels; ch++ {
			buffer.ChannelData[ch][i] =
				reader.AudioAt(i*int64(info.Channels) + int64(ch))
		}
	}
	return buffer
}

func printInfo(context *cli.Context) error {
	if context.NArg() != 1 {
		return fmt.Errorf("expected exactly one INPUT argument")
	}

	file, err := os.Open(context.Args().First())
	if err != nil {
		return err
	}
	defer file.Close()

	raw := make([]byte, fast.HeaderSize)
	if _, err := io.ReadFull(file, raw); err != nil {
		return hmic.ErrTruncatedContainer.Wrap(err)
	}
	header, err := fast.UnmarshalHeader(raw)
	if err != nil {
		return err
	}

	fmt.Printf("resolution:  %dx%d\n", header.Width, header.Height)
	fmt.Printf("fps:         %d\n", header.FPS)
	fmt.Printf("frames:      %d\n", header.TotalFrames)
	fmt.Printf("compressed:  %t\n", header.Compressed)
	if header.HasAudio {
		fmt.Printf("audio:       %d Hz, %d channel(s), %d samples\n",
			header.AudioSampleRate, header.AudioChannels, header.AudioSamples)
	} else {
		fmt.Printf("audio:       none\n")
	}
	return nil
}

func printStats(context *cli.Context) error {
	if context.NArg() != 1 {
		return fmt.Errorf("expected exactly one INPUT argument")
	}

	reader, err := fast.Open(context.Args().First())
	if err != nil {
		return err
	}
	defer reader.Close()

	out := io.Writer(os.Stdout)
	if path := context.String("output"); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	stats := reader.Stats()
	return gocsv.Marshal(&stats, out)
}

// benchContainer runs the playback engine in step mode over every frame
// once and reports the decode rate.
func benchContainer(context *cli.Context) error {
	if context.NArg() != 1 {
		return fmt.Errorf("expected exactly one INPUT argument")
	}

	reader, err := fast.Open(context.Args().First())
	if err != nil {
		return err
	}
	defer reader.Close()

	engine, err := player.New(reader, nil, player.Options{
		Present:       player.PresentPolicy{EveryN: context.Int("every-n")},
		PreloadFrames: context.Int("preload"),
		Logger:        player.NewLogger(context.String("log-level")),
	})
	if err != nil {
		return err
	}

	total := reader.FrameCount()
	start := time.Now()
	for i := 0; i < total; i++ {
		if err := engine.Step(); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("decoded %d frames in %s (%.1f frames/s)\n",
		total, elapsed.Round(time.Millisecond),
		float64(total)/elapsed.Seconds())
	return nil
}
