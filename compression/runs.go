package compression

import (
	"runtime"
	"sync"

	"github.com/hmic-media/hmic"
)

// ExtractRows scans rows [startRow, endRow) of a row-major frame and returns
// the run commands found there, keyed by color. Within each color the
// commands appear in scan order (top to bottom, left to right).
//
// The function has no side effects and touches nothing outside the returned
// map, so disjoint row ranges of the same frame can be scanned concurrently
// and merged afterwards.
func ExtractRows(pixels []hmic.Pixel, width, startRow, endRow int) hmic.FrameCommands {
	commands := make(hmic.FrameCommands)

	for y := startRow; y < endRow; y++ {
		row := pixels[y*width : (y+1)*width]
		x := 0
		for x < width {
			color := row[x]
			runLength := 1
			for x+runLength < width && row[x+runLength] == color {
				runLength++
			}

			command := hmic.Command{
				Kind:   hmic.Line,
				StartX: x,
				EndX:   x + runLength - 1,
				Y:      y,
			}
			if runLength == 1 {
				command.Kind = hmic.Point
			}

			commands[color] = append(commands[color], command)
			x += runLength
		}
	}

	return commands
}

// ExtractFrame scans one whole frame, fanning the rows out over one worker
// goroutine per CPU. Each worker fills a private map; the maps are merged in
// worker order once all workers have finished, so the concatenated per-color
// lists stay in scan order.
func ExtractFrame(pixels []hmic.Pixel, width, height int) hmic.FrameCommands {
	workers := runtime.NumCPU()
	if workers > height {
		workers = height
	}
	if workers <= 1 {
		return ExtractRows(pixels, width, 0, height)
	}

	rowsPerWorker := height / workers
	results := make([]hmic.FrameCommands, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		startRow := w * rowsPerWorker
		endRow := startRow + rowsPerWorker
		if w == workers-1 {
			endRow = height
		}

		wg.Add(1)
		go func(slot, startRow, endRow int) {
			defer wg.Done()
			results[slot] = ExtractRows(pixels, width, startRow, endRow)
		}(w, startRow, endRow)
	}
	wg.Wait()

	merged := make(hmic.FrameCommands)
	for _, result := range results {
		merged.Merge(result)
	}
	return merged
}

// ExtractFrames runs ExtractFrame over every frame of a sequence.
func ExtractFrames(frames [][]hmic.Pixel, width, height int) []hmic.FrameCommands {
	out := make([]hmic.FrameCommands, len(frames))
	for i, frame := range frames {
		out[i] = ExtractFrame(frame, width, height)
	}
	return out
}
