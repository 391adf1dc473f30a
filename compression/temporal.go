package compression

import (
	"github.com/boljen/go-bitmap"

	"github.com/hmic-media/hmic"
)

// SharedBlock is one group of temporally deduplicated commands: every
// command in Entries occurs identically in every frame of Frames. Frames is
// sorted ascending and always starts at the frame after the run's origin;
// the origin frame keeps its copy in its residual set.
type SharedBlock struct {
	Frames  []int
	Entries map[hmic.Pixel][]hmic.Command
}

// Result is the output of temporal compression: the shared blocks plus, per
// frame, whatever commands no run claimed.
type Result struct {
	Shared   []SharedBlock
	Residual []hmic.FrameCommands
}

// frameState is the per-frame bookkeeping the claiming pass needs: a dense
// index for every command in the frame and a claim bitmap over those
// indices.
type frameState struct {
	commands hmic.FrameCommands
	colors   []hmic.Pixel
	// base maps a color to the dense index of its first command; command j
	// of that color has index base[color]+j.
	base    map[hmic.Pixel]int
	claimed bitmap.Bitmap
}

func newFrameState(commands hmic.FrameCommands) *frameState {
	state := &frameState{
		commands: commands,
		colors:   commands.Colors(),
		base:     make(map[hmic.Pixel]int, len(commands)),
	}
	next := 0
	for _, color := range state.colors {
		state.base[color] = next
		next += len(commands[color])
	}
	state.claimed = bitmap.NewSlice(next)
	return state
}

// findUnclaimed returns the dense index of an unclaimed command for color
// with the given geometry, or -1 if the frame has none.
func (fs *frameState) findUnclaimed(color hmic.Pixel, want hmic.Command) int {
	base, ok := fs.base[color]
	if !ok {
		return -1
	}
	for j, candidate := range fs.commands[color] {
		if candidate == want && !fs.claimed.Get(base+j) {
			return base + j
		}
	}
	return -1
}

// CompressTemporal runs the greedy forward claiming pass over a frame
// sequence. For each frame in order, each still-unclaimed (color, command)
// pair tries to extend forward through consecutive frames; every forward
// match is claimed, and a run with at least one match is recorded as a
// shared block over the matched frames. The originating frame is never
// claimed, so its residual set still carries the command.
//
// Colors are visited in ascending pixel order and commands in extraction
// order, which makes the output deterministic for identical input. The
// algorithm needs global visibility across all frames, so unlike row
// extraction it runs single-threaded over the merged data.
func CompressTemporal(frames []hmic.FrameCommands) Result {
	states := make([]*frameState, len(frames))
	for i, commands := range frames {
		states[i] = newFrameState(commands)
	}

	// Shared blocks are grouped by the exact frame set a run covers, in
	// first-appearance order.
	blockIndex := make(map[string]int)
	var shared []SharedBlock

	for f := 0; f < len(frames)-1; f++ {
		state := states[f]
		for _, color := range state.colors {
			for i, command := range state.commands[color] {
				if state.claimed.Get(state.base[color] + i) {
					continue
				}

				var matched []int
				for g := f + 1; g < len(frames); g++ {
					idx := states[g].findUnclaimed(color, command)
					if idx < 0 {
						break
					}
					states[g].claimed.Set(idx, true)
					matched = append(matched, g)
				}
				if len(matched) == 0 {
					continue
				}

				key := CollapseFrameRange(matched)
				pos, ok := blockIndex[key]
				if !ok {
					pos = len(shared)
					blockIndex[key] = pos
					shared = append(shared, SharedBlock{
						Frames:  matched,
						Entries: make(map[hmic.Pixel][]hmic.Command),
					})
				}
				shared[pos].Entries[color] = append(shared[pos].Entries[color], command)
			}
		}
	}

	residual := make([]hmic.FrameCommands, len(frames))
	for f, state := range states {
		residual[f] = make(hmic.FrameCommands)
		for _, color := range state.colors {
			base := state.base[color]
			for i, command := range state.commands[color] {
				if !state.claimed.Get(base + i) {
					residual[f][color] = append(residual[f][color], command)
				}
			}
		}
	}

	return Result{Shared: shared, Residual: residual}
}
