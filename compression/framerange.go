package compression

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hmic-media/hmic"
)

// CollapseFrameRange encodes a strictly increasing frame index sequence as a
// frame-range descriptor: maximal contiguous runs become inclusive dashed
// ranges, everything else stays a single index, all comma separated.
// [1 2 3 5 7 8 9] collapses to "1-3,5,7-9".
func CollapseFrameRange(frames []int) string {
	if len(frames) == 0 {
		return ""
	}

	var parts []string
	start, end := frames[0], frames[0]
	flush := func() {
		if start == end {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, end))
		}
	}

	for _, frame := range frames[1:] {
		if frame == end+1 {
			end = frame
			continue
		}
		flush()
		start, end = frame, frame
	}
	flush()

	return strings.Join(parts, ",")
}

// ExpandFrameRange decodes a frame-range descriptor back into the individual
// frame indices it covers. Malformed numerics or descending ranges are
// rejected with [hmic.ErrMalformedToken].
func ExpandFrameRange(descriptor string) ([]int, error) {
	var frames []int

	for _, part := range strings.Split(descriptor, ",") {
		dash := strings.IndexByte(part, '-')
		if dash < 0 {
			index, err := strconv.Atoi(part)
			if err != nil {
				return nil, hmic.ErrMalformedToken.WithMessage(
					fmt.Sprintf("bad frame index %q", part))
			}
			frames = append(frames, index)
			continue
		}

		start, err := strconv.Atoi(part[:dash])
		if err != nil {
			return nil, hmic.ErrMalformedToken.WithMessage(
				fmt.Sprintf("bad frame range %q", part))
		}
		end, err := strconv.Atoi(part[dash+1:])
		if err != nil || end < start {
			return nil, hmic.ErrMalformedToken.WithMessage(
				fmt.Sprintf("bad frame range %q", part))
		}
		for i := start; i <= end; i++ {
			frames = append(frames, i)
		}
	}

	return frames, nil
}
