package compression

import (
	"fmt"

	"github.com/hmic-media/hmic"
)

// RenderFrame rasterizes a frame's command set back into a row-major RGBA
// pixel buffer of width*height entries. It is the inverse of ExtractFrame:
// rendering an extracted frame reproduces the source pixels exactly, since
// extraction covers every pixel. Commands outside the frame bounds are
// rejected rather than clipped.
func RenderFrame(commands hmic.FrameCommands, width, height int) ([]hmic.Pixel, error) {
	frame := make([]hmic.Pixel, width*height)
	for color, list := range commands {
		for _, cmd := range list {
			if cmd.Y < 0 || cmd.Y >= height || cmd.StartX < 0 || cmd.EndX >= width ||
				cmd.StartX > cmd.EndX {
				return nil, hmic.ErrMalformedContainer.WithMessage(fmt.Sprintf(
					"command [%d, %d] on row %d outside %dx%d frame",
					cmd.StartX, cmd.EndX, cmd.Y, width, height))
			}
			row := frame[cmd.Y*width:]
			for x := cmd.StartX; x <= cmd.EndX; x++ {
				row[x] = color
			}
		}
	}
	return frame, nil
}
