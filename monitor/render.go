package monitor

import (
	"fmt"
	"image/color"

	"ember/hal"
	"ember/kernel"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
)

const lineHeight = 8

var (
	fgColor   = color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	critColor = color.RGBA{R: 0xFF, G: 0xA0, B: 0x20, A: 0xFF}
	font      = &tinyfont.TomThumb
)

// View is one frame of the task table.
type View struct {
	Title string
	Now   kernel.Tick
	Stats kernel.Stats
	Tasks []kernel.TaskInfo
}

// Header returns the summary lines above the task rows.
func (v View) Header() []string {
	return []string{
		fmt.Sprintf("%s  tick %d  tasks %d", v.Title, v.Now, len(v.Tasks)),
		fmt.Sprintf("disp %d  wait %d  tmo %d  idle %d", v.Stats.Dispatches, v.Stats.Waits, v.Stats.Timeouts, v.Stats.Idles),
		"ID ST   C STACK      DISP",
	}
}

// Row formats one task.
func Row(t kernel.TaskInfo) string {
	crit := '-'
	if t.Critical {
		crit = 'C'
	}
	return fmt.Sprintf("%2d %-4s %c %5d+%-4d %d", t.ID, stateCode(t.State), crit, t.StackBase, t.StackCells, t.Dispatches)
}

func stateCode(s kernel.State) string {
	switch s {
	case kernel.StateReady:
		return "rdy"
	case kernel.StateRunning:
		return "run"
	case kernel.StateWaiting:
		return "wait"
	default:
		return "term"
	}
}

// Draw writes the view onto d, one text line per row, starting at the top.
func Draw(d drivers.Displayer, v View) {
	_, h := d.Size()
	y := int16(lineHeight)
	for _, line := range v.Header() {
		if y > h {
			return
		}
		tinyfont.WriteLine(d, font, 0, y, line, fgColor)
		y += lineHeight
	}
	for _, t := range v.Tasks {
		if y > h {
			return
		}
		c := fgColor
		if t.Critical {
			c = critColor
		}
		tinyfont.WriteLine(d, font, 0, y, Row(t), c)
		y += lineHeight
	}
}

// Render clears fb, draws the view and presents the frame.
func Render(fb hal.Framebuffer, v View) error {
	if fb.Format() != hal.PixelFormatRGB565 {
		return hal.ErrNotImplemented
	}
	fb.ClearRGB(0x10, 0x10, 0x18)
	Draw(fbDisplay{fb: fb}, v)
	return fb.Present()
}
