package monitor

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"ember/hal"
	"ember/kernel"

	"tinygo.org/x/tinyfont"
)

// TrapLines formats a trap for the trap screen and the log.
func TrapLines(tr *kernel.Trap) []string {
	lines := []string{
		"kernel trap",
		fmt.Sprintf("task: %d", tr.Task),
		fmt.Sprintf("kind: %s", tr.Kind),
		"msg: " + tr.Msg,
	}
	if len(tr.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(tr.Stack), "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, strings.ReplaceAll(line, "\t", "  "))
	}
	return lines
}

// RenderTrap paints the trap screen: the trap lines wrapped to the framebuffer width, black
// on white, cut off at the bottom edge.
func RenderTrap(fb hal.Framebuffer, tr *kernel.Trap) error {
	if fb.Format() != hal.PixelFormatRGB565 {
		return hal.ErrNotImplemented
	}
	fb.ClearRGB(255, 255, 255)

	_, outbox := tinyfont.LineWidth(font, "0")
	charWidth := int16(outbox)
	if charWidth <= 0 {
		charWidth = 4
	}
	cols := int16(fb.Width()) / charWidth
	if cols <= 0 {
		cols = 1
	}

	d := fbDisplay{fb: fb}
	fg := color.RGBA{A: 255}
	y := int16(lineHeight)
	maxY := int16(fb.Height())
	for _, line := range TrapLines(tr) {
		for len(line) > 0 {
			if y > maxY {
				return fb.Present()
			}
			chunk, rest := takeRunes(line, cols)
			tinyfont.WriteLine(d, font, 0, y, chunk, fg)
			y += lineHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
	return fb.Present()
}

func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if int64(len(s)) <= int64(n) {
		return s, ""
	}
	var i int
	var count int16
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		if size <= 0 {
			break
		}
		i += size
		count++
	}
	if i >= len(s) {
		return s, ""
	}
	return s[:i], s[i:]
}
