package gesture

import (
	"math"

	"github.com/sweeney/magic-clock/internal/logic"
)

// keypadRows is the 4x3 keypad layout.
var keypadRows = [4][3]logic.Key{
	{'1', '2', '3'},
	{'4', '5', '6'},
	{'7', '8', '9'},
	{logic.KeyPlus, logic.KeyZero, logic.KeyMinus},
}

// Keypad maps viewport positions to keys. The grid spans the full width and
// the height left between the top and bottom padding.
type Keypad struct {
	// TopPad and BottomPad are fractions of the viewport height.
	TopPad    float64
	BottomPad float64
}

// DefaultKeypad returns the standard layout.
func DefaultKeypad() Keypad {
	return Keypad{TopPad: 0.08, BottomPad: 0.05}
}

// Cell is one key's rectangle in viewport pixels.
type Cell struct {
	Key        logic.Key
	X, Y, W, H float64
}

// Center returns the middle of the cell.
func (c Cell) Center() (x, y float64) {
	return c.X + c.W/2, c.Y + c.H/2
}

// KeyAt returns the key under (x, y) on a width x height viewport.
func (k Keypad) KeyAt(x, y, width, height float64) (logic.Key, bool) {
	if width <= 0 || height <= 0 {
		return 0, false
	}
	top := height * k.TopPad
	rowH := (height - top - height*k.BottomPad) / 4
	colW := width / 3
	if rowH <= 0 {
		return 0, false
	}

	row := int(math.Floor((y - top) / rowH))
	col := int(math.Floor(x / colW))
	if row < 0 || row > 3 || col < 0 || col > 2 {
		return 0, false
	}
	return keypadRows[row][col], true
}

// Cells returns the twelve key rectangles, row by row.
func (k Keypad) Cells(width, height float64) []Cell {
	top := height * k.TopPad
	rowH := (height - top - height*k.BottomPad) / 4
	colW := width / 3

	cells := make([]Cell, 0, 12)
	for r, row := range keypadRows {
		for c, key := range row {
			cells = append(cells, Cell{
				Key: key,
				X:   float64(c) * colW,
				Y:   top + float64(r)*rowH,
				W:   colW,
				H:   rowH,
			})
		}
	}
	return cells
}
