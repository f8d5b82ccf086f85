package web

import (
	"image"
	"image/color"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/sweeney/magic-clock/internal/gesture"
	"github.com/sweeney/magic-clock/internal/status"
)

// Base resolution of the face; the PNG is scaled up by snapshotScale.
const (
	faceW         = 200
	faceH         = 350
	snapshotScale = 2
)

// RenderFace draws the display for snap in a small portrait grayscale image.
func RenderFace(snap status.Snapshot) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, faceW, faceH))
	xdraw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: 0}), image.Point{}, xdraw.Src)

	face := snap.Face()
	if !face.Dark {
		lineH := basicfont.Face7x13.Metrics().Height.Ceil() + 4
		y := faceH/4 - (len(face.Lines)*lineH)/2
		for _, line := range face.Lines {
			y += lineH
			centered(img, y, line, 255)
		}
	}

	if face.KeypadAlpha > 0 {
		ink := uint8(face.KeypadAlpha * 200)
		for _, c := range gesture.DefaultKeypad().Cells(faceW, faceH) {
			cx, cy := c.Center()
			text(img, int(cx)-3, int(cy)+4, c.Key.String(), ink)
		}
	}
	return img
}

// WritePNG writes the face scaled up for viewing.
func WritePNG(w io.Writer, snap status.Snapshot) error {
	small := RenderFace(snap)
	big := image.NewGray(image.Rect(0, 0, faceW*snapshotScale, faceH*snapshotScale))
	xdraw.NearestNeighbor.Scale(big, big.Bounds(), small, small.Bounds(), xdraw.Src, nil)
	return png.Encode(w, big)
}

func centered(img *image.Gray, y int, s string, fg uint8) {
	width := font.MeasureString(basicfont.Face7x13, s).Ceil()
	text(img, (img.Bounds().Dx()-width)/2, y, s, fg)
}

func text(img *image.Gray, x, y int, s string, fg uint8) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Gray{Y: fg}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
