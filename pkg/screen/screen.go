// Package screen draws the tuning overlay on the robot's 128x128 LCD.
package screen

import (
	"context"
	"image"
	"os"
	"time"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"

	"github.com/jemminiz/EZ-Template/pkg/log"
)

const (
	Size       = 128
	lineHeight = 14
	margin     = 3
)

// RefreshInterval is how often the screen is redrawn.
const RefreshInterval = 100 * time.Millisecond

// Render draws one line of text per row, top to bottom.  Lines that do not
// fit are dropped.
func Render(lines []string) image.Image {
	dc := gg.NewContext(Size, Size)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	dc.SetRGBA(1, 0.9, 0, 1)
	for i, l := range lines {
		y := float64(margin + (i+1)*lineHeight)
		if y > Size {
			break
		}
		dc.DrawString(l, margin, y-3)
	}
	return dc.Image()
}

// Encode converts img to the panel's RGB565 format.  The panel is mounted
// rotated, so columns of the image become rows of the framebuffer.
func Encode(img image.Image, buf []byte) {
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			r, g, b, _ := img.At(x, y).RGBA() // 16-bit pre-multiplied

			rb := byte(r >> (16 - 5))
			gb := byte(g >> (16 - 6)) // Green has 6 bits
			bb := byte(b >> (16 - 5))

			buf[(127-y)*2+(x)*128*2+1] = (rb << 3) | (gb >> 3)
			buf[(127-y)*2+(x)*128*2] = bb | (gb << 5)
		}
	}
}

// LoopUpdatingScreen redraws lines() on the framebuffer until ctx is done,
// then blanks it.
func LoopUpdatingScreen(ctx context.Context, device string, lines func() []string) {
	logger := log.For("screen").With("device", device)
	f, err := os.OpenFile(device, os.O_RDWR, 0666)
	if err != nil {
		logger.Warn("failed to open screen, ignoring", "error", err)
		return
	}
	defer f.Close()

	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()
	var buf [Size * Size * 2]byte
	for {
		select {
		case <-ctx.Done():
			buf = [Size * Size * 2]byte{}
			if err := write(f, buf[:]); err != nil {
				logger.Warn("failed to blank screen", "error", err)
			}
			return
		case <-ticker.C:
		}
		Encode(Render(lines()), buf[:])
		if err := write(f, buf[:]); err != nil {
			logger.Error("screen failure", "error", err)
			return
		}
	}
}

func write(f *os.File, buf []byte) error {
	if _, err := f.Seek(0, 0); err != nil {
		return errors.Wrap(err, "seeking framebuffer")
	}
	for i := 0; i < Size; i++ {
		if _, err := f.Write(buf[i*Size*2 : (i+1)*Size*2]); err != nil {
			return errors.Wrap(err, "writing framebuffer")
		}
		time.Sleep(10 * time.Microsecond)
	}
	return nil
}
