package market

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"
)

const (
	gaugeWidth  = 600
	gaugeHeight = 340
	gaugeOuter  = 260.0
	gaugeInner  = 170.0
)

var gaugeBands = []struct {
	upTo float64
	fill color.RGBA
}{
	{25, color.RGBA{0xd3, 0x2f, 0x2f, 0xff}},
	{45, color.RGBA{0xf5, 0x7c, 0x00, 0xff}},
	{55, color.RGBA{0xfb, 0xc0, 0x2d, 0xff}},
	{75, color.RGBA{0x7c, 0xb3, 0x42, 0xff}},
	{100, color.RGBA{0x38, 0x8e, 0x3c, 0xff}},
}

// GaugeFileName is the per-day gauge image name the chat reports look up.
func GaugeFileName(day time.Time) string {
	return "half_circle_gauge_" + day.Format("20060102") + ".png"
}

// RenderGauge draws a half-circle gauge with a needle at score (0..100).
func RenderGauge(w io.Writer, score float64) error {
	score = math.Max(0, math.Min(100, score))
	img := image.NewRGBA(image.Rect(0, 0, gaugeWidth, gaugeHeight))
	cx, cy := float64(gaugeWidth)/2, float64(gaugeHeight)-40

	white := color.RGBA{0xff, 0xff, 0xff, 0xff}
	for y := 0; y < gaugeHeight; y++ {
		for x := 0; x < gaugeWidth; x++ {
			img.Set(x, y, white)
			dx, dy := float64(x)-cx, cy-float64(y)
			if dy < 0 {
				continue
			}
			r := math.Hypot(dx, dy)
			if r < gaugeInner || r > gaugeOuter {
				continue
			}
			// 0 on the left, 100 on the right.
			pos := 100 * (1 - math.Atan2(dy, dx)/math.Pi)
			img.Set(x, y, bandColor(pos))
		}
	}

	needle := color.RGBA{0x21, 0x21, 0x21, 0xff}
	angle := math.Pi * (1 - score/100)
	for t := 0.0; t <= gaugeOuter-10; t += 0.5 {
		px := cx + t*math.Cos(angle)
		py := cy - t*math.Sin(angle)
		for ox := -2; ox <= 2; ox++ {
			for oy := -2; oy <= 2; oy++ {
				img.Set(int(px)+ox, int(py)+oy, needle)
			}
		}
	}
	for y := -10; y <= 10; y++ {
		for x := -10; x <= 10; x++ {
			if x*x+y*y <= 100 {
				img.Set(int(cx)+x, int(cy)+y, needle)
			}
		}
	}

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("market: encode gauge: %w", err)
	}
	return nil
}

func bandColor(pos float64) color.RGBA {
	for _, b := range gaugeBands {
		if pos <= b.upTo {
			return b.fill
		}
	}
	return gaugeBands[len(gaugeBands)-1].fill
}

// SaveGauge renders the gauge into dir and returns the file path.
func SaveGauge(dir string, score float64, day time.Time) (string, error) {
	var buf bytes.Buffer
	if err := RenderGauge(&buf, score); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("market: create image dir: %w", err)
	}
	path := filepath.Join(dir, GaugeFileName(day))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("market: write gauge: %w", err)
	}
	return path, nil
}
