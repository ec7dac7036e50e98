// Copyright (C) 2023 Carlo Verona
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package cube

import (
	"bufio"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"
	"os"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Write a false-colour preview of the cube to JPG, using the given min and max.
// Each channel is assigned a hue on an evenly spaced ramp and the channels are
// additively blended; a single-channel cube renders as grayscale.
func (c *Cube) WriteJPGToFile(fileName string, min, max float32, quality int) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	return c.WriteJPG(writer, min, max, quality)
}

// Write a false-colour preview of the cube to JPG, using the given min and max.
func (c *Cube) WriteJPG(writer io.Writer, min, max float32, quality int) error {
	width, height := int(c.Width), int(c.Height)
	img := image.NewRGBA(image.Rectangle{image.Point{0, 0}, image.Point{width, height}})
	scale := 1.0 / (max - min)

	// hue ramp across channels, e.g. 3 channels map to 0, 120, 240 degrees
	hues := make([]colorful.Color, c.Channels)
	for ch := int32(0); ch < c.Channels; ch++ {
		if c.Channels == 1 {
			hues[ch] = colorful.Color{R: 1, G: 1, B: 1}
		} else {
			hues[ch] = colorful.Hsv(float64(ch)*360.0/float64(c.Channels), 1, 1)
		}
	}

	size := width * height
	for y := 0; y < height; y++ {
		yoffset := y * width
		for x := 0; x < width; x++ {
			r, g, b := 0.0, 0.0, 0.0
			for ch := int32(0); ch < c.Channels; ch++ {
				v := c.Data[int(ch)*size+yoffset+x]
				v = (v - min) * scale
				// replace NaNs with zeros for export, else JPG output breaks
				if math.IsNaN(float64(v)) || v < 0 {
					v = 0
				}
				if v > 1 {
					v = 1
				}
				r += float64(v) * hues[ch].R
				g += float64(v) * hues[ch].G
				b += float64(v) * hues[ch].B
			}
			if r > 1 {
				r = 1
			}
			if g > 1 {
				g = 1
			}
			if b > 1 {
				b = 1
			}
			img.SetRGBA(x, y, color.RGBA{uint8(r * 255), uint8(g * 255), uint8(b * 255), 255})
		}
	}

	return jpeg.Encode(writer, img, &jpeg.Options{Quality: quality})
}
