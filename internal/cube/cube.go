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
	"fmt"
	"math"
)

// A multi-channel image cutout. Pixel data is stored as planar float32
// channels, i.e. Data[ch*Width*Height + y*Width + x].
type Cube struct {
	ID       int         // Sequential ID number, for log output. Counted upwards from 0
	FileName string      // Original file name, if any, for log output

	Width    int32       `json:"width"`
	Height   int32       `json:"height"`
	Channels int32       `json:"channels"`

	Data     []float32   `json:"data"`
}

// Creates a cube of the given dimensions. Data is not copied, allocated if nil
func NewCube(width, height, channels int32, data []float32) *Cube {
	if data==nil {
		data=make([]float32, width*height*channels)
	}
	return &Cube{
		Width   : width,
		Height  : height,
		Channels: channels,
		Data    : data,
	}
}

// Creates a cube with the same dimensions and metadata as the given one.
// A new data array is allocated
func NewCubeFromCube(src *Cube) *Cube {
	return &Cube{
		ID      : src.ID,
		FileName: src.FileName,
		Width   : src.Width,
		Height  : src.Height,
		Channels: src.Channels,
		Data    : make([]float32, len(src.Data)),
	}
}

// Returns a deep copy of the cube
func (c *Cube) Clone() *Cube {
	res:=NewCubeFromCube(c)
	copy(res.Data, c.Data)
	return res
}

// Returns the pixel data of the given channel as a slice view, not a copy
func (c *Cube) Channel(ch int32) []float32 {
	l:=c.Width*c.Height
	return c.Data[ch*l:(ch+1)*l]
}

func (c *Cube) Pixels() int32 { return c.Width*c.Height }

func (c *Cube) DimensionsToString() string {
	return fmt.Sprintf("%dx%dx%d", c.Width, c.Height, c.Channels)
}

// Reports whether a pixel value carries signal. Pixels that are exactly zero,
// NaN or infinite are masked by convention and excluded from all statistics
func Valid(v float32) bool {
	v64:=float64(v)
	return v!=0 && !math.IsNaN(v64) && !math.IsInf(v64, 0)
}

// Gathers the valid pixels of the given slice into dst, growing it as needed.
// Returns the filled prefix of dst
func GatherValid(data []float32, dst []float32) []float32 {
	dst=dst[:0]
	for _,v:=range data {
		if Valid(v) {
			dst=append(dst, v)
		}
	}
	return dst
}

// Sets dst to zero at every coordinate where ref is invalid.
// dst and ref must have the same length
func RestoreInvalid(dst, ref []float32) {
	for i,v:=range ref {
		if !Valid(v) {
			dst[i]=0
		}
	}
}

// A centered axis-aligned pixel box, end-exclusive
type Box struct {
	XMin, XMax int32
	YMin, YMax int32
}

// Returns the centered box covering the given fraction of the width and
// height, matching the mask box convention of the stage configuration surface
func CenterBox(width, height int32, fract float32) Box {
	xc, yc:=width/2, height/2
	dx:=int32(float32(width )*fract/2)
	dy:=int32(float32(height)*fract/2)
	return Box{XMin: xc-dx, XMax: xc+dx, YMin: yc-dy, YMax: yc+dy}
}

func (b Box) Contains(x, y int32) bool {
	return x>=b.XMin && x<b.XMax && y>=b.YMin && y<b.YMax
}

// Gathers the valid pixels of the given channel slice that lie inside the box
func GatherValidInBox(data []float32, width int32, b Box, dst []float32) []float32 {
	dst=dst[:0]
	height:=int32(len(data))/width
	for y:=int32(0); y<height; y++ {
		if y<b.YMin || y>=b.YMax { continue }
		row:=data[y*width:(y+1)*width]
		for x:=b.XMin; x<b.XMax && x<width; x++ {
			if x<0 { continue }
			if v:=row[x]; Valid(v) {
				dst=append(dst, v)
			}
		}
	}
	return dst
}

// Gathers the valid pixels of the given channel slice that lie outside the box
func GatherValidOutsideBox(data []float32, width int32, b Box, dst []float32) []float32 {
	dst=dst[:0]
	height:=int32(len(data))/width
	for y:=int32(0); y<height; y++ {
		row:=data[y*width:(y+1)*width]
		for x:=int32(0); x<width; x++ {
			if b.Contains(x, y) { continue }
			if v:=row[x]; Valid(v) {
				dst=append(dst, v)
			}
		}
	}
	return dst
}

// Equal tells whether a and b have identical dimensions and bitwise identical
// pixel data. NaNs compare as equal to support masked-pixel comparisons
func Equal(a, b *Cube) bool {
	if a.Width!=b.Width || a.Height!=b.Height || a.Channels!=b.Channels { return false }
	for i,v:=range a.Data {
		w:=b.Data[i]
		if v!=w && !(math.IsNaN(float64(v)) && math.IsNaN(float64(w))) { return false }
	}
	return true
}
