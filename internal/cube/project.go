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
	"math"
)

// A 2D affine transform. Maps (x,y) to (A*x+B*y+C, D*x+E*y+F)
type Affine2D struct {
	A, B, C float32
	D, E, F float32
}

func IdentityAffine2D() Affine2D {
	return Affine2D{1,0,0, 0,1,0}
}

func (t Affine2D) Apply(x, y float32) (float32, float32) {
	return t.A*x + t.B*y + t.C, t.D*x + t.E*y + t.F
}

// Returns the rotation by the given angle in degrees about the given center
func RotationAbout(cx, cy, degrees float32) Affine2D {
	rad:=float64(degrees)*math.Pi/180
	sin, cos:=float32(math.Sin(rad)), float32(math.Cos(rad))
	return Affine2D{
		A: cos, B: -sin, C: cx - cos*cx + sin*cy,
		D: sin, E:  cos, F: cy - sin*cx - cos*cy,
	}
}

// Returns the uniform scaling by the given factor about the given center
func ScaleAbout(cx, cy, scale float32) Affine2D {
	return Affine2D{
		A: scale, B: 0,     C: cx*(1-scale),
		D: 0,     E: scale, F: cy*(1-scale),
	}
}

// Projects the cube onto a canvas of the given dimensions, sampling each
// destination pixel through the given inverse transform with bilinear
// interpolation. Out of bounds samples are filled with the given value
func (c *Cube) Project(dstWidth, dstHeight int32, invTrans Affine2D, fill float32) *Cube {
	res:=NewCube(dstWidth, dstHeight, c.Channels, nil)
	res.ID, res.FileName = c.ID, c.FileName

	origWidth, origHeight:=c.Width, c.Height
	for ch:=int32(0); ch<c.Channels; ch++ {
		d  :=c.Channel(ch)
		out:=res.Channel(ch)

		for row:=int32(0); row<dstHeight; row++ {
			for col:=int32(0); col<dstWidth; col++ {
				projX, projY:=invTrans.Apply(float32(col), float32(row))

				// perform bilinear interpolation
				xl, yl:=int32(math.Floor(float64(projX))), int32(math.Floor(float64(projY)))
				xh, yh:=xl+1,             yl+1
				xr, yr:=projX-float32(xl), projY-float32(yl)

				if xl<0 || xh>=origWidth || yl<0 || yh>=origHeight {
					out[col + row*dstWidth]=fill
					continue
				}

				xlyl:=xl+yl*origWidth
				xhyl:=xlyl+1          // xh+yl*origWidth
				xlyh:=xlyl+origWidth  // xl+yh*origWidth
				xhyh:=xhyl+origWidth  // xh+yh*origWidth

				vyl:=d[xlyl]*(1-xr) + d[xhyl]*xr
				vyh:=d[xlyh]*(1-xr) + d[xhyh]*xr
				out[col + row*dstWidth]=vyl*(1-yr) + vyh*yr
			}
		}
	}
	return res
}

// Rotates the cube by the given angle in degrees about the canvas center,
// keeping the canvas dimensions and filling uncovered pixels with fill
func (c *Cube) Rotate(degrees, fill float32) *Cube {
	cx, cy:=float32(c.Width-1)/2, float32(c.Height-1)/2
	return c.Project(c.Width, c.Height, RotationAbout(cx, cy, -degrees), fill)
}

// Scales the cube content by the given factor about the canvas center,
// keeping the canvas dimensions and filling uncovered pixels with fill
func (c *Cube) Zoom(scale, fill float32) *Cube {
	cx, cy:=float32(c.Width-1)/2, float32(c.Height-1)/2
	return c.Project(c.Width, c.Height, ScaleAbout(cx, cy, 1/scale), fill)
}

// Resamples the cube to the given canvas dimensions with bilinear interpolation
func (c *Cube) ResizeBilinear(dstWidth, dstHeight int32) *Cube {
	sx:=float32(c.Width) /float32(dstWidth)
	sy:=float32(c.Height)/float32(dstHeight)
	inv:=Affine2D{
		A: sx, B: 0,  C: 0.5*sx - 0.5,
		D: 0,  E: sy, F: 0.5*sy - 0.5,
	}
	res:=c.Project(dstWidth, dstHeight, inv, 0)

	// The half-pixel mapping leaves a sub-pixel rim at the borders where
	// bilinear taps would read outside the source. Clamp the rim samples
	// to the border pixels instead of filling them
	for ch:=int32(0); ch<res.Channels; ch++ {
		d  :=c.Channel(ch)
		out:=res.Channel(ch)
		for row:=int32(0); row<dstHeight; row++ {
			for col:=int32(0); col<dstWidth; col++ {
				px:=inv.A*float32(col)+inv.C
				py:=inv.E*float32(row)+inv.F
				xl, yl:=int32(math.Floor(float64(px))), int32(math.Floor(float64(py)))
				if xl>=0 && xl+1<c.Width && yl>=0 && yl+1<c.Height { continue }
				x:=clampI32(int32(px+0.5), 0, c.Width-1)
				y:=clampI32(int32(py+0.5), 0, c.Height-1)
				out[col+row*dstWidth]=d[x+y*c.Width]
			}
		}
	}
	return res
}

func clampI32(v, lo, hi int32) int32 {
	if v<lo { return lo }
	if v>hi { return hi }
	return v
}
