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
	"testing"
)

func rampCube(width, height int32) *Cube {
	c:=NewCube(width, height, 1, nil)
	for i:=range c.Data { c.Data[i]=float32(i+1) }
	return c
}

func TestRotateZeroKeepsInterior(t *testing.T) {
	c:=rampCube(5, 5)
	res:=c.Rotate(0, 0)
	// bilinear taps at the right and bottom rim read outside the source,
	// so only the interior is guaranteed
	for y:=int32(0); y<4; y++ {
		for x:=int32(0); x<4; x++ {
			i:=y*5+x
			if d:=math.Abs(float64(res.Data[i]-c.Data[i])); d>1e-4 {
				t.Errorf("pixel (%d,%d)=%v, expected %v", x, y, res.Data[i], c.Data[i])
			}
		}
	}
}

func TestRotateQuarterTurn(t *testing.T) {
	c:=NewCube(5, 5, 1, nil)
	c.Data[2*5+1]=7 // one pixel left of center
	res:=c.Rotate(90, 0)
	if d:=math.Abs(float64(res.Data[1*5+2]-7)); d>1e-4 { // expected above center
		t.Errorf("rotated pixel=%v at unexpected location, cube %v", res.Data[1*5+2], res.Data)
	}
}

func TestZoomKeepsCenter(t *testing.T) {
	c:=NewCube(9, 9, 1, nil)
	c.Data[4*9+4]=10
	res:=c.Zoom(0.5, 0)
	if d:=math.Abs(float64(res.Data[4*9+4]-10)); d>1e-3 {
		t.Errorf("zoom moved the center pixel: %v", res.Data[4*9+4])
	}
}

func TestResizeBilinearIdentity(t *testing.T) {
	c:=rampCube(6, 6)
	res:=c.ResizeBilinear(6, 6)
	if !Equal(c, res) {
		t.Errorf("same-size resample changed the image")
	}
}

func TestResizeBilinearDownscalesFlats(t *testing.T) {
	c:=NewCube(8, 8, 2, nil)
	for i:=range c.Data { c.Data[i]=5 }
	res:=c.ResizeBilinear(4, 4)
	if res.Width!=4 || res.Height!=4 || res.Channels!=2 {
		t.Fatalf("unexpected dimensions %s", res.DimensionsToString())
	}
	for i, v:=range res.Data {
		if d:=math.Abs(float64(v-5)); d>1e-5 {
			t.Errorf("downscaled flat image value [%d]=%v", i, v)
		}
	}
}
