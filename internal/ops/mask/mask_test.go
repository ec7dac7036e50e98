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


package mask

import (
	"io"
	"testing"
	"github.com/cverona/cutprep/internal/cube"
	"github.com/cverona/cutprep/internal/ops"
)

func testContext() *ops.Context {
	return ops.NewContext(io.Discard)
}

func TestBorderMask(t *testing.T) {
	f:=cube.NewCube(8, 8, 1, nil)
	for i:=range f.Data { f.Data[i]=3 }
	res, err:=NewOpBorderMask(0.5).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }

	box:=cube.CenterBox(8, 8, 0.5)
	for y:=int32(0); y<8; y++ {
		for x:=int32(0); x<8; x++ {
			v:=res.Data[y*8+x]
			if box.Contains(x, y) {
				if v!=3 { t.Errorf("interior pixel (%d,%d)=%v, expected 3", x, y, v) }
			} else {
				if v!=0 { t.Errorf("border pixel (%d,%d)=%v, expected 0", x, y, v) }
			}
		}
	}
}

func TestBorderMaskInvalidFraction(t *testing.T) {
	f:=cube.NewCube(2, 2, 1, nil)
	if _, err:=NewOpBorderMask(0).Apply(f, testContext()); err==nil {
		t.Errorf("expected error for zero fraction")
	}
}

func TestMaskShrink(t *testing.T) {
	// one masked pixel in a field of 5s; a size 3 kernel erodes its cross neighborhood
	f:=cube.NewCube(7, 7, 1, nil)
	for i:=range f.Data { f.Data[i]=5 }
	f.Data[3*7+3]=0
	res, err:=NewOpMaskShrink(3).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }

	for _, i:=range []int32{3*7+3, 3*7+2, 3*7+4, 2*7+3, 4*7+3} {
		if res.Data[i]!=0 { t.Errorf("pixel %d=%v, expected eroded to 0", i, res.Data[i]) }
	}
	if res.Data[0]!=5 || res.Data[2*7+2]!=5 {
		t.Errorf("pixels outside the erosion neighborhood changed")
	}
}

func TestMaskShrinkBordersUnaffected(t *testing.T) {
	// out of bounds neighbors count as valid, so a fully valid image survives
	f:=cube.NewCube(4, 4, 1, nil)
	for i:=range f.Data { f.Data[i]=2 }
	res, err:=NewOpMaskShrink(3).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	for i, v:=range res.Data {
		if v!=2 { t.Errorf("res[%d]=%v, expected 2", i, v) }
	}
}

func TestMaskShrinkUnitKernel(t *testing.T) {
	f:=cube.NewCube(2, 2, 1, []float32{1, 0, 3, 4})
	res, err:=NewOpMaskShrink(1).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if !cube.Equal(f, res) { t.Errorf("unit kernel changed the image") }
}
