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


package geom

import (
	"io"
	"math"
	"testing"
	"github.com/cverona/cutprep/internal/cube"
	"github.com/cverona/cutprep/internal/ops"
)

func testContext() *ops.Context {
	return ops.NewContext(io.Discard)
}

func TestResizeIdentity(t *testing.T) {
	f:=cube.NewCube(4, 4, 1, nil)
	res, err:=NewOpResize(4, false, false, false).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if res!=f { t.Errorf("image already at target size was not passed through") }
}

func TestResizePadsCentered(t *testing.T) {
	f:=cube.NewCube(2, 2, 1, []float32{1, 2, 3, 4})
	res, err:=NewOpResize(4, false, false, false).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if res.Width!=4 || res.Height!=4 { t.Fatalf("unexpected dimensions %s", res.DimensionsToString()) }
	if res.Data[1*4+1]!=1 || res.Data[1*4+2]!=2 || res.Data[2*4+1]!=3 || res.Data[2*4+2]!=4 {
		t.Errorf("content not centered: %v", res.Data)
	}
	if res.Data[0]!=0 || res.Data[15]!=0 {
		t.Errorf("padding not zero filled: %v", res.Data)
	}
}

func TestResizePadToMin(t *testing.T) {
	f:=cube.NewCube(2, 2, 1, []float32{5, 6, 7, 8})
	res, err:=NewOpResize(4, false, false, true).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if res.Data[0]!=5 { t.Errorf("padding=%v, expected the channel minimum 5", res.Data[0]) }
}

func TestResizeMixedAspect(t *testing.T) {
	// one axis below the target, one above: the longer axis is scaled
	// down to fit, then the result is padded to a square
	f:=cube.NewCube(3, 5, 1, nil)
	for i:=range f.Data { f.Data[i]=7 }
	res, err:=NewOpResize(4, false, false, false).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if res.Width!=4 || res.Height!=4 { t.Fatalf("unexpected dimensions %s", res.DimensionsToString()) }
	if d:=math.Abs(float64(res.Data[1*4+1]-7)); d>1e-5 {
		t.Errorf("center=%v, expected 7", res.Data[1*4+1])
	}
	if res.Data[0]!=0 || res.Data[1*4+0]!=0 {
		t.Errorf("padding not zero filled: %v", res.Data)
	}
}

func TestResizePadToMinFillsInterior(t *testing.T) {
	// the minimum fill covers masked pixels inside the image, not just the padding ring
	f:=cube.NewCube(2, 2, 1, []float32{5, 0, 7, 8})
	res, err:=NewOpResize(4, false, false, true).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if res.Data[1*4+2]!=5 { t.Errorf("interior masked pixel=%v, expected the channel minimum 5", res.Data[1*4+2]) }
	if res.Data[0]!=5 { t.Errorf("padding=%v, expected the channel minimum 5", res.Data[0]) }
}

func TestResizePadToMinAfterResample(t *testing.T) {
	// left half masked to zero, right half 5; downsampling keeps exact
	// zeros in the masked half, which the minimum fill then replaces
	f:=cube.NewCube(8, 8, 1, nil)
	for y:=int32(0); y<8; y++ {
		for x:=int32(4); x<8; x++ { f.Data[y*8+x]=5 }
	}
	res, err:=NewOpResize(4, false, false, true).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	for i, v:=range res.Data {
		if d:=math.Abs(float64(v-5)); d>1e-5 {
			t.Errorf("res[%d]=%v, expected 5 everywhere after minimum fill", i, v)
		}
	}
}

func TestResizeUpscales(t *testing.T) {
	f:=cube.NewCube(2, 2, 1, []float32{5, 5, 5, 5})
	res, err:=NewOpResize(4, true, false, false).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if res.Width!=4 || res.Height!=4 { t.Fatalf("unexpected dimensions %s", res.DimensionsToString()) }
	for i, v:=range res.Data {
		if d:=math.Abs(float64(v-5)); d>1e-5 {
			t.Errorf("res[%d]=%v, expected 5", i, v)
		}
	}
}

func TestResizeDownscales(t *testing.T) {
	f:=cube.NewCube(8, 8, 1, nil)
	for i:=range f.Data { f.Data[i]=3 }
	for _, antialias:=range []bool{false, true} {
		res, err:=NewOpResize(4, false, antialias, false).Apply(f, testContext())
		if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
		if res.Width!=4 || res.Height!=4 { t.Fatalf("unexpected dimensions %s", res.DimensionsToString()) }
		for i, v:=range res.Data {
			if d:=math.Abs(float64(v-3)); d>1e-4 {
				t.Errorf("antialias=%v: res[%d]=%v, expected 3", antialias, i, v)
			}
		}
	}
}

func TestChanResizeExpands(t *testing.T) {
	// 2 -> 4 channels replicates the last channel into the new slots
	f:=cube.NewCube(1, 2, 2, []float32{1, 2, 3, 4})
	res, err:=NewOpChanResize(4).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if res.Channels!=4 { t.Fatalf("got %d channels, expected 4", res.Channels) }
	expected:=[]float32{1,2, 3,4, 3,4, 3,4}
	for i, v:=range expected {
		if res.Data[i]!=v { t.Errorf("res[%d]=%v, expected %v", i, res.Data[i], v) }
	}
}

func TestChanResizeIdempotent(t *testing.T) {
	f:=cube.NewCube(1, 1, 2, []float32{1, 2})
	op:=NewOpChanResize(2)
	res, err:=op.Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if res!=f { t.Errorf("resize to the current channel count did not pass through") }
}

func TestChanResizeBounds(t *testing.T) {
	f:=cube.NewCube(1, 1, 1, []float32{1})
	for _, n:=range []int32{0, 1001} {
		if _, err:=NewOpChanResize(n).Apply(f, testContext()); err==nil {
			t.Errorf("expected error for target count %d", n)
		}
	}
}

func TestChanDivide(t *testing.T) {
	// reference channel uniformly 5, second channel {10, 0, 15}
	f:=cube.NewCube(3, 1, 2, []float32{5, 5, 5, 10, 0, 15})
	res, err:=NewOpChanDivide(0, false, false, -6, 6, false).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	expected:=[]float32{5, 5, 5, 2, 0, 3}
	for i, v:=range expected {
		if res.Data[i]!=v { t.Errorf("res[%d]=%v, expected %v", i, res.Data[i], v) }
	}
}

func TestChanDivideInvalidReference(t *testing.T) {
	// ratio forced to zero where the reference pixel is invalid
	f:=cube.NewCube(2, 1, 2, []float32{5, 0, 10, 20})
	res, err:=NewOpChanDivide(0, false, false, -6, 6, false).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if res.Data[2]!=2 || res.Data[3]!=0 {
		t.Errorf("res=%v, expected ratios {2, 0}", res.Data[2:])
	}
}

func TestChanDivideNonFinite(t *testing.T) {
	nan:=float32(math.NaN())
	inf:=float32(math.Inf(1))
	// reference {5, nan, 5, 5}, data channel {10, 20, nan, inf}
	f:=cube.NewCube(4, 1, 2, []float32{5, nan, 5, 5, 10, 20, nan, inf})
	res, err:=NewOpChanDivide(0, false, false, -6, 6, false).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if res.Data[4]!=2 { t.Errorf("res[4]=%v, expected 2", res.Data[4]) }
	if res.Data[5]!=0 { t.Errorf("non-finite reference gave ratio %v, expected 0", res.Data[5]) }
	if res.Data[6]!=0 || res.Data[7]!=0 {
		t.Errorf("non-finite pixels became %v and %v, expected 0", res.Data[6], res.Data[7])
	}
}

func TestChanDivideLogTrim(t *testing.T) {
	f:=cube.NewCube(2, 1, 2, []float32{10, 10, 1000, 10})
	res, err:=NewOpChanDivide(0, true, true, -1, 1, false).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if res.Data[2]!=1 { // log10(100)=2 trimmed to 1
		t.Errorf("res[2]=%v, expected trimmed to 1", res.Data[2])
	}
	if res.Data[3]!=0 { // log10(1)=0
		t.Errorf("res[3]=%v, expected 0", res.Data[3])
	}
}

func TestChanDivideStrip(t *testing.T) {
	f:=cube.NewCube(1, 1, 2, []float32{5, 10})
	res, err:=NewOpChanDivide(0, false, false, -6, 6, true).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if res.Channels!=1 { t.Fatalf("got %d channels, expected 1", res.Channels) }
	if res.Data[0]!=2 { t.Errorf("res=%v, expected {2}", res.Data) }
}
