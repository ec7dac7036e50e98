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


package bkg

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

func TestBkgSubtract(t *testing.T) {
	// 4x4 with a uniform background of 10 and one masked corner
	f:=cube.NewCube(4, 4, 1, nil)
	for i:=range f.Data { f.Data[i]=10 }
	f.Data[0]=0
	res, err:=NewOpBkgSubtract(3, false, 0.5, -1).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	for i, v:=range res.Data {
		if d:=math.Abs(float64(v)); d>1e-4 {
			t.Errorf("res[%d]=%v, expected 0 after background subtraction", i, v)
		}
	}
	if res.Data[0]!=0 { t.Errorf("masked corner became %v", res.Data[0]) }
}

func TestBkgSubtractMaskBox(t *testing.T) {
	// bright central source on a background of 2; box-excluded sample
	// must estimate the background, not the source
	f:=cube.NewCube(8, 8, 1, nil)
	for i:=range f.Data { f.Data[i]=2 }
	box:=cube.CenterBox(8, 8, 0.5)
	for y:=box.YMin; y<box.YMax; y++ {
		for x:=box.XMin; x<box.XMax; x++ {
			f.Data[y*8+x]=50
		}
	}
	res, err:=NewOpBkgSubtract(3, true, 0.5, -1).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if d:=math.Abs(float64(res.Data[box.YMin*8+box.XMin]-48)); d>1e-3 {
		t.Errorf("source pixel=%v, expected 48", res.Data[box.YMin*8+box.XMin])
	}
}

func TestBkgSubtractEmptySample(t *testing.T) {
	f:=cube.NewCube(2, 2, 1, []float32{0, 0, 0, 0})
	if _, err:=NewOpBkgSubtract(3, false, 0.5, -1).Apply(f, testContext()); err==nil {
		t.Errorf("expected error for empty background sample")
	}
}

func TestSigmaClipShift(t *testing.T) {
	// uniform noise floor of 10 with a bright pixel and a masked pixel
	f:=cube.NewCube(4, 4, 1, nil)
	for i:=range f.Data { f.Data[i]=10 }
	f.Data[5]=1000
	f.Data[0]=0
	res, err:=NewOpSigmaClipShift(3, -1).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	// clipped stats converge on the floor, so the floor shifts to zero
	for i, v:=range res.Data {
		if i==5 { continue }
		if d:=math.Abs(float64(v)); d>1e-3 {
			t.Errorf("res[%d]=%v, expected 0", i, v)
		}
	}
	if d:=math.Abs(float64(res.Data[5]-990)); d>1e-2 {
		t.Errorf("bright pixel=%v, expected 990", res.Data[5])
	}
}

func TestSigmaClipShiftClipsNegatives(t *testing.T) {
	f:=cube.NewCube(2, 2, 1, []float32{5, 5, 5, 5})
	res, err:=NewOpSigmaClipShift(1, -1).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	for i, v:=range res.Data {
		if v<0 { t.Errorf("res[%d]=%v is negative", i, v) }
	}
}

func TestSigmaClip(t *testing.T) {
	// symmetric sample with one huge outlier; the outlier must be clamped
	f:=cube.NewCube(3, 3, 1, []float32{8, 9, 10, 10, 10, 10, 11, 12, 1000})
	res, err:=NewOpSigmaClip(3, 3, -1).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if res.Data[8]>=1000 { t.Errorf("outlier not clamped: %v", res.Data[8]) }
	if res.Data[0]!=8 { t.Errorf("inlier changed: %v", res.Data[0]) }
}

func TestSigmaClipNonFiniteRestored(t *testing.T) {
	// NaN and Inf pixels never compare against the clip bounds; they are
	// excluded from the sample and restored to exactly zero
	f:=cube.NewCube(3, 3, 1, []float32{8, 9, 10, float32(math.NaN()), 10, float32(math.Inf(1)), 11, 12, 0})
	res, err:=NewOpSigmaClip(3, 3, -1).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	for _, i:=range []int{3, 5, 8} {
		if res.Data[i]!=0 { t.Errorf("masked pixel %d became %v, expected 0", i, res.Data[i]) }
	}
	if res.Data[0]!=8 { t.Errorf("inlier changed: %v", res.Data[0]) }
}

func TestSigmaClipChannelOutOfRange(t *testing.T) {
	f:=cube.NewCube(1, 1, 1, []float32{1})
	if _, err:=NewOpSigmaClip(3, 3, 2).Apply(f, testContext()); err==nil {
		t.Errorf("expected error for out of range channel")
	}
}
