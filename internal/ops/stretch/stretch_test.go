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


package stretch

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

func almostEqual(a, b, eps float32) bool {
	return math.Abs(float64(a-b))<=float64(eps)
}

func TestLogStretch(t *testing.T) {
	f:=cube.NewCube(2, 2, 1, []float32{0.01, 1, 100, 0})
	res, err:=NewOpLogStretch(-1, false, 0, 1, false).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	expected:=[]float32{-2, 0, 2, 0} // masked pixel stays zero
	for i, v:=range expected {
		if !almostEqual(res.Data[i], v, 1e-4) {
			t.Errorf("res[%d]=%v, expected %v", i, res.Data[i], v)
		}
	}
}

func TestLogStretchNonPositiveTakesMinLog(t *testing.T) {
	f:=cube.NewCube(2, 2, 1, []float32{0.1, 10, -5, 0})
	res, err:=NewOpLogStretch(-1, false, 0, 1, false).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if !almostEqual(res.Data[2], -1, 1e-4) { // log10 of the smallest positive value
		t.Errorf("negative pixel mapped to %v, expected -1", res.Data[2])
	}
	if res.Data[3]!=0 { t.Errorf("masked pixel became %v", res.Data[3]) }
}

func TestLogStretchClipNeg(t *testing.T) {
	f:=cube.NewCube(2, 1, 1, []float32{0.01, 100})
	res, err:=NewOpLogStretch(-1, false, 0, 1, true).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if res.Data[0]!=0 { t.Errorf("negative log output %v not clipped", res.Data[0]) }
	if !almostEqual(res.Data[1], 2, 1e-4) { t.Errorf("res[1]=%v, expected 2", res.Data[1]) }
}

func TestLogStretchNorm(t *testing.T) {
	f:=cube.NewCube(2, 1, 1, []float32{0.01, 100})
	res, err:=NewOpLogStretch(-1, true, 0, 1, false).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if !almostEqual(res.Data[1], 1, 1e-5) { // log range [-2,2] rescaled to [0,1]
		t.Errorf("res[1]=%v, expected 1", res.Data[1])
	}
}

func TestLogStretchExcludedChannel(t *testing.T) {
	f:=cube.NewCube(1, 1, 2, []float32{100, 100})
	res, err:=NewOpLogStretch(0, false, 0, 1, false).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if res.Data[0]!=100 { t.Errorf("excluded channel changed to %v", res.Data[0]) }
	if !almostEqual(res.Data[1], 2, 1e-4) { t.Errorf("res[1]=%v, expected 2", res.Data[1]) }
}

func TestLogStretchNoPositives(t *testing.T) {
	f:=cube.NewCube(2, 1, 1, []float32{-1, 0})
	if _, err:=NewOpLogStretch(-1, false, 0, 1, false).Apply(f, testContext()); err==nil {
		t.Errorf("expected error for channel without positive pixels")
	}
}

func TestZScaleContrastCountMismatch(t *testing.T) {
	f:=cube.NewCube(1, 1, 2, []float32{1, 2})
	if _, err:=NewOpZScale([]float32{0.25}).Apply(f, testContext()); err==nil {
		t.Errorf("expected error for too few contrasts")
	}
}

func TestZScaleMapsToUnitRange(t *testing.T) {
	f:=cube.NewCube(10, 10, 1, nil)
	for i:=range f.Data { f.Data[i]=float32(i+1) }
	f.Data[17]=0 // one masked pixel
	res, err:=NewOpZScale([]float32{0.5}).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	for i, v:=range res.Data {
		if i==17 {
			if v!=0 { t.Errorf("masked pixel became %v", v) }
			continue
		}
		if v<0 || v>1 { t.Errorf("res[%d]=%v outside [0,1]", i, v) }
	}
	if res.Data[0]>=res.Data[99] {
		t.Errorf("stretch did not preserve ordering: %v >= %v", res.Data[0], res.Data[99])
	}
}

func TestZScaleNonFiniteRestored(t *testing.T) {
	f:=cube.NewCube(10, 10, 1, nil)
	for i:=range f.Data { f.Data[i]=float32(i+1) }
	f.Data[17]=0
	f.Data[23]=float32(math.NaN())
	f.Data[31]=float32(math.Inf(-1))
	res, err:=NewOpZScale([]float32{0.5}).Apply(f, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	for _, i:=range []int{17, 23, 31} {
		if res.Data[i]!=0 { t.Errorf("masked pixel %d became %v, expected 0", i, res.Data[i]) }
	}
	for i, v:=range res.Data {
		if v<0 || v>1 || math.IsNaN(float64(v)) {
			t.Errorf("res[%d]=%v outside [0,1]", i, v)
		}
	}
}
