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


package augment

import (
	"io"
	"testing"
	"github.com/cverona/cutprep/internal/cube"
	"github.com/cverona/cutprep/internal/ops"
)

func testContext() *ops.Context {
	return ops.NewContext(io.Discard)
}

func noiseCube(width, height int32, seed uint32) *cube.Cube {
	r:=NewRand(seed)
	c:=cube.NewCube(width, height, 1, nil)
	for i:=range c.Data { c.Data[i]=r.Uniform(1, 10) }
	return c
}

func TestFlipHInvolution(t *testing.T) {
	f:=noiseCube(5, 4, 7)
	orig:=f.Clone()
	a:=&FlipH{}
	f, _=a.Augment(f, nil)
	if cube.Equal(f, orig) { t.Errorf("flip changed nothing") }
	f, _=a.Augment(f, nil)
	if !cube.Equal(f, orig) { t.Errorf("double flip is not the identity") }
}

func TestFlipVInvolution(t *testing.T) {
	f:=noiseCube(4, 5, 8)
	orig:=f.Clone()
	a:=&FlipV{}
	f, _=a.Augment(f, nil)
	f, _=a.Augment(f, nil)
	if !cube.Equal(f, orig) { t.Errorf("double flip is not the identity") }
}

func TestSometimesNever(t *testing.T) {
	f:=noiseCube(4, 4, 9)
	orig:=f.Clone()
	a:=&Sometimes{P: 0, Aug: &FlipH{}}
	r:=NewRand(1)
	for i:=0; i<10; i++ {
		var err error
		f, err=a.Augment(f, r)
		if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	}
	if !cube.Equal(f, orig) { t.Errorf("gate with probability 0 applied its augmenter") }
}

func TestUnknownPreset(t *testing.T) {
	if _, err:=NewPreset("nosuch"); err==nil {
		t.Errorf("expected error for unknown preset")
	}
	for _, name:=range PresetNames() {
		if _, err:=NewPreset(name); err!=nil {
			t.Errorf("preset %s failed to build: %s", name, err.Error())
		}
	}
}

func TestOpAugmentSeededReproducible(t *testing.T) {
	f1:=noiseCube(8, 8, 3)
	f2:=f1.Clone()

	op1, err:=NewOpAugment("cnn", 42)
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	op2, err:=NewOpAugment("cnn", 42)
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	op1.StartBatch()
	op2.StartBatch()

	res1, err:=op1.Apply(f1, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	res2, err:=op2.Apply(f2, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if !cube.Equal(res1, res2) { t.Errorf("same seed produced different augmentations") }
}

func TestPhotometricPresetsReproducible(t *testing.T) {
	// simclr3 and simclr4 run their full chains, including the stretch
	// and threshold stages, and reproduce under the same seed
	for _, name:=range []string{"simclr3", "simclr4"} {
		f1:=noiseCube(8, 8, 3)
		f2:=f1.Clone()

		op1, err:=NewOpAugment(name, 42)
		if err!=nil { t.Fatalf("%s: unexpected error %s", name, err.Error()) }
		op2, err:=NewOpAugment(name, 42)
		if err!=nil { t.Fatalf("%s: unexpected error %s", name, err.Error()) }
		op1.StartBatch()
		op2.StartBatch()

		res1, err:=op1.Apply(f1, testContext())
		if err!=nil { t.Fatalf("%s: unexpected error %s", name, err.Error()) }
		res2, err:=op2.Apply(f2, testContext())
		if err!=nil { t.Fatalf("%s: unexpected error %s", name, err.Error()) }
		if !cube.Equal(res1, res2) { t.Errorf("%s: same seed produced different augmentations", name) }
	}
}

func TestOpAugmentBatchReseed(t *testing.T) {
	op, err:=NewOpAugment("simclr", 7)
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }

	f1:=noiseCube(8, 8, 4)
	f2:=f1.Clone()

	op.StartBatch()
	res1, err:=op.Apply(f1, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	op.StartBatch() // same seed, fresh batch: identical draws
	res2, err:=op.Apply(f2, testContext())
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if !cube.Equal(res1, res2) { t.Errorf("reseeded batch produced different augmentations") }
}

func TestRandomZScaleBatchParamReuse(t *testing.T) {
	a:=&RandomZScale{MinContrast: 0.1, MaxContrast: 0.5}
	r:=NewRand(11)

	f1:=noiseCube(10, 10, 5)
	f2:=f1.Clone()
	res1, err:=a.Augment(f1, r)
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	// second image in the same batch reuses the drawn contrast
	res2, err:=a.Augment(f2, r)
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if !cube.Equal(res1, res2) { t.Errorf("batch parameter not reused within a batch") }
}

func TestRandomZScaleMasking(t *testing.T) {
	a:=&RandomZScale{MinContrast: 0.25, MaxContrast: 0.25}
	f:=noiseCube(10, 10, 6)
	f.Data[13]=0
	res, err:=a.Augment(f, NewRand(2))
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if res.Data[13]!=0 { t.Errorf("masked pixel became %v", res.Data[13]) }
}

func TestRandomSigmoidRange(t *testing.T) {
	a:=&RandomSigmoid{MinGain: 5, MaxGain: 10, MinCutoff: 0.4, MaxCutoff: 0.6}
	f:=noiseCube(6, 6, 12)
	res, err:=a.Augment(f, NewRand(3))
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	for i, v:=range res.Data {
		if v<0 || v>1 { t.Errorf("res[%d]=%v outside [0,1]", i, v) }
	}
}

func TestRandomPercentileThresh(t *testing.T) {
	a:=&RandomPercentileThresh{MinPercentile: 50, MaxPercentile: 50}
	f:=cube.NewCube(10, 1, 1, []float32{1,2,3,4,5,6,7,8,9,10})
	res, err:=a.Augment(f, NewRand(4))
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	zeroed:=0
	for _, v:=range res.Data {
		if v==0 { zeroed++ }
	}
	if zeroed<3 || zeroed>6 { // roughly the lower half
		t.Errorf("thresholding zeroed %d of 10 pixels", zeroed)
	}
	if res.Data[9]!=10 { t.Errorf("top pixel changed: %v", res.Data[9]) }
}

func TestOpAugmentIsAugmenter(t *testing.T) {
	op, _:=NewOpAugment("cae", 0)
	if !op.Augmenter() { t.Errorf("augment operator not flagged as augmenter") }
	opIdx, _:=NewOpAugmentByIndex([]string{"cae", "cnn"}, 0)
	if !opIdx.Augmenter() { t.Errorf("indexed augment operator not flagged as augmenter") }
}

func TestOpAugmentByIndexUsesIndexer(t *testing.T) {
	op, err:=NewOpAugmentByIndex([]string{"cae", "cnn"}, 5)
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	c:=testContext()
	picked:=-1
	c.AugIndexer=func(id int) int { picked=id; return 1 }
	f:=noiseCube(8, 8, 13)
	f.ID=3
	op.StartBatch()
	if _, err:=op.Apply(f, c); err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	if picked!=3 { t.Errorf("indexer called with id %d, expected 3", picked) }
}

func TestOpAugmentByIndexOutOfRange(t *testing.T) {
	op, err:=NewOpAugmentByIndex([]string{"cae"}, 0)
	if err!=nil { t.Fatalf("unexpected error %s", err.Error()) }
	c:=testContext()
	c.AugIndexer=func(id int) int { return 7 }
	if _, err:=op.Apply(noiseCube(4, 4, 14), c); err==nil {
		t.Errorf("expected error for out of range preset index")
	}
}
