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
	"encoding/json"
	"errors"
	"fmt"
	"github.com/cverona/cutprep/internal/cube"
	"github.com/cverona/cutprep/internal/ops"
)

// Applies one named augmentation preset to every image. Owns its own random
// source; with a non-zero seed, StartBatch re-seeds it and drops per-batch
// parameters, making results reproducible at batch granularity.
// Not safe for concurrent use of one instance; clone per worker instead
type OpAugment struct {
	ops.OpUnaryBase
	Preset     string `json:"preset"`
	Seed       uint32 `json:"seed"`

	rand       *Rand
	aug        Augmenter
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpAugmentDefault() })} // register the operator for JSON decoding

func NewOpAugmentDefault() *OpAugment {
	op, _:=NewOpAugment("cnn", 0)
	return op
}

func NewOpAugment(preset string, seed uint32) (*OpAugment, error) {
	aug, err:=NewPreset(preset)
	if err!=nil { return nil, err }
	op:=&OpAugment{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "augment", Active: true}},
		Preset : preset,
		Seed   : seed,
		rand   : NewRand(seed),
		aug    : aug,
	}
	op.OpUnaryBase.Apply=op.Apply // assign class method to superclass abstract method
	return op, nil
}

func (op *OpAugment) Augmenter() bool { return true }

// Unmarshal the operator from JSON readably
func (op *OpAugment) UnmarshalJSON(data []byte) error {
	type defaults OpAugment
	def:=defaults(*NewOpAugmentDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpAugment(def)
	op.aug, err=NewPreset(op.Preset)
	if err!=nil { return err }
	op.rand=NewRand(op.Seed)
	op.OpUnaryBase.Apply=op.Apply // make method receiver point to copy, not original
	return nil
}

// Marks a batch boundary: re-seeds the random source when a fixed seed is
// configured, and drops all lazily drawn per-batch parameters
func (op *OpAugment) StartBatch() {
	op.rand.Seed(op.Seed)
	op.aug.Reset()
}

func (op *OpAugment) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	res, err:=op.aug.Augment(f, op.rand)
	if err!=nil { return nil, errors.New(fmt.Sprintf("%d: augmentation with preset %s failed: %s", f.ID, op.Preset, err.Error())) }
	if res==nil { return nil, errors.New(fmt.Sprintf("%d: augmentation with preset %s returned no image", f.ID, op.Preset)) }
	fmt.Fprintf(c.Log, "%d: Augmented with preset %s\n", f.ID, op.Preset)
	return res, nil
}


// Chooses one of several augmentation presets per image, based on an index
// supplied by the execution context. Without an indexer the image id modulo
// the preset count decides
type OpAugmentByIndex struct {
	ops.OpUnaryBase
	Presets    []string `json:"presets"`
	Seed       uint32   `json:"seed"`

	rand       *Rand
	augs       []Augmenter
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpAugmentByIndexDefault() })} // register the operator for JSON decoding

func NewOpAugmentByIndexDefault() *OpAugmentByIndex {
	op, _:=NewOpAugmentByIndex([]string{"cnn"}, 0)
	return op
}

func NewOpAugmentByIndex(presets []string, seed uint32) (*OpAugmentByIndex, error) {
	op:=&OpAugmentByIndex{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "augmentByIndex", Active: true}},
		Presets : presets,
		Seed    : seed,
		rand    : NewRand(seed),
	}
	if err:=op.build(); err!=nil { return nil, err }
	op.OpUnaryBase.Apply=op.Apply
	return op, nil
}

func (op *OpAugmentByIndex) build() error {
	op.augs=make([]Augmenter, len(op.Presets))
	for i, name:=range op.Presets {
		aug, err:=NewPreset(name)
		if err!=nil { return err }
		op.augs[i]=aug
	}
	return nil
}

func (op *OpAugmentByIndex) Augmenter() bool { return true }

func (op *OpAugmentByIndex) UnmarshalJSON(data []byte) error {
	type defaults OpAugmentByIndex
	def:=defaults(*NewOpAugmentByIndexDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpAugmentByIndex(def)
	if err:=op.build(); err!=nil { return err }
	op.rand=NewRand(op.Seed)
	op.OpUnaryBase.Apply=op.Apply
	return nil
}

func (op *OpAugmentByIndex) StartBatch() {
	op.rand.Seed(op.Seed)
	for _, aug:=range op.augs { aug.Reset() }
}

func (op *OpAugmentByIndex) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	if len(op.augs)==0 { return nil, errors.New(fmt.Sprintf("%d: no augmentation presets configured", f.ID)) }
	idx:=f.ID%len(op.augs)
	if c.AugIndexer!=nil { idx=c.AugIndexer(f.ID) }
	if idx<0 || idx>=len(op.augs) {
		return nil, errors.New(fmt.Sprintf("%d: augmentation preset index %d out of range for %d presets", f.ID, idx, len(op.augs)))
	}
	res, err:=op.augs[idx].Augment(f, op.rand)
	if err!=nil { return nil, errors.New(fmt.Sprintf("%d: augmentation with preset %s failed: %s", f.ID, op.Presets[idx], err.Error())) }
	if res==nil { return nil, errors.New(fmt.Sprintf("%d: augmentation with preset %s returned no image", f.ID, op.Presets[idx])) }
	fmt.Fprintf(c.Log, "%d: Augmented with indexed preset %s\n", f.ID, op.Presets[idx])
	return res, nil
}
