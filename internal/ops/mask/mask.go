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
	"encoding/json"
	"errors"
	"fmt"
	"github.com/cverona/cutprep/internal/cube"
	"github.com/cverona/cutprep/internal/ops"
)

// Zeroes every pixel outside a centered box of given fractional size, in all channels
type OpBorderMask struct {
	ops.OpUnaryBase
	MaskFract  float32 `json:"maskFract"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpBorderMaskDefault() })} // register the operator for JSON decoding

func NewOpBorderMaskDefault() *OpBorderMask { return NewOpBorderMask(0.7) }

func NewOpBorderMask(maskFract float32) *OpBorderMask {
	op:=&OpBorderMask{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "borderMask", Active: true}},
		MaskFract : maskFract,
	}
	op.OpUnaryBase.Apply=op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the operator from JSON readably
func (op *OpBorderMask) UnmarshalJSON(data []byte) error {
	type defaults OpBorderMask
	def:=defaults(*NewOpBorderMaskDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpBorderMask(def)
	op.OpUnaryBase.Apply=op.Apply // make method receiver point to copy, not original
	return nil
}

func (op *OpBorderMask) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	if op.MaskFract<=0 || op.MaskFract>1 {
		return nil, errors.New(fmt.Sprintf("%d: invalid border mask fraction %.4g", f.ID, op.MaskFract))
	}
	box:=cube.CenterBox(f.Width, f.Height, op.MaskFract)
	for ch:=int32(0); ch<f.Channels; ch++ {
		data:=f.Channel(ch)
		for y:=int32(0); y<f.Height; y++ {
			for x:=int32(0); x<f.Width; x++ {
				if !box.Contains(x, y) { data[y*f.Width+x]=0 }
			}
		}
	}
	fmt.Fprintf(c.Log, "%d: Masked borders outside centered box fraction %.2f\n", f.ID, op.MaskFract)
	return f, nil
}


// Erodes the per-channel validity mask with an elliptical structuring element,
// shaving KernSize/2 pixels off the rim of each valid region.
// Neighbors outside the image are treated as valid
type OpMaskShrink struct {
	ops.OpUnaryBase
	KernSize   int32  `json:"kernSize"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpMaskShrinkDefault() })} // register the operator for JSON decoding

func NewOpMaskShrinkDefault() *OpMaskShrink { return NewOpMaskShrink(5) }

func NewOpMaskShrink(kernSize int32) *OpMaskShrink {
	op:=&OpMaskShrink{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "maskShrink", Active: true}},
		KernSize : kernSize,
	}
	op.OpUnaryBase.Apply=op.Apply
	return op
}

func (op *OpMaskShrink) UnmarshalJSON(data []byte) error {
	type defaults OpMaskShrink
	def:=defaults(*NewOpMaskShrinkDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpMaskShrink(def)
	op.OpUnaryBase.Apply=op.Apply
	return nil
}

// Offsets of an elliptical structuring element of given size
func ellipseOffsets(kernSize int32) (offsets [][2]int32) {
	r:=float32(kernSize-1)*0.5
	ri:=int32(r)
	for dy:=-ri; dy<=ri; dy++ {
		for dx:=-ri; dx<=ri; dx++ {
			if float32(dx*dx+dy*dy)<=r*r+0.5 {
				offsets=append(offsets, [2]int32{dx, dy})
			}
		}
	}
	return offsets
}

func (op *OpMaskShrink) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	if op.KernSize<1 {
		return nil, errors.New(fmt.Sprintf("%d: invalid mask shrink kernel size %d", f.ID, op.KernSize))
	}
	if op.KernSize==1 { return f, nil }
	offsets:=ellipseOffsets(op.KernSize)
	eroded:=make([]bool, f.Width*f.Height)
	for ch:=int32(0); ch<f.Channels; ch++ {
		data:=f.Channel(ch)
		for y:=int32(0); y<f.Height; y++ {
			for x:=int32(0); x<f.Width; x++ {
				keep:=cube.Valid(data[y*f.Width+x])
				for _, off:=range offsets {
					if !keep { break }
					nx, ny:=x+off[0], y+off[1]
					if nx<0 || nx>=f.Width || ny<0 || ny>=f.Height { continue } // outside counts as valid
					if !cube.Valid(data[ny*f.Width+nx]) { keep=false }
				}
				eroded[y*f.Width+x]=keep
			}
		}
		for i:=range data {
			if !eroded[i] { data[i]=0 }
		}
	}
	fmt.Fprintf(c.Log, "%d: Shrunk validity mask with %dx%d elliptical kernel\n", f.ID, op.KernSize, op.KernSize)
	return f, nil
}
