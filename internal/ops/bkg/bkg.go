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
	"encoding/json"
	"errors"
	"fmt"
	"github.com/cverona/cutprep/internal/cube"
	"github.com/cverona/cutprep/internal/ops"
	"github.com/cverona/cutprep/internal/stats"
)

// Expands a channel selector into the list of channels to process. -1 selects all
func selectChannels(f *cube.Cube, chID int32) ([]int32, error) {
	if chID<0 {
		chans:=make([]int32, f.Channels)
		for i:=range chans { chans[i]=int32(i) }
		return chans, nil
	}
	if chID>=f.Channels {
		return nil, errors.New(fmt.Sprintf("%d: channel %d out of range for %d channels", f.ID, chID, f.Channels))
	}
	return []int32{chID}, nil
}


// Estimates the sigma-clipped background level of a channel and subtracts it.
// The background sample optionally excludes a centered box around the source
type OpBkgSubtract struct {
	ops.OpUnaryBase
	Sigma      float32 `json:"sigma"`
	UseMaskBox bool    `json:"useMaskBox"`
	MaskFract  float32 `json:"maskFract"`
	ChID       int32   `json:"chID"`       // -1 for all channels
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpBkgSubtractDefault() })} // register the operator for JSON decoding

func NewOpBkgSubtractDefault() *OpBkgSubtract { return NewOpBkgSubtract(3, false, 0.5, -1) }

func NewOpBkgSubtract(sigma float32, useMaskBox bool, maskFract float32, chID int32) *OpBkgSubtract {
	op:=&OpBkgSubtract{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "bkgSubtract", Active: true}},
		Sigma      : sigma,
		UseMaskBox : useMaskBox,
		MaskFract  : maskFract,
		ChID       : chID,
	}
	op.OpUnaryBase.Apply=op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the operator from JSON readably
func (op *OpBkgSubtract) UnmarshalJSON(data []byte) error {
	type defaults OpBkgSubtract
	def:=defaults(*NewOpBkgSubtractDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpBkgSubtract(def)
	op.OpUnaryBase.Apply=op.Apply // make method receiver point to copy, not original
	return nil
}

func (op *OpBkgSubtract) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	chans, err:=selectChannels(f, op.ChID)
	if err!=nil { return nil, err }
	for _, ch:=range chans {
		data:=f.Channel(ch)
		var sample []float32
		if op.UseMaskBox { // keep the central source out of the background estimate
			box:=cube.CenterBox(f.Width, f.Height, op.MaskFract)
			sample=cube.GatherValidOutsideBox(data, f.Width, box, nil)
		} else {
			sample=cube.GatherValid(data, nil)
		}
		mean, _, _, serr:=stats.SigmaClipped(sample, op.Sigma)
		if serr!=nil {
			return nil, errors.New(fmt.Sprintf("%d: channel %d has no valid background sample", f.ID, ch))
		}
		for i, v:=range data {
			if !cube.Valid(v) { data[i]=0; continue }
			data[i]=v-mean
		}
		fmt.Fprintf(c.Log, "%d: Subtracted background %.6g from channel %d\n", f.ID, mean, ch)
	}
	return f, nil
}


// Shifts a channel so the clipped noise floor becomes the new zero.
// New zero is mean+sigma*stddev of the sigma-clipped sample; results
// below zero are clipped to zero
type OpSigmaClipShift struct {
	ops.OpUnaryBase
	Sigma      float32 `json:"sigma"`
	ChID       int32   `json:"chID"`       // -1 for all channels
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpSigmaClipShiftDefault() })} // register the operator for JSON decoding

func NewOpSigmaClipShiftDefault() *OpSigmaClipShift { return NewOpSigmaClipShift(1, -1) }

func NewOpSigmaClipShift(sigma float32, chID int32) *OpSigmaClipShift {
	op:=&OpSigmaClipShift{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "sigmaClipShift", Active: true}},
		Sigma : sigma,
		ChID  : chID,
	}
	op.OpUnaryBase.Apply=op.Apply
	return op
}

func (op *OpSigmaClipShift) UnmarshalJSON(data []byte) error {
	type defaults OpSigmaClipShift
	def:=defaults(*NewOpSigmaClipShiftDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpSigmaClipShift(def)
	op.OpUnaryBase.Apply=op.Apply
	return nil
}

func (op *OpSigmaClipShift) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	chans, err:=selectChannels(f, op.ChID)
	if err!=nil { return nil, err }
	for _, ch:=range chans {
		data:=f.Channel(ch)
		mean, _, stdDev, serr:=stats.SigmaClipped(cube.GatherValid(data, nil), op.Sigma)
		if serr!=nil {
			return nil, errors.New(fmt.Sprintf("%d: channel %d has no valid pixels", f.ID, ch))
		}
		newZero:=mean+op.Sigma*stdDev
		for i, v:=range data {
			if !cube.Valid(v) { data[i]=0; continue }
			r:=v-newZero
			if r<0 { r=0 }
			data[i]=r
		}
		fmt.Fprintf(c.Log, "%d: Shifted channel %d to new zero %.6g\n", f.ID, ch, newZero)
	}
	return f, nil
}


// Clamps the valid pixels of a channel to asymmetric sigma-clip bounds
// around the clipped median. Pixels are clipped in place, not removed
type OpSigmaClip struct {
	ops.OpUnaryBase
	SigmaLow   float32 `json:"sigmaLow"`
	SigmaUp    float32 `json:"sigmaUp"`
	ChID       int32   `json:"chID"`       // -1 for all channels
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpSigmaClipDefault() })} // register the operator for JSON decoding

func NewOpSigmaClipDefault() *OpSigmaClip { return NewOpSigmaClip(10, 3, -1) }

func NewOpSigmaClip(sigmaLow, sigmaUp float32, chID int32) *OpSigmaClip {
	op:=&OpSigmaClip{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "sigmaClip", Active: true}},
		SigmaLow : sigmaLow,
		SigmaUp  : sigmaUp,
		ChID     : chID,
	}
	op.OpUnaryBase.Apply=op.Apply
	return op
}

func (op *OpSigmaClip) UnmarshalJSON(data []byte) error {
	type defaults OpSigmaClip
	def:=defaults(*NewOpSigmaClipDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpSigmaClip(def)
	op.OpUnaryBase.Apply=op.Apply
	return nil
}

func (op *OpSigmaClip) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	chans, err:=selectChannels(f, op.ChID)
	if err!=nil { return nil, err }
	for _, ch:=range chans {
		data:=f.Channel(ch)
		low, high, serr:=stats.SigmaClipBounds(cube.GatherValid(data, nil), op.SigmaLow, op.SigmaUp)
		if serr!=nil {
			return nil, errors.New(fmt.Sprintf("%d: channel %d has no valid pixels", f.ID, ch))
		}
		for i, v:=range data {
			if !cube.Valid(v) { data[i]=0; continue }
			if v<low { data[i]=low } else if v>high { data[i]=high }
		}
		fmt.Fprintf(c.Log, "%d: Clamped channel %d to [%.6g, %.6g]\n", f.ID, ch, low, high)
	}
	return f, nil
}
