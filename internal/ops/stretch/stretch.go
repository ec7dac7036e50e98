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
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"github.com/cverona/cutprep/internal/cube"
	"github.com/cverona/cutprep/internal/ops"
	"github.com/cverona/cutprep/internal/stats"
)

// Applies a base-10 logarithm to the valid pixels of every channel except an
// optional excluded one. Valid pixels <=0 take the channel's minimum log value,
// invalid pixels stay at zero. Optionally renormalizes the log output to a
// fixed range and clips negatives
type OpLogStretch struct {
	ops.OpUnaryBase
	ChID        int32   `json:"chID"`        // channel to exclude, -1 for none
	MinMaxNorm  bool    `json:"minMaxNorm"`
	NormMin     float32 `json:"normMin"`
	NormMax     float32 `json:"normMax"`
	ClipNeg     bool    `json:"clipNeg"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpLogStretchDefault() })} // register the operator for JSON decoding

func NewOpLogStretchDefault() *OpLogStretch { return NewOpLogStretch(-1, false, 0, 1, false) }

func NewOpLogStretch(chID int32, minMaxNorm bool, normMin, normMax float32, clipNeg bool) *OpLogStretch {
	op:=&OpLogStretch{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "logStretch", Active: true}},
		ChID       : chID,
		MinMaxNorm : minMaxNorm,
		NormMin    : normMin,
		NormMax    : normMax,
		ClipNeg    : clipNeg,
	}
	op.OpUnaryBase.Apply=op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the operator from JSON readably
func (op *OpLogStretch) UnmarshalJSON(data []byte) error {
	type defaults OpLogStretch
	def:=defaults(*NewOpLogStretchDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpLogStretch(def)
	op.OpUnaryBase.Apply=op.Apply // make method receiver point to copy, not original
	return nil
}

func (op *OpLogStretch) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	for ch:=int32(0); ch<f.Channels; ch++ {
		if ch==op.ChID { continue }

		data:=f.Channel(ch)
		minPos:=float32(math.Inf(1))
		for _, v:=range data {
			if cube.Valid(v) && v>0 && v<minPos { minPos=v }
		}
		if math.IsInf(float64(minPos),1) {
			return nil, errors.New(fmt.Sprintf("%d: channel %d has no positive valid pixels to log-stretch", f.ID, ch))
		}
		minLog:=float32(math.Log10(float64(minPos)))

		for i, v:=range data {
			if !cube.Valid(v) { data[i]=0; continue }
			if v<=0 { data[i]=minLog; continue }
			data[i]=float32(math.Log10(float64(v)))
		}

		if op.MinMaxNorm {
			s, serr:=stats.Calc(cube.GatherValid(data, nil))
			if serr!=nil || s.Max-s.Min<1e-12 {
				return nil, errors.New(fmt.Sprintf("%d: channel %d log output is degenerate", f.ID, ch))
			}
			scale:=(op.NormMax-op.NormMin)/(s.Max-s.Min)
			for i, v:=range data {
				if !cube.Valid(v) { data[i]=0; continue }
				data[i]=(v-s.Min)*scale + op.NormMin
			}
		}
		if op.ClipNeg {
			for i, v:=range data {
				if cube.Valid(v) && v<0 { data[i]=0 }
			}
		}
	}
	fmt.Fprintf(c.Log, "%d: Log-stretched channels (excluded=%d norm=%v clipNeg=%v)\n",
	            f.ID, op.ChID, op.MinMaxNorm, op.ClipNeg)
	return f, nil
}


// Stretches every channel with a robust contrast interval, mapping
// [low, high] linearly to [0,1] and clipping at both ends.
// Takes one contrast parameter per channel
type OpZScale struct {
	ops.OpUnaryBase
	Contrasts  []float32 `json:"contrasts"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpZScaleDefault() })} // register the operator for JSON decoding

func NewOpZScaleDefault() *OpZScale { return NewOpZScale(nil) }

func NewOpZScale(contrasts []float32) *OpZScale {
	op:=&OpZScale{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "zscale", Active: true}},
		Contrasts : contrasts,
	}
	op.OpUnaryBase.Apply=op.Apply
	return op
}

func (op *OpZScale) UnmarshalJSON(data []byte) error {
	type defaults OpZScale
	def:=defaults(*NewOpZScaleDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpZScale(def)
	op.OpUnaryBase.Apply=op.Apply
	return nil
}

func (op *OpZScale) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	if int32(len(op.Contrasts))<f.Channels {
		return nil, errors.New(fmt.Sprintf("%d: %d contrasts for %d channels", f.ID, len(op.Contrasts), f.Channels))
	}
	for ch:=int32(0); ch<f.Channels; ch++ {
		data:=f.Channel(ch)
		sample:=cube.GatherValid(data, nil)
		if len(sample)==0 {
			return nil, errors.New(fmt.Sprintf("%d: channel %d has no valid pixels", f.ID, ch))
		}
		low, high:=stats.ZScaleInterval(sample, op.Contrasts[ch])
		if high-low<1e-12 {
			return nil, errors.New(fmt.Sprintf("%d: channel %d contrast interval is degenerate", f.ID, ch))
		}
		scale:=1.0/(high-low)
		for i, v:=range data {
			if !cube.Valid(v) { data[i]=0; continue }
			r:=(v-low)*scale
			if r<0 { r=0 } else if r>1 { r=1 }
			data[i]=r
		}
		fmt.Fprintf(c.Log, "%d: ZScale stretched channel %d with contrast %.3f to [%.6g, %.6g]\n",
		            f.ID, ch, op.Contrasts[ch], low, high)
	}
	return f, nil
}
