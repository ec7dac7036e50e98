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


package scale

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"github.com/cverona/cutprep/internal/cube"
	"github.com/cverona/cutprep/internal/ops"
	"github.com/cverona/cutprep/internal/stats"
)

// Gathers the valid pixels of one channel, optionally restricted to a centered box
func gatherChannelSample(f *cube.Cube, ch int32, useMaskBox bool, maskFract float32) []float32 {
	if useMaskBox {
		box:=cube.CenterBox(f.Width, f.Height, maskFract)
		return cube.GatherValidInBox(f.Channel(ch), f.Width, box, nil)
	}
	return cube.GatherValid(f.Channel(ch), nil)
}

// Per-channel valid min/max, or an error when a channel has no valid pixels
func channelMinMax(f *cube.Cube, ch int32) (min, max float32, err error) {
	s, err:=stats.Calc(cube.GatherValid(f.Channel(ch), nil))
	if err!=nil { return 0,0, errors.New(fmt.Sprintf("%d: channel %d has no valid pixels", f.ID, ch)) }
	return s.Min, s.Max, nil
}


// Rescales the valid pixels of each channel linearly to [Min, Max],
// using per-channel extrema. Invalid pixels stay at zero
type OpMinMaxNorm struct {
	ops.OpUnaryBase
	Min       float32    `json:"min"`
	Max       float32    `json:"max"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpMinMaxNormDefault() })} // register the operator for JSON decoding

func NewOpMinMaxNormDefault() *OpMinMaxNorm { return NewOpMinMaxNorm(0, 1) }

func NewOpMinMaxNorm(min, max float32) *OpMinMaxNorm {
	op:=&OpMinMaxNorm{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "minMaxNorm", Active: true}},
		Min : min,
		Max : max,
	}
	op.OpUnaryBase.Apply=op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the operator from JSON readably
func (op *OpMinMaxNorm) UnmarshalJSON(data []byte) error {
	type defaults OpMinMaxNorm
	def:=defaults(*NewOpMinMaxNormDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpMinMaxNorm(def)
	op.OpUnaryBase.Apply=op.Apply // make method receiver point to copy, not original
	return nil
}

func (op *OpMinMaxNorm) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	for ch:=int32(0); ch<f.Channels; ch++ {
		min, max, err:=channelMinMax(f, ch)
		if err!=nil { return nil, err }
		if max-min<1e-12 { return nil, errors.New(fmt.Sprintf("%d: channel %d is degenerate, min %.6g max %.6g", f.ID, ch, min, max)) }
		scale:=(op.Max-op.Min)/(max-min)
		data:=f.Channel(ch)
		for i, v:=range data {
			if !cube.Valid(v) { data[i]=0; continue }
			data[i]=(v-min)*scale + op.Min
		}
	}
	fmt.Fprintf(c.Log, "%d: Normalized channels to [%.4g, %.4g]\n", f.ID, op.Min, op.Max)
	return f, nil
}


// Rescales valid pixels linearly to [Min, Max] using one global min/max across all channels
type OpAbsMinMaxNorm struct {
	ops.OpUnaryBase
	Min       float32    `json:"min"`
	Max       float32    `json:"max"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpAbsMinMaxNormDefault() })} // register the operator for JSON decoding

func NewOpAbsMinMaxNormDefault() *OpAbsMinMaxNorm { return NewOpAbsMinMaxNorm(0, 1) }

func NewOpAbsMinMaxNorm(min, max float32) *OpAbsMinMaxNorm {
	op:=&OpAbsMinMaxNorm{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "absMinMaxNorm", Active: true}},
		Min : min,
		Max : max,
	}
	op.OpUnaryBase.Apply=op.Apply
	return op
}

func (op *OpAbsMinMaxNorm) UnmarshalJSON(data []byte) error {
	type defaults OpAbsMinMaxNorm
	def:=defaults(*NewOpAbsMinMaxNormDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpAbsMinMaxNorm(def)
	op.OpUnaryBase.Apply=op.Apply
	return nil
}

func (op *OpAbsMinMaxNorm) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	s, serr:=stats.Calc(cube.GatherValid(f.Data, nil))
	if serr!=nil { return nil, errors.New(fmt.Sprintf("%d: no valid pixels", f.ID)) }
	if s.Max-s.Min<1e-12 { return nil, errors.New(fmt.Sprintf("%d: degenerate cube, min %.6g max %.6g", f.ID, s.Min, s.Max)) }
	scale:=(op.Max-op.Min)/(s.Max-s.Min)
	for i, v:=range f.Data {
		if !cube.Valid(v) { f.Data[i]=0; continue }
		f.Data[i]=(v-s.Min)*scale + op.Min
	}
	fmt.Fprintf(c.Log, "%d: Normalized cube to [%.4g, %.4g] from global range [%.4g, %.4g]\n",
	            f.ID, op.Min, op.Max, s.Min, s.Max)
	return f, nil
}


// Divides each channel by its own maximum, optionally computed inside a centered box
type OpMaxScale struct {
	ops.OpUnaryBase
	UseMaskBox bool    `json:"useMaskBox"`
	MaskFract  float32 `json:"maskFract"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpMaxScaleDefault() })} // register the operator for JSON decoding

func NewOpMaxScaleDefault() *OpMaxScale { return NewOpMaxScale(false, 0.5) }

func NewOpMaxScale(useMaskBox bool, maskFract float32) *OpMaxScale {
	op:=&OpMaxScale{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "maxScale", Active: true}},
		UseMaskBox : useMaskBox,
		MaskFract  : maskFract,
	}
	op.OpUnaryBase.Apply=op.Apply
	return op
}

func (op *OpMaxScale) UnmarshalJSON(data []byte) error {
	type defaults OpMaxScale
	def:=defaults(*NewOpMaxScaleDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpMaxScale(def)
	op.OpUnaryBase.Apply=op.Apply
	return nil
}

func (op *OpMaxScale) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	for ch:=int32(0); ch<f.Channels; ch++ {
		s, serr:=stats.Calc(gatherChannelSample(f, ch, op.UseMaskBox, op.MaskFract))
		if serr!=nil { return nil, errors.New(fmt.Sprintf("%d: channel %d has no valid pixels", f.ID, ch)) }
		if s.Max<=0 || math.IsInf(float64(s.Max),0) {
			return nil, errors.New(fmt.Sprintf("%d: channel %d max %.6g is not usable for scaling", f.ID, ch, s.Max))
		}
		data:=f.Channel(ch)
		for i, v:=range data {
			if !cube.Valid(v) { data[i]=0; continue }
			data[i]=v/s.Max
		}
	}
	fmt.Fprintf(c.Log, "%d: Scaled channels by their maxima (maskBox=%v)\n", f.ID, op.UseMaskBox)
	return f, nil
}


// Divides all channels by the single global maximum, optionally box-restricted
type OpAbsMaxScale struct {
	ops.OpUnaryBase
	UseMaskBox bool    `json:"useMaskBox"`
	MaskFract  float32 `json:"maskFract"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpAbsMaxScaleDefault() })} // register the operator for JSON decoding

func NewOpAbsMaxScaleDefault() *OpAbsMaxScale { return NewOpAbsMaxScale(false, 0.5) }

func NewOpAbsMaxScale(useMaskBox bool, maskFract float32) *OpAbsMaxScale {
	op:=&OpAbsMaxScale{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "absMaxScale", Active: true}},
		UseMaskBox : useMaskBox,
		MaskFract  : maskFract,
	}
	op.OpUnaryBase.Apply=op.Apply
	return op
}

func (op *OpAbsMaxScale) UnmarshalJSON(data []byte) error {
	type defaults OpAbsMaxScale
	def:=defaults(*NewOpAbsMaxScaleDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpAbsMaxScale(def)
	op.OpUnaryBase.Apply=op.Apply
	return nil
}

func (op *OpAbsMaxScale) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	max:=float32(math.Inf(-1))
	for ch:=int32(0); ch<f.Channels; ch++ {
		s, serr:=stats.Calc(gatherChannelSample(f, ch, op.UseMaskBox, op.MaskFract))
		if serr!=nil { continue }
		if s.Max>max { max=s.Max }
	}
	if max<=0 || math.IsInf(float64(max),0) {
		return nil, errors.New(fmt.Sprintf("%d: global max %.6g is not usable for scaling", f.ID, max))
	}
	for i, v:=range f.Data {
		if !cube.Valid(v) { f.Data[i]=0; continue }
		f.Data[i]=v/max
	}
	fmt.Fprintf(c.Log, "%d: Scaled cube by global max %.6g\n", f.ID, max)
	return f, nil
}


// Divides every channel by the maximum of one reference channel.
// Fails when any channel's own maximum is not strictly positive
type OpChanMaxScale struct {
	ops.OpUnaryBase
	ChRef      int32   `json:"chRef"`
	UseMaskBox bool    `json:"useMaskBox"`
	MaskFract  float32 `json:"maskFract"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpChanMaxScaleDefault() })} // register the operator for JSON decoding

func NewOpChanMaxScaleDefault() *OpChanMaxScale { return NewOpChanMaxScale(0, false, 0.5) }

func NewOpChanMaxScale(chRef int32, useMaskBox bool, maskFract float32) *OpChanMaxScale {
	op:=&OpChanMaxScale{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "chanMaxScale", Active: true}},
		ChRef      : chRef,
		UseMaskBox : useMaskBox,
		MaskFract  : maskFract,
	}
	op.OpUnaryBase.Apply=op.Apply
	return op
}

func (op *OpChanMaxScale) UnmarshalJSON(data []byte) error {
	type defaults OpChanMaxScale
	def:=defaults(*NewOpChanMaxScaleDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpChanMaxScale(def)
	op.OpUnaryBase.Apply=op.Apply
	return nil
}

func (op *OpChanMaxScale) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	if op.ChRef<0 || op.ChRef>=f.Channels {
		return nil, errors.New(fmt.Sprintf("%d: reference channel %d out of range for %d channels", f.ID, op.ChRef, f.Channels))
	}
	for ch:=int32(0); ch<f.Channels; ch++ { // every channel must carry positive signal of its own
		s, serr:=stats.Calc(cube.GatherValid(f.Channel(ch), nil))
		if serr!=nil || s.Max<=0 || math.IsInf(float64(s.Max),0) {
			return nil, errors.New(fmt.Sprintf("%d: channel %d has no usable positive maximum", f.ID, ch))
		}
	}
	sRef, serr:=stats.Calc(gatherChannelSample(f, op.ChRef, op.UseMaskBox, op.MaskFract))
	if serr!=nil || sRef.Max<=0 || math.IsInf(float64(sRef.Max),0) {
		return nil, errors.New(fmt.Sprintf("%d: reference channel %d has no usable positive maximum", f.ID, op.ChRef))
	}
	for i, v:=range f.Data {
		if !cube.Valid(v) { f.Data[i]=0; continue }
		f.Data[i]=v/sRef.Max
	}
	fmt.Fprintf(c.Log, "%d: Scaled cube by channel %d max %.6g\n", f.ID, op.ChRef, sRef.Max)
	return f, nil
}


// Multiplies every channel by its per-channel factor
type OpScale struct {
	ops.OpUnaryBase
	Factors    []float32 `json:"factors"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpScaleDefault() })} // register the operator for JSON decoding

func NewOpScaleDefault() *OpScale { return NewOpScale(nil) }

func NewOpScale(factors []float32) *OpScale {
	op:=&OpScale{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "scale", Active: true}},
		Factors : factors,
	}
	op.OpUnaryBase.Apply=op.Apply
	return op
}

func (op *OpScale) UnmarshalJSON(data []byte) error {
	type defaults OpScale
	def:=defaults(*NewOpScaleDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpScale(def)
	op.OpUnaryBase.Apply=op.Apply
	return nil
}

func (op *OpScale) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	if int32(len(op.Factors))!=f.Channels {
		return nil, errors.New(fmt.Sprintf("%d: %d scale factors for %d channels", f.ID, len(op.Factors), f.Channels))
	}
	for ch:=int32(0); ch<f.Channels; ch++ {
		factor:=op.Factors[ch]
		data:=f.Channel(ch)
		for i, v:=range data {
			if !cube.Valid(v) { data[i]=0; continue }
			data[i]=v*factor
		}
	}
	fmt.Fprintf(c.Log, "%d: Scaled channels by %v\n", f.ID, op.Factors)
	return f, nil
}


// Subtracts a per-channel offset from the valid pixels of every channel
type OpShift struct {
	ops.OpUnaryBase
	Offsets    []float32 `json:"offsets"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpShiftDefault() })} // register the operator for JSON decoding

func NewOpShiftDefault() *OpShift { return NewOpShift(nil) }

func NewOpShift(offsets []float32) *OpShift {
	op:=&OpShift{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "shift", Active: true}},
		Offsets : offsets,
	}
	op.OpUnaryBase.Apply=op.Apply
	return op
}

func (op *OpShift) UnmarshalJSON(data []byte) error {
	type defaults OpShift
	def:=defaults(*NewOpShiftDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpShift(def)
	op.OpUnaryBase.Apply=op.Apply
	return nil
}

func (op *OpShift) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	if int32(len(op.Offsets))!=f.Channels {
		return nil, errors.New(fmt.Sprintf("%d: %d offsets for %d channels", f.ID, len(op.Offsets), f.Channels))
	}
	for ch:=int32(0); ch<f.Channels; ch++ {
		offset:=op.Offsets[ch]
		data:=f.Channel(ch)
		for i, v:=range data {
			if !cube.Valid(v) { data[i]=0; continue }
			data[i]=v-offset
		}
	}
	fmt.Fprintf(c.Log, "%d: Shifted channels by %v\n", f.ID, op.Offsets)
	return f, nil
}


// Subtracts the valid minimum from every channel. With ChID>=0 the minimum
// of that one channel is applied to all channels instead.
// Invalid pixels stay at zero
type OpMinShift struct {
	ops.OpUnaryBase
	ChID       int32  `json:"chID"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpMinShiftDefault() })} // register the operator for JSON decoding

func NewOpMinShiftDefault() *OpMinShift { return NewOpMinShift(-1) }

func NewOpMinShift(chID int32) *OpMinShift {
	op:=&OpMinShift{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "minShift", Active: true}},
		ChID : chID,
	}
	op.OpUnaryBase.Apply=op.Apply
	return op
}

func (op *OpMinShift) UnmarshalJSON(data []byte) error {
	type defaults OpMinShift
	def:=defaults(*NewOpMinShiftDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpMinShift(def)
	op.OpUnaryBase.Apply=op.Apply
	return nil
}

func (op *OpMinShift) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	if op.ChID>=f.Channels {
		return nil, errors.New(fmt.Sprintf("%d: channel %d out of range for %d channels", f.ID, op.ChID, f.Channels))
	}
	var sharedMin float32
	if op.ChID>=0 {
		min, _, err:=channelMinMax(f, op.ChID)
		if err!=nil { return nil, err }
		sharedMin=min
	}
	for ch:=int32(0); ch<f.Channels; ch++ {
		min:=sharedMin
		if op.ChID<0 {
			var err error
			min, _, err=channelMinMax(f, ch)
			if err!=nil { return nil, err }
		}
		data:=f.Channel(ch)
		for i:=range data {
			if !cube.Valid(data[i]) { data[i]=0; continue }
			data[i]-=min
		}
	}
	fmt.Fprintf(c.Log, "%d: Min-shifted channels (chID=%d)\n", f.ID, op.ChID)
	return f, nil
}


// Standardizes every channel with (value-mean)/sigma using given per-channel parameters
type OpStandardize struct {
	ops.OpUnaryBase
	Means      []float32 `json:"means"`
	Sigmas     []float32 `json:"sigmas"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpStandardizeDefault() })} // register the operator for JSON decoding

func NewOpStandardizeDefault() *OpStandardize { return NewOpStandardize(nil, nil) }

func NewOpStandardize(means, sigmas []float32) *OpStandardize {
	op:=&OpStandardize{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "standardize", Active: true}},
		Means  : means,
		Sigmas : sigmas,
	}
	op.OpUnaryBase.Apply=op.Apply
	return op
}

func (op *OpStandardize) UnmarshalJSON(data []byte) error {
	type defaults OpStandardize
	def:=defaults(*NewOpStandardizeDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpStandardize(def)
	op.OpUnaryBase.Apply=op.Apply
	return nil
}

func (op *OpStandardize) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	if int32(len(op.Means))!=f.Channels || int32(len(op.Sigmas))!=f.Channels {
		return nil, errors.New(fmt.Sprintf("%d: %d means and %d sigmas for %d channels",
		                                   f.ID, len(op.Means), len(op.Sigmas), f.Channels))
	}
	for ch:=int32(0); ch<f.Channels; ch++ {
		mean, sigma:=op.Means[ch], op.Sigmas[ch]
		if sigma==0 { return nil, errors.New(fmt.Sprintf("%d: zero sigma for channel %d", f.ID, ch)) }
		data:=f.Channel(ch)
		for i, v:=range data {
			if !cube.Valid(v) { data[i]=0; continue }
			data[i]=(v-mean)/sigma
		}
	}
	fmt.Fprintf(c.Log, "%d: Standardized channels with means %v sigmas %v\n", f.ID, op.Means, op.Sigmas)
	return f, nil
}


// Rebases channels that carry no positive signal. A channel whose valid maximum
// is <=0 gets its valid minimum subtracted, bringing it to zero-based values
type OpNegativeFix struct {
	ops.OpUnaryBase
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpNegativeFixDefault() })} // register the operator for JSON decoding

func NewOpNegativeFixDefault() *OpNegativeFix {
	op:=&OpNegativeFix{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "negativeFix", Active: true}},
	}
	op.OpUnaryBase.Apply=op.Apply
	return op
}

func (op *OpNegativeFix) UnmarshalJSON(data []byte) error {
	type defaults OpNegativeFix
	def:=defaults(*NewOpNegativeFixDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpNegativeFix(def)
	op.OpUnaryBase.Apply=op.Apply
	return nil
}

func (op *OpNegativeFix) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	fixed:=0
	for ch:=int32(0); ch<f.Channels; ch++ {
		s, serr:=stats.Calc(cube.GatherValid(f.Channel(ch), nil))
		if serr!=nil { continue } // fully masked channel, nothing to rebase
		if s.Max>0 { continue }
		data:=f.Channel(ch)
		for i, v:=range data {
			if !cube.Valid(v) { data[i]=0; continue }
			data[i]=v-s.Min
		}
		fixed++
	}
	if fixed>0 {
		fmt.Fprintf(c.Log, "%d: Rebased %d non-positive channels\n", f.ID, fixed)
	}
	return f, nil
}
