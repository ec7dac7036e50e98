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
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"github.com/cverona/cutprep/internal/cube"
	"github.com/cverona/cutprep/internal/ops"
	"github.com/cverona/cutprep/internal/stats"
)

const maxChannels=1000

// Brings the canvas to a square target size. An image already at the target
// size passes through untouched. A smaller image is padded centered instead of
// stretched unless upscaling is enabled, with the longer axis scaled down
// first if it exceeds the target. Downscaling optionally pre-blurs for
// antialiasing. PadToMin fills every invalid pixel of the result with the
// per-channel valid minimum
type OpResize struct {
	ops.OpUnaryBase
	Size       int32  `json:"size"`
	Upscale    bool   `json:"upscale"`
	Antialias  bool   `json:"antialias"`
	PadToMin   bool   `json:"padToMin"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpResizeDefault() })} // register the operator for JSON decoding

func NewOpResizeDefault() *OpResize { return NewOpResize(64, false, false, true) }

func NewOpResize(size int32, upscale, antialias, padToMin bool) *OpResize {
	op:=&OpResize{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "resize", Active: true}},
		Size      : size,
		Upscale   : upscale,
		Antialias : antialias,
		PadToMin  : padToMin,
	}
	op.OpUnaryBase.Apply=op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the operator from JSON readably
func (op *OpResize) UnmarshalJSON(data []byte) error {
	type defaults OpResize
	def:=defaults(*NewOpResizeDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpResize(def)
	op.OpUnaryBase.Apply=op.Apply // make method receiver point to copy, not original
	return nil
}

func (op *OpResize) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	if op.Size<1 { return nil, errors.New(fmt.Sprintf("%d: invalid resize target %d", f.ID, op.Size)) }
	if f.Width==op.Size && f.Height==op.Size { return f, nil } // already at target size

	if (f.Width<op.Size || f.Height<op.Size) && !op.Upscale {
		g:=f
		if f.Width>op.Size || f.Height>op.Size { // mixed aspect, fit the longer axis first
			w, h:=fitWithin(f.Width, f.Height, op.Size)
			g=f.ResizeBilinear(w, h)
			if g==nil {
				return nil, errors.New(fmt.Sprintf("%d: resampling %dx%d image to %dx%d failed", f.ID, f.Width, f.Height, w, h))
			}
		}
		res:=padCentered(g, op.Size)
		if op.PadToMin { fillInvalidWithMin(res) }
		fmt.Fprintf(c.Log, "%d: Padded %dx%d image to %dx%d\n", f.ID, f.Width, f.Height, op.Size, op.Size)
		return res, nil
	}

	g:=f
	if op.Antialias && f.Width>op.Size { // pre-blur only when actually downscaling
		factor:=float32(f.Width)/float32(op.Size)
		sigma:=(factor-1)*0.5
		if sigma>0 {
			g=f.GaussianBlur(sigma)
		}
	}
	res:=g.ResizeBilinear(op.Size, op.Size)
	if res==nil {
		return nil, errors.New(fmt.Sprintf("%d: resampling %dx%d image to %dx%d failed", f.ID, f.Width, f.Height, op.Size, op.Size))
	}
	if op.PadToMin { fillInvalidWithMin(res) }
	fmt.Fprintf(c.Log, "%d: Resized %dx%d image to %dx%d (antialias=%v)\n",
	            f.ID, f.Width, f.Height, op.Size, op.Size, op.Antialias)
	return res, nil
}

// Scales the dimensions down uniformly so the longer axis equals size
func fitWithin(w, h, size int32) (int32, int32) {
	long:=w
	if h>long { long=h }
	scale:=float32(size)/float32(long)
	fw:=int32(float32(w)*scale+0.5)
	fh:=int32(float32(h)*scale+0.5)
	if fw<1 { fw=1 } else if fw>size { fw=size }
	if fh<1 { fh=1 } else if fh>size { fh=size }
	return fw, fh
}

// Places the image centered on a larger square canvas, zero filled.
// Both dimensions must not exceed size
func padCentered(f *cube.Cube, size int32) *cube.Cube {
	res:=cube.NewCube(size, size, f.Channels, nil)
	res.ID, res.FileName=f.ID, f.FileName
	offX:=(size-f.Width )/2
	offY:=(size-f.Height)/2
	for ch:=int32(0); ch<f.Channels; ch++ {
		src:=f.Channel(ch)
		dst:=res.Channel(ch)
		for y:=int32(0); y<f.Height; y++ {
			copy(dst[(y+offY)*size+offX:(y+offY)*size+offX+f.Width], src[y*f.Width:(y+1)*f.Width])
		}
	}
	return res
}

// Replaces every invalid pixel with the channel's valid minimum.
// Channels without any valid pixel are left at zero
func fillInvalidWithMin(f *cube.Cube) {
	for ch:=int32(0); ch<f.Channels; ch++ {
		data:=f.Channel(ch)
		s, err:=stats.Calc(cube.GatherValid(data, nil))
		if err!=nil { continue }
		for i, v:=range data {
			if !cube.Valid(v) { data[i]=s.Min }
		}
	}
}


// Brings the cube to a target channel count. Expanding replicates the last
// channel into the new slots, shrinking truncates. Idempotent at the target count
type OpChanResize struct {
	ops.OpUnaryBase
	NChans     int32  `json:"nChans"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpChanResizeDefault() })} // register the operator for JSON decoding

func NewOpChanResizeDefault() *OpChanResize { return NewOpChanResize(1) }

func NewOpChanResize(nChans int32) *OpChanResize {
	op:=&OpChanResize{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "chanResize", Active: true}},
		NChans : nChans,
	}
	op.OpUnaryBase.Apply=op.Apply
	return op
}

func (op *OpChanResize) UnmarshalJSON(data []byte) error {
	type defaults OpChanResize
	def:=defaults(*NewOpChanResizeDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpChanResize(def)
	op.OpUnaryBase.Apply=op.Apply
	return nil
}

func (op *OpChanResize) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	if op.NChans<1 || op.NChans>maxChannels {
		return nil, errors.New(fmt.Sprintf("%d: invalid target channel count %d", f.ID, op.NChans))
	}
	if op.NChans==f.Channels { return f, nil }

	res:=cube.NewCube(f.Width, f.Height, op.NChans, nil)
	res.ID, res.FileName=f.ID, f.FileName
	for ch:=int32(0); ch<op.NChans; ch++ {
		src:=ch
		if src>=f.Channels { src=f.Channels-1 } // replicate the last channel into the new slots
		copy(res.Channel(ch), f.Channel(src))
	}
	fmt.Fprintf(c.Log, "%d: Resized channels %d -> %d\n", f.ID, f.Channels, op.NChans)
	return res, nil
}


// Divides every non-reference channel pixelwise by the reference channel.
// The ratio is zero where the reference pixel is invalid. Optionally
// log-transforms the ratios, clips them to trim bounds, and strips the
// reference channel from the output. The reference channel itself is unchanged
type OpChanDivide struct {
	ops.OpUnaryBase
	ChRef      int32   `json:"chRef"`
	LogTransf  bool    `json:"logTransf"`
	Trim       bool    `json:"trim"`
	TrimMin    float32 `json:"trimMin"`
	TrimMax    float32 `json:"trimMax"`
	StripChRef bool    `json:"stripChRef"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpChanDivideDefault() })} // register the operator for JSON decoding

func NewOpChanDivideDefault() *OpChanDivide { return NewOpChanDivide(0, false, false, -6, 6, false) }

func NewOpChanDivide(chRef int32, logTransf, trim bool, trimMin, trimMax float32, stripChRef bool) *OpChanDivide {
	op:=&OpChanDivide{
		OpUnaryBase : ops.OpUnaryBase{OpBase : ops.OpBase{Type: "chanDivide", Active: true}},
		ChRef      : chRef,
		LogTransf  : logTransf,
		Trim       : trim,
		TrimMin    : trimMin,
		TrimMax    : trimMax,
		StripChRef : stripChRef,
	}
	op.OpUnaryBase.Apply=op.Apply
	return op
}

func (op *OpChanDivide) UnmarshalJSON(data []byte) error {
	type defaults OpChanDivide
	def:=defaults(*NewOpChanDivideDefault())
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpChanDivide(def)
	op.OpUnaryBase.Apply=op.Apply
	return nil
}

func (op *OpChanDivide) Apply(f *cube.Cube, c *ops.Context) (result *cube.Cube, err error) {
	if op.ChRef<0 || op.ChRef>=f.Channels {
		return nil, errors.New(fmt.Sprintf("%d: reference channel %d out of range for %d channels", f.ID, op.ChRef, f.Channels))
	}
	if op.StripChRef && f.Channels<2 {
		return nil, errors.New(fmt.Sprintf("%d: cannot strip the only channel", f.ID))
	}
	ref:=f.Channel(op.ChRef)
	for ch:=int32(0); ch<f.Channels; ch++ {
		if ch==op.ChRef { continue }
		data:=f.Channel(ch)
		for i, v:=range data {
			if !cube.Valid(v) { data[i]=0; continue }
			r:=float32(0)
			if cube.Valid(ref[i]) { r=v/ref[i] }
			if op.LogTransf {
				if r<=0 { r=1 } // flushed to log zero
				r=float32(math.Log10(float64(r)))
			}
			if op.Trim {
				if r<op.TrimMin { r=op.TrimMin } else if r>op.TrimMax { r=op.TrimMax }
			}
			data[i]=r
		}
	}
	if !op.StripChRef {
		fmt.Fprintf(c.Log, "%d: Divided channels by channel %d\n", f.ID, op.ChRef)
		return f, nil
	}
	res:=cube.NewCube(f.Width, f.Height, f.Channels-1, nil)
	res.ID, res.FileName=f.ID, f.FileName
	o:=int32(0)
	for ch:=int32(0); ch<f.Channels; ch++ {
		if ch==op.ChRef { continue }
		copy(res.Channel(o), f.Channel(ch))
		o++
	}
	fmt.Fprintf(c.Log, "%d: Divided channels by channel %d and stripped it\n", f.ID, op.ChRef)
	return res, nil
}
