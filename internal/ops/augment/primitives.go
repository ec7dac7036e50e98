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
	"errors"
	"github.com/cverona/cutprep/internal/cube"
)

// A primitive randomized image perturbation. Augmenters drawing per-batch
// parameters hold them until the next Reset
type Augmenter interface {
	Augment(f *cube.Cube, r *Rand) (*cube.Cube, error)
	Reset()
}

// Mirrors the image left to right
type FlipH struct{}

func (a *FlipH) Reset() {}

func (a *FlipH) Augment(f *cube.Cube, r *Rand) (*cube.Cube, error) {
	for ch:=int32(0); ch<f.Channels; ch++ {
		data:=f.Channel(ch)
		for y:=int32(0); y<f.Height; y++ {
			row:=data[y*f.Width:(y+1)*f.Width]
			for l, h:=0, len(row)-1; l<h; l, h=l+1, h-1 {
				row[l], row[h]=row[h], row[l]
			}
		}
	}
	return f, nil
}

// Mirrors the image top to bottom
type FlipV struct{}

func (a *FlipV) Reset() {}

func (a *FlipV) Augment(f *cube.Cube, r *Rand) (*cube.Cube, error) {
	tmp:=make([]float32, f.Width)
	for ch:=int32(0); ch<f.Channels; ch++ {
		data:=f.Channel(ch)
		for lo, hi:=int32(0), f.Height-1; lo<hi; lo, hi=lo+1, hi-1 {
			rowLo:=data[lo*f.Width:(lo+1)*f.Width]
			rowHi:=data[hi*f.Width:(hi+1)*f.Width]
			copy(tmp, rowLo)
			copy(rowLo, rowHi)
			copy(rowHi, tmp)
		}
	}
	return f, nil
}

// Passes the image through unchanged
type NoOp struct{}

func (a *NoOp) Reset() {}

func (a *NoOp) Augment(f *cube.Cube, r *Rand) (*cube.Cube, error) { return f, nil }

// Rotates about the image center by an angle drawn uniformly per image,
// filling pixels that enter the canvas with zero
type Rotate struct {
	MinDeg, MaxDeg float32
}

func (a *Rotate) Reset() {}

func (a *Rotate) Augment(f *cube.Cube, r *Rand) (*cube.Cube, error) {
	deg:=r.Uniform(a.MinDeg, a.MaxDeg)
	res:=f.Rotate(deg, 0)
	if res==nil { return nil, errors.New("rotation failed") }
	return res, nil
}

// Zooms about the image center by a factor drawn uniformly per image.
// Factors below one shrink the content, filling the rim with zero
type Zoom struct {
	MinScale, MaxScale float32
}

func (a *Zoom) Reset() {}

func (a *Zoom) Augment(f *cube.Cube, r *Rand) (*cube.Cube, error) {
	scale:=r.Uniform(a.MinScale, a.MaxScale)
	if scale<=0 { return nil, errors.New("non-positive zoom scale") }
	res:=f.Zoom(scale, 0)
	if res==nil { return nil, errors.New("zoom failed") }
	return res, nil
}

// Applies a Gaussian blur with a kernel width drawn uniformly per image
type Blur struct {
	MinSigma, MaxSigma float32
}

func (a *Blur) Reset() {}

func (a *Blur) Augment(f *cube.Cube, r *Rand) (*cube.Cube, error) {
	sigma:=r.Uniform(a.MinSigma, a.MaxSigma)
	if sigma<=0 { return f, nil }
	return f.GaussianBlur(sigma), nil
}

// Adds zero-centered Gaussian noise with a standard deviation drawn
// uniformly per image. Invalid pixels stay at zero
type Noise struct {
	MinScale, MaxScale float32
}

func (a *Noise) Reset() {}

func (a *Noise) Augment(f *cube.Cube, r *Rand) (*cube.Cube, error) {
	scale:=r.Uniform(a.MinScale, a.MaxScale)
	if scale<=0 { return f, nil }
	for i, v:=range f.Data {
		if !cube.Valid(v) { f.Data[i]=0; continue }
		f.Data[i]=v+scale*r.Normal()
	}
	return f, nil
}

// Applies exactly one of the given augmenters, chosen uniformly per image
type OneOf struct {
	Choices []Augmenter
}

func (a *OneOf) Reset() {
	for _, c:=range a.Choices { c.Reset() }
}

func (a *OneOf) Augment(f *cube.Cube, r *Rand) (*cube.Cube, error) {
	if len(a.Choices)==0 { return f, nil }
	return a.Choices[r.Intn(len(a.Choices))].Augment(f, r)
}

// Applies the wrapped augmenter with probability P, per image
type Sometimes struct {
	P   float32
	Aug Augmenter
}

func (a *Sometimes) Reset() { a.Aug.Reset() }

func (a *Sometimes) Augment(f *cube.Cube, r *Rand) (*cube.Cube, error) {
	if r.Float32()>=a.P { return f, nil }
	return a.Aug.Augment(f, r)
}

// Applies the given augmenters in order
type Chain struct {
	Augs []Augmenter
}

func (a *Chain) Reset() {
	for _, c:=range a.Augs { c.Reset() }
}

func (a *Chain) Augment(f *cube.Cube, r *Rand) (res *cube.Cube, err error) {
	res=f
	for _, c:=range a.Augs {
		res, err=c.Augment(res, r)
		if err!=nil { return nil, err }
		if res==nil { return nil, errors.New("augmenter returned no image") }
	}
	return res, nil
}
