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
	"fmt"
	"math"
	"gonum.org/v1/gonum/stat"
	"github.com/cverona/cutprep/internal/cube"
	"github.com/cverona/cutprep/internal/qsort"
	statspkg "github.com/cverona/cutprep/internal/stats"
)

// The photometric augmenters below draw their parameters lazily on first use
// and reuse them for every image until the next Reset, so one parameter set
// covers a whole batch.
// They all share one masking rule: invalidity is recomputed on the input, and
// the result is zeroed at those coordinates after the transform.

func invalidIndices(f *cube.Cube) []int32 {
	var idx []int32
	for i, v:=range f.Data {
		if !cube.Valid(v) { idx=append(idx, int32(i)) }
	}
	return idx
}

func zeroAt(f *cube.Cube, idx []int32) {
	for _, i:=range idx { f.Data[i]=0 }
}

// Contrast-stretches with a robust zscale interval whose contrast parameter
// is drawn uniformly once per batch, optionally one draw per channel
type RandomZScale struct {
	MinContrast, MaxContrast float32
	PerChannel               bool

	drawn                    bool
	contrasts                []float32
}

func (a *RandomZScale) Reset() { a.drawn=false; a.contrasts=nil }

func (a *RandomZScale) draw(nChans int32, r *Rand) {
	n:=1
	if a.PerChannel { n=int(nChans) }
	a.contrasts=make([]float32, n)
	for i:=range a.contrasts {
		a.contrasts[i]=r.Uniform(a.MinContrast, a.MaxContrast)
	}
	a.drawn=true
}

func (a *RandomZScale) Augment(f *cube.Cube, r *Rand) (*cube.Cube, error) {
	if !a.drawn { a.draw(f.Channels, r) }
	invalid:=invalidIndices(f)
	for ch:=int32(0); ch<f.Channels; ch++ {
		contrast:=a.contrasts[0]
		if a.PerChannel && int(ch)<len(a.contrasts) { contrast=a.contrasts[ch] }
		data:=f.Channel(ch)
		sample:=cube.GatherValid(data, nil)
		if len(sample)==0 { return nil, errors.New(fmt.Sprintf("channel %d has no valid pixels", ch)) }
		low, high:=statspkg.ZScaleInterval(sample, contrast)
		if high-low<1e-12 { return nil, errors.New(fmt.Sprintf("channel %d contrast interval is degenerate", ch)) }
		scale:=1.0/(high-low)
		for i, v:=range data {
			s:=(v-low)*scale
			if s<0 { s=0 } else if s>1 { s=1 }
			data[i]=s
		}
	}
	zeroAt(f, invalid)
	return f, nil
}

// Applies sigmoid contrast out=1/(1+exp(gain*(cutoff-x))) to intensities
// rescaled to [0,1]. Gain and cutoff are drawn uniformly once per batch
type RandomSigmoid struct {
	MinGain, MaxGain     float32
	MinCutoff, MaxCutoff float32

	drawn                bool
	gain, cutoff         float32
}

func (a *RandomSigmoid) Reset() { a.drawn=false }

func (a *RandomSigmoid) Augment(f *cube.Cube, r *Rand) (*cube.Cube, error) {
	if !a.drawn {
		a.gain  =r.Uniform(a.MinGain, a.MaxGain)
		a.cutoff=r.Uniform(a.MinCutoff, a.MaxCutoff)
		a.drawn =true
	}
	invalid:=invalidIndices(f)
	for ch:=int32(0); ch<f.Channels; ch++ {
		data:=f.Channel(ch)
		s, err:=statspkg.Calc(cube.GatherValid(data, nil))
		if err!=nil { return nil, errors.New(fmt.Sprintf("channel %d has no valid pixels", ch)) }
		if s.Max-s.Min<1e-12 { return nil, errors.New(fmt.Sprintf("channel %d is degenerate", ch)) }
		scale:=1.0/(s.Max-s.Min)
		for i, v:=range data {
			x:=(v-s.Min)*scale
			data[i]=float32(1.0/(1.0+math.Exp(float64(a.gain*(a.cutoff-x)))))
		}
	}
	zeroAt(f, invalid)
	return f, nil
}

// Zeroes pixels below a per-channel percentile threshold. The percentile is
// drawn uniformly once per batch and shared across channels
type RandomPercentileThresh struct {
	MinPercentile, MaxPercentile float32

	drawn                        bool
	percentile                   float32
}

func (a *RandomPercentileThresh) Reset() { a.drawn=false }

func (a *RandomPercentileThresh) Augment(f *cube.Cube, r *Rand) (*cube.Cube, error) {
	if !a.drawn {
		a.percentile=r.Uniform(a.MinPercentile, a.MaxPercentile)
		a.drawn=true
	}
	p:=float64(a.percentile)/100.0
	if p<0 { p=0 } else if p>1 { p=1 }
	for ch:=int32(0); ch<f.Channels; ch++ {
		data:=f.Channel(ch)
		sample:=cube.GatherValid(data, nil)
		if len(sample)==0 { return nil, errors.New(fmt.Sprintf("channel %d has no valid pixels", ch)) }
		qsort.QSortFloat32(sample)
		sorted:=make([]float64, len(sample))
		for i, v:=range sample { sorted[i]=float64(v) }
		thresh:=float32(stat.Quantile(p, stat.Empirical, sorted, nil))
		for i, v:=range data {
			if !cube.Valid(v) { data[i]=0; continue }
			if v<thresh { data[i]=0 }
		}
	}
	return f, nil
}
