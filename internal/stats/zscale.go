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


package stats

import (
	"math"
	"gonum.org/v1/gonum/stat"
	"github.com/cverona/cutprep/internal/qsort"
)

const (
	zscaleNSamples      = 1000  // maximum number of sample points used for the fit
	zscaleMinNPixels    = 5     // minimum number of points for a usable fit
	zscaleKRej          = 2.5   // rejection threshold in residual standard deviations
	zscaleMaxIterations = 5
	zscaleMaxReject     = 0.5   // abort once more than this fraction is rejected
)

// Returns a robust low/high display interval for the given sample of valid
// pixel values and a contrast parameter in (0,1]. The sample is sorted and a
// line is fitted to the sorted-value-vs-rank relation with iterative rejection
// of the largest residuals; the retained slope, divided by the contrast,
// spans the interval about the sample median. Degenerates to the sample
// min/max when the sample is too small or the fitted slope is not usable.
// Does not change the data
func ZScaleInterval(data []float32, contrast float32) (low, high float32) {
	if len(data)==0 { return 0, 0 }

	samples:=make([]float32, len(data))
	copy(samples, data)
	qsort.QSortFloat32(samples)

	// subsample evenly to bound the fitting cost on large channels
	if len(samples)>zscaleNSamples {
		stride:=float64(len(samples)-1)/float64(zscaleNSamples-1)
		sub:=make([]float32, zscaleNSamples)
		for i:=range sub {
			sub[i]=samples[int(float64(i)*stride)]
		}
		samples=sub
	}

	npix:=len(samples)
	vmin, vmax:=samples[0], samples[npix-1]
	if npix<zscaleMinNPixels || vmin==vmax { return vmin, vmax }

	slope, ngoodpix:=zscaleFitLine(samples)

	minpix:=zscaleMinNPixels
	if mr:=int(float64(npix)*zscaleMaxReject); mr>minpix { minpix=mr }

	if ngoodpix<minpix || slope<=0 || math.IsNaN(float64(slope)) {
		return vmin, vmax
	}

	if contrast>0 { slope=slope/contrast }

	centerPixel:=(npix-1)/2
	median:=0.5*(samples[centerPixel]+samples[npix/2])

	low =median - float32(centerPixel-1)*slope
	high=median + float32(npix-centerPixel)*slope
	if low <vmin { low =vmin }
	if high>vmax { high=vmax }
	return low, high
}

// Fits a line to sorted sample values versus rank, iteratively rejecting
// points whose residual exceeds kRej standard deviations, growing each
// rejection to its immediate neighborhood. Returns the final slope per rank
// and the number of surviving points
func zscaleFitLine(samples []float32) (slope float32, ngoodpix int) {
	npix:=len(samples)
	ngrow:=1
	if g:=npix/100; g>ngrow { ngrow=g }

	bad:=make([]bool, npix)
	ngoodpix=npix
	lastNGoodpix:=npix+1

	xs:=make([]float64, 0, npix)
	ys:=make([]float64, 0, npix)
	var beta float64

	for iter:=0; iter<zscaleMaxIterations; iter++ {
		if ngoodpix>=lastNGoodpix || ngoodpix<zscaleMinNPixels { break }
		lastNGoodpix=ngoodpix

		xs, ys=xs[:0], ys[:0]
		for i,v:=range samples {
			if bad[i] { continue }
			xs=append(xs, float64(i))
			ys=append(ys, float64(v))
		}
		var alpha float64
		alpha, beta=stat.LinearRegression(xs, ys, nil, false)

		// residual spread over the surviving points
		sumSq, n:=0.0, 0
		for i,v:=range samples {
			if bad[i] { continue }
			r:=float64(v) - (alpha+beta*float64(i))
			sumSq+=r*r
			n++
		}
		sigma:=math.Sqrt(sumSq/float64(n))
		threshold:=zscaleKRej*sigma

		for i,v:=range samples {
			r:=math.Abs(float64(v) - (alpha+beta*float64(i)))
			if r>threshold {
				for j:=i-ngrow; j<=i+ngrow; j++ {
					if j>=0 && j<npix { bad[j]=true }
				}
			}
		}

		ngoodpix=0
		for _,b:=range bad {
			if !b { ngoodpix++ }
		}
	}
	return float32(beta), ngoodpix
}
