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
	"errors"
	"fmt"
	"math"
	"github.com/cverona/cutprep/internal/qsort"
)

// Basic statistics on a sample of valid pixel values
type Stats struct {
	Min    float32  // Minimum
	Max    float32  // Maximum
	Mean   float32  // Mean (average)
	StdDev float32  // Standard deviation (norm 2, sigma)
	Num    int      // Number of samples
}

var ErrEmptySample=errors.New("empty valid pixel sample")

// Pretty print basic stats to string
func (s *Stats) String() string {
	return fmt.Sprintf("Min %.6g Max %.6g Mean %.6g StdDev %.6g Num %d",
	                   s.Min, s.Max, s.Mean, s.StdDev, s.Num)
}

// Calculate basic statistics for a sample of valid pixel values.
// The sample must already have invalid pixels filtered out
func Calc(data []float32) (s *Stats, err error) {
	if len(data)==0 { return nil, ErrEmptySample }
	s=&Stats{Num: len(data)}
	s.Min, s.Mean, s.Max=calcMinMeanMax(data)

	variance:=calcVariance(data, s.Mean)
	s.StdDev=float32(math.Sqrt(float64(variance)))

	return s, nil
}

// Calculate minimum, mean and maximum of given data
func calcMinMeanMax(data []float32) (min, mean, max float32) {
	mmin, mmean, mmax:=data[0], float64(0), data[0]
	for _,v := range data {
		if v<mmin {
			mmin=v
		}
		if v>mmax {
			mmax=v
		}
		mmean+=float64(v)
	}
	return mmin, float32(mmean/float64(len(data))), mmax
}

// Calculate variance of given data from provided mean
func calcVariance(data []float32, mean float32) (result float64) {
	variance:=float64(0)
	for _,v :=range data {
		diff:=float64(v-mean)
		variance+=diff*diff
	}
	return variance/float64(len(data))
}

func MeanStdDev(xs []float32) (mean, stdDev float32) {
	xmean:=float32(0)
	for _,x:=range(xs) { xmean+=x }
	xmean/=float32(len(xs))
	xvar:=float32(0)
	for _,x:=range(xs) { diff:=x-xmean; xvar+=diff*diff }
	xvar/=float32(len(xs))
	xstddev:=float32(math.Sqrt(float64(xvar)))
	return xmean, xstddev
}

// Returns the median of the data. Does not change the data
func Median(data []float32) float32 {
	tmp:=make([]float32, len(data))
	copy(tmp, data)
	return qsort.QSelectMedianFloat32(tmp)
}

const sigmaClipMaxIters=5

// Returns the mean, median and standard deviation of the sample after
// iterative sigma clipping about the running median: elements farther than
// sigma standard deviations from the median are discarded, and the process
// repeats until no further elements are removed or the iteration cap is hit.
// The sample must already have invalid pixels filtered out
func SigmaClipped(data []float32, sigma float32) (mean, median, stdDev float32, err error) {
	return SigmaClippedLowHigh(data, sigma, sigma)
}

// Sigma clipping with separate lower and upper rejection thresholds
func SigmaClippedLowHigh(data []float32, sigmaLow, sigmaHigh float32) (mean, median, stdDev float32, err error) {
	if len(data)==0 { return 0,0,0, ErrEmptySample }

	remaining:=make([]float32, len(data))
	copy(remaining, data)

	for iter:=0; ; iter++ {
		median=qsort.QSelectMedianFloat32(remaining) // reorders, doesnt matter
		mean, stdDev=MeanStdDev(remaining)

		if iter>=sigmaClipMaxIters || len(remaining)<=1 {
			return mean, median, stdDev, nil
		}

		// reject outliers based on sigma
		lowBound :=median - sigmaLow *stdDev
		highBound:=median + sigmaHigh*stdDev
		kept:=0
		for _,r:=range remaining {
			if r>=lowBound && r<=highBound {
				remaining[kept]=r
				kept++
			}
		}
		rejected:=len(remaining)-kept
		remaining=remaining[:kept]

		// once converged, or fully clipped away, return the last stats
		if rejected==0 || kept==0 {
			return mean, median, stdDev, nil
		}
	}
}

// Returns the clipping bounds median-sigmaLow*stdDev and median+sigmaHigh*stdDev
// resulting from iterative sigma clipping of the sample
func SigmaClipBounds(data []float32, sigmaLow, sigmaHigh float32) (low, high float32, err error) {
	_, median, stdDev, err:=SigmaClippedLowHigh(data, sigmaLow, sigmaHigh)
	if err!=nil { return 0,0, err }
	return median-sigmaLow*stdDev, median+sigmaHigh*stdDev, nil
}
