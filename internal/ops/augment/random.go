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
	"math"
	"github.com/valyala/fastrand"
)

// A seedable pseudo-random source owned by one augmentation stage.
// Seed zero self-seeds from entropy on first use
type Rand struct {
	rng fastrand.RNG
}

func NewRand(seed uint32) *Rand {
	r:=&Rand{}
	if seed!=0 { r.rng.Seed(seed) }
	return r
}

func (r *Rand) Seed(seed uint32) {
	if seed!=0 { r.rng.Seed(seed) }
}

// Uniformly distributed float in [0,1)
func (r *Rand) Float32() float32 {
	return float32(float64(r.rng.Uint32())/(1<<32))
}

// Uniformly distributed float in [lo,hi)
func (r *Rand) Uniform(lo, hi float32) float32 {
	return lo+(hi-lo)*r.Float32()
}

// Uniformly distributed int in [0,n)
func (r *Rand) Intn(n int) int {
	return int(r.rng.Uint32n(uint32(n)))
}

// Standard normal deviate via Box-Muller
func (r *Rand) Normal() float32 {
	u1:=float64(r.rng.Uint32()+1)/(1<<32) // avoid log(0)
	u2:=float64(r.rng.Uint32())/(1<<32)
	return float32(math.Sqrt(-2*math.Log(u1))*math.Cos(2*math.Pi*u2))
}
