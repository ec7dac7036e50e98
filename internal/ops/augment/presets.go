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
)

// Builds the named fixed composition of augmentation primitives.
//
//   cae, cnn  - random flip, random rotation
//   simclr    - random flip, random rotation, randomized contrast stretch,
//               sometimes a zoom-out or a blur
//   simclr2   - random flip, random rotation, sometimes a zoom-out,
//               sometimes a blur, sometimes additive noise
//   simclr3   - random flip, random rotation, then one of zoom-out, blur,
//               additive noise or nothing
//   simclr4   - random flip, random rotation, a randomized contrast or
//               sigmoid stretch, sometimes a zoom-out or a blur, sometimes
//               a percentile threshold
func NewPreset(name string) (Augmenter, error) {
	switch name {
	case "cae", "cnn":
		return &Chain{Augs: []Augmenter{
			&OneOf{Choices: []Augmenter{&FlipH{}, &FlipV{}, &NoOp{}}},
			&Rotate{MinDeg: -90, MaxDeg: 90},
		}}, nil
	case "simclr":
		return &Chain{Augs: []Augmenter{
			&OneOf{Choices: []Augmenter{&FlipH{}, &FlipV{}, &NoOp{}}},
			&Rotate{MinDeg: -90, MaxDeg: 90},
			&RandomZScale{MinContrast: 0.1, MaxContrast: 0.5, PerChannel: true},
			&Sometimes{P: 0.5, Aug: &OneOf{Choices: []Augmenter{
				&Zoom{MinScale: 0.5, MaxScale: 1.0},
				&Blur{MinSigma: 1.0, MaxSigma: 3.0},
			}}},
		}}, nil
	case "simclr2":
		return &Chain{Augs: []Augmenter{
			&OneOf{Choices: []Augmenter{&FlipH{}, &FlipV{}}},
			&Rotate{MinDeg: -90, MaxDeg: 90},
			&Sometimes{P: 0.5, Aug: &Zoom{MinScale: 0.5, MaxScale: 1.0}},
			&Sometimes{P: 0.5, Aug: &Blur{MinSigma: 0.1, MaxSigma: 2.0}},
			&Sometimes{P: 0.5, Aug: &Noise{MinScale: 0.0, MaxScale: 0.1}},
		}}, nil
	case "simclr3":
		return &Chain{Augs: []Augmenter{
			&OneOf{Choices: []Augmenter{&FlipH{}, &FlipV{}, &NoOp{}}},
			&Rotate{MinDeg: -90, MaxDeg: 90},
			&OneOf{Choices: []Augmenter{
				&Zoom{MinScale: 0.5, MaxScale: 1.0},
				&Blur{MinSigma: 0.1, MaxSigma: 2.0},
				&Noise{MinScale: 0.0, MaxScale: 0.1},
				&NoOp{},
			}},
		}}, nil
	case "simclr4":
		return &Chain{Augs: []Augmenter{
			&OneOf{Choices: []Augmenter{&FlipH{}, &FlipV{}, &NoOp{}}},
			&Rotate{MinDeg: -90, MaxDeg: 90},
			&OneOf{Choices: []Augmenter{
				&RandomZScale{MinContrast: 0.1, MaxContrast: 0.5},
				&RandomSigmoid{MinGain: 10, MaxGain: 30, MinCutoff: 0.5, MaxCutoff: 0.5},
			}},
			&Sometimes{P: 0.5, Aug: &OneOf{Choices: []Augmenter{
				&Zoom{MinScale: 0.5, MaxScale: 1.0},
				&Blur{MinSigma: 1.0, MaxSigma: 3.0},
			}}},
			&Sometimes{P: 0.5, Aug: &RandomPercentileThresh{MinPercentile: 40, MaxPercentile: 60}},
		}}, nil
	}
	return nil, errors.New(fmt.Sprintf("unknown augmentation preset %s", name))
}

// The recognized preset names, in a stable order
func PresetNames() []string {
	return []string{"cae", "cnn", "simclr", "simclr2", "simclr3", "simclr4"}
}
