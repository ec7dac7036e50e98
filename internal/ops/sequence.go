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


package ops

import (
	"encoding/json"
	"errors"
	"fmt"
)

// A sequence of operators. Applies the enclosed steps in order, left to right
type OpSequence struct {
	OpBase
	Steps     []Operator        `json:"-"`
	StepsRaw  []json.RawMessage `json:"steps"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpSequenceDefault()}) } // register the operator for JSON decoding

func NewOpSequenceDefault() *OpSequence { return NewOpSequence() }

func NewOpSequence(steps ...Operator) *OpSequence {
	return &OpSequence{
		OpBase : OpBase{Type: "seq", Active: true},
		Steps  : steps,
	}
}

func (op *OpSequence) Append(steps ...Operator) {
	op.Steps=append(op.Steps, steps...)
}

// True if any active step is an augmenter
func (op *OpSequence) Augmenter() bool {
	for _,step:=range op.Steps {
		if step.IsActive() && step.Augmenter() { return true }
	}
	return false
}

// Unmarshals a sequence of polymorphic operators from JSON, using the registered factories
func (op *OpSequence) UnmarshalJSON(b []byte) error {
	type defaults OpSequence
	def:=defaults(*NewOpSequenceDefault())
	err:=json.Unmarshal(b, &def)
	if err!=nil { return err }
	*op=OpSequence(def)

	op.Steps=make([]Operator, len(op.StepsRaw))
	for i,raw:=range op.StepsRaw {
		step, err:=UnmarshalOperator(raw)
		if err!=nil { return err }
		op.Steps[i]=step
	}
	op.StepsRaw=nil
	return nil
}

// Marshals a sequence of polymorphic operators to JSON
func (op *OpSequence) MarshalJSON() (bs []byte, err error) {
	type defaults OpSequence
	def:=defaults(*op)
	def.StepsRaw=make([]json.RawMessage, len(def.Steps))
	for i,step:=range def.Steps {
		def.StepsRaw[i], err=json.Marshal(step)
		if err!=nil { return nil, err }
	}
	return json.Marshal(&def)
}

// Unmarshals a single polymorphic operator from JSON, looking up the factory via the type field
func UnmarshalOperator(raw json.RawMessage) (Operator, error) {
	var t struct {
		Type string `json:"type"`
	}
	if err:=json.Unmarshal(raw, &t); err!=nil { return nil, err }
	factory:=GetOperatorFactory(t.Type)
	if factory==nil { return nil, errors.New(fmt.Sprintf("unknown operator type %s", t.Type)) }
	op:=factory()
	if err:=json.Unmarshal(raw, op); err!=nil { return nil, err }
	return op, nil
}

// Applies all steps in the sequence, in order. Skips inactive steps
func (op *OpSequence) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	outs=ins
	for _,step:=range op.Steps {
		if !step.IsActive() { continue }
		outs, err=step.MakePromises(outs, c)
		if err!=nil { return nil, err }
	}
	return outs, nil
}

// Returns a new sequence holding only the non-augmenter steps of the given sequence,
// in their original order. Nested sequences are filtered recursively.
// Shares the remaining operator instances with the original
func WithoutAugmenters(op *OpSequence) *OpSequence {
	res:=NewOpSequence()
	res.Active=op.Active
	for _,step:=range op.Steps {
		if nested, ok:=step.(*OpSequence); ok {
			res.Append(WithoutAugmenters(nested))
			continue
		}
		if step.Augmenter() { continue }
		res.Append(step)
	}
	return res
}
