// Copyright 2025 cinematch Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package model consumes the trained scoring model. The model is produced by
// an offline training pipeline and loaded here as a read-only artifact; this
// package never fits or updates parameters.
package model

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/chewxy/math32"
	"github.com/juju/errors"

	"github.com/cinematch/cinematch/base"
	"github.com/cinematch/cinematch/base/encoding"
)

// FactorizationMachine is a trained factorization machine for rating
// regression. Features live in a unified space: user indices first, movie
// indices next, genre columns last. All fields are read-only after load, so a
// single instance is safe for concurrent scoring.
type FactorizationMachine struct {
	// Identity encoders fitted at training time.
	UserIndex  *base.Index
	MovieIndex *base.Index
	// GenreColumns is the genre vocabulary defining the width and column
	// order of every genre vector.
	GenreColumns []string
	// Model parameters
	B         float32
	W         []float32
	V         [][]float32
	MinTarget float32
	MaxTarget float32
}

// NewFactorizationMachine creates a zero-valued model over the given closed
// identifier sets and genre vocabulary. The training exporter fills in the
// parameters before marshaling.
func NewFactorizationMachine(userIds, movieIds []int64, genreColumns []string, nFactors int, minTarget, maxTarget float32) *FactorizationMachine {
	fm := &FactorizationMachine{
		UserIndex:    base.NewIndex(),
		MovieIndex:   base.NewIndex(),
		GenreColumns: genreColumns,
		MinTarget:    minTarget,
		MaxTarget:    maxTarget,
	}
	for _, id := range userIds {
		fm.UserIndex.Add(id)
	}
	for _, id := range movieIds {
		fm.MovieIndex.Add(id)
	}
	fm.W = make([]float32, fm.NumFeatures())
	fm.V = base.NewMatrix32(fm.NumFeatures(), nFactors)
	return fm
}

// NumFeatures returns the width of the unified feature space.
func (fm *FactorizationMachine) NumFeatures() int {
	return int(fm.UserIndex.Len()) + int(fm.MovieIndex.Len()) + len(fm.GenreColumns)
}

// Invalid reports whether the model has no loaded parameters.
func (fm *FactorizationMachine) Invalid() bool {
	return fm == nil || fm.W == nil
}

// Score predicts the rating given by a user to a movie. Inputs are dense
// indices from the model's own encoders plus the movie's genre vector, which
// must be aligned to GenreColumns. The result is clamped to the rating range
// seen during training.
func (fm *FactorizationMachine) Score(userIndex, movieIndex int32, genreVector []float32) float32 {
	features := make([]int32, 0, 2+len(genreVector))
	values := make([]float32, 0, 2+len(genreVector))
	features = append(features, userIndex)
	values = append(values, 1)
	features = append(features, fm.UserIndex.Len()+movieIndex)
	values = append(values, 1)
	offset := fm.UserIndex.Len() + fm.MovieIndex.Len()
	for i, v := range genreVector {
		if v != 0 {
			features = append(features, offset+int32(i))
			values = append(values, v)
		}
	}
	pred := fm.internalScore(features, values)
	if pred < fm.MinTarget {
		pred = fm.MinTarget
	} else if pred > fm.MaxTarget {
		pred = fm.MaxTarget
	}
	return pred
}

func (fm *FactorizationMachine) internalScore(features []int32, values []float32) float32 {
	// w_0
	pred := fm.B
	// \sum^n_{i=1} w_i x_i
	for it, i := range features {
		pred += fm.W[i] * values[it]
	}
	// \sum^n_{i=1}\sum^n_{j=i+1} <v_i,v_j> x_i x_j
	sum := float32(0)
	nFactors := 0
	if len(fm.V) > 0 {
		nFactors = len(fm.V[0])
	}
	for f := 0; f < nFactors; f++ {
		a, b := float32(0), float32(0)
		for it, i := range features {
			a += fm.V[i][f] * values[it]
			b += fm.V[i][f] * fm.V[i][f] * values[it] * values[it]
		}
		sum += a*a - b
	}
	pred += sum / 2
	return pred
}

// IsValidScore reports whether a predicted rating is a usable number.
func IsValidScore(score float32) bool {
	return !math32.IsNaN(score) && !math32.IsInf(score, 0)
}

// Marshal model into byte stream.
func (fm *FactorizationMachine) Marshal(w io.Writer) error {
	// write genre vocabulary
	err := encoding.WriteGob(w, fm.GenreColumns)
	if err != nil {
		return errors.Trace(err)
	}
	// write indices
	err = base.MarshalIndex(w, fm.UserIndex)
	if err != nil {
		return errors.Trace(err)
	}
	err = base.MarshalIndex(w, fm.MovieIndex)
	if err != nil {
		return errors.Trace(err)
	}
	// write scalars
	err = binary.Write(w, binary.LittleEndian, fm.MinTarget)
	if err != nil {
		return errors.Trace(err)
	}
	err = binary.Write(w, binary.LittleEndian, fm.MaxTarget)
	if err != nil {
		return errors.Trace(err)
	}
	err = binary.Write(w, binary.LittleEndian, fm.B)
	if err != nil {
		return errors.Trace(err)
	}
	var nFactors int32
	if len(fm.V) > 0 {
		nFactors = int32(len(fm.V[0]))
	}
	err = binary.Write(w, binary.LittleEndian, nFactors)
	if err != nil {
		return errors.Trace(err)
	}
	// write vector
	err = binary.Write(w, binary.LittleEndian, fm.W)
	if err != nil {
		return errors.Trace(err)
	}
	// write matrix
	err = encoding.WriteMatrix(w, fm.V)
	if err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Unmarshal model from byte stream.
func (fm *FactorizationMachine) Unmarshal(r io.Reader) error {
	// read genre vocabulary
	err := encoding.ReadGob(r, &fm.GenreColumns)
	if err != nil {
		return errors.Trace(err)
	}
	// read indices
	fm.UserIndex, err = base.UnmarshalIndex(r)
	if err != nil {
		return errors.Trace(err)
	}
	fm.MovieIndex, err = base.UnmarshalIndex(r)
	if err != nil {
		return errors.Trace(err)
	}
	// read scalars
	err = binary.Read(r, binary.LittleEndian, &fm.MinTarget)
	if err != nil {
		return errors.Trace(err)
	}
	err = binary.Read(r, binary.LittleEndian, &fm.MaxTarget)
	if err != nil {
		return errors.Trace(err)
	}
	err = binary.Read(r, binary.LittleEndian, &fm.B)
	if err != nil {
		return errors.Trace(err)
	}
	var nFactors int32
	err = binary.Read(r, binary.LittleEndian, &nFactors)
	if err != nil {
		return errors.Trace(err)
	}
	// read vector
	fm.W = make([]float32, fm.NumFeatures())
	err = binary.Read(r, binary.LittleEndian, fm.W)
	if err != nil {
		return errors.Trace(err)
	}
	// read matrix
	fm.V = base.NewMatrix32(fm.NumFeatures(), int(nFactors))
	err = encoding.ReadMatrix(r, fm.V)
	if err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Load reads a trained model from the artifact file.
func Load(path string) (*FactorizationMachine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open model %s", path)
	}
	defer f.Close()
	fm := new(FactorizationMachine)
	if err = fm.Unmarshal(f); err != nil {
		return nil, errors.Trace(err)
	}
	return fm, nil
}

// Save writes a trained model to the artifact file. Used by the offline
// training exporter and tests.
func Save(path string, fm *FactorizationMachine) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Annotatef(err, "failed to create model %s", path)
	}
	defer f.Close()
	return errors.Trace(fm.Marshal(f))
}
