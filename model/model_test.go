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

package model

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func newTestModel() *FactorizationMachine {
	fm := NewFactorizationMachine(
		[]int64{1, 2, 3},
		[]int64{10, 20, 30},
		[]string{"Action", "Comedy", "Drama"},
		2, 1, 5)
	fm.B = 2
	// user weights
	fm.W[0] = 0.5
	// movie weights
	fm.W[3] = 1
	fm.W[4] = 0.5
	// genre weights
	fm.W[6] = 0.25
	fm.V[0][0] = 0.5
	fm.V[3][0] = 0.5
	return fm
}

func TestScore(t *testing.T) {
	fm := newTestModel()
	assert.False(t, fm.Invalid())
	assert.Equal(t, 9, fm.NumFeatures())
	// b + w_user + w_movie + w_genre + <v_user, v_movie>
	score := fm.Score(0, 0, []float32{1, 0, 0})
	assert.InDelta(t, 2+0.5+1+0.25+0.25, score, 1e-5)
	// determinism
	assert.Equal(t, score, fm.Score(0, 0, []float32{1, 0, 0}))
	// clamped to the rating range
	fm.B = 100
	assert.Equal(t, float32(5), fm.Score(0, 0, []float32{1, 0, 0}))
	fm.B = -100
	assert.Equal(t, float32(1), fm.Score(0, 0, []float32{1, 0, 0}))
}

func TestIsValidScore(t *testing.T) {
	assert.True(t, IsValidScore(3.5))
	assert.False(t, IsValidScore(math32.NaN()))
	assert.False(t, IsValidScore(math32.Inf(1)))
	assert.False(t, IsValidScore(math32.Inf(-1)))
}

func TestMarshal(t *testing.T) {
	fm := newTestModel()
	buf := bytes.NewBuffer(nil)
	err := fm.Marshal(buf)
	assert.NoError(t, err)
	fmCopy := new(FactorizationMachine)
	err = fmCopy.Unmarshal(buf)
	assert.NoError(t, err)
	assert.Equal(t, fm, fmCopy)
	assert.Equal(t, fm.Score(1, 2, []float32{0, 1, 0}), fmCopy.Score(1, 2, []float32{0, 1, 0}))
}

func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.bin")
	fm := newTestModel()
	err := Save(path, fm)
	assert.NoError(t, err)
	fmCopy, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, fm, fmCopy)
	// missing file
	_, err = Load(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}
