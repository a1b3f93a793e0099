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

package recommend

import (
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"

	"github.com/cinematch/cinematch/catalog"
	"github.com/cinematch/cinematch/model"
)

const testMovies = `movieId,title,genres
10,Toy Story (1995),Animation|Comedy
20,"Heat, The (1995)",Action
30,Sudden Death (1995),Action
40,Untrained Movie (2025),Comedy
`

var testGenres = []string{"Action", "Animation", "Comedy"}

// newTestModel builds a model over users {1,2,3} and movies {10,20,30} whose
// predictions reduce to the per-movie weight: 3 for movie 10, 5 for movie 20
// and 4 for movie 30.
func newTestModel() *model.FactorizationMachine {
	fm := model.NewFactorizationMachine(
		[]int64{1, 2, 3},
		[]int64{10, 20, 30},
		testGenres,
		0, 0, 10)
	fm.W[3] = 3
	fm.W[4] = 5
	fm.W[5] = 4
	return fm
}

func newTestCatalog(t *testing.T) *catalog.Catalog {
	ctlg, err := catalog.Read(strings.NewReader(testMovies), testGenres)
	assert.NoError(t, err)
	return ctlg
}

func newTestRecommender(t *testing.T) *Recommender {
	r, err := NewRecommender(newTestCatalog(t), newTestModel(), 1)
	assert.NoError(t, err)
	return r
}

func TestNewRecommender(t *testing.T) {
	ctlg := newTestCatalog(t)
	// a model movie missing from the catalog is a load-time failure
	fm := model.NewFactorizationMachine([]int64{1}, []int64{10, 99}, testGenres, 0, 0, 10)
	_, err := NewRecommender(ctlg, fm, 1)
	assert.Error(t, err)
	// genre vocabulary mismatch is a load-time failure
	badCatalog, err := catalog.Read(strings.NewReader(testMovies), []string{"Action", "Animation"})
	assert.NoError(t, err)
	_, err = NewRecommender(badCatalog, newTestModel(), 1)
	assert.Error(t, err)
	badCatalog, err = catalog.Read(strings.NewReader(testMovies), []string{"Comedy", "Animation", "Action"})
	assert.NoError(t, err)
	_, err = NewRecommender(badCatalog, newTestModel(), 1)
	assert.Error(t, err)
	// an unloaded model is a load-time failure
	_, err = NewRecommender(ctlg, new(model.FactorizationMachine), 1)
	assert.Error(t, err)
}

func TestPredict(t *testing.T) {
	r := newTestRecommender(t)
	result, err := r.Predict(1, 10)
	assert.NoError(t, err)
	assert.Equal(t, PredictionResult{
		UserId:          1,
		MovieId:         10,
		MovieTitle:      "Toy Story (1995)",
		Genres:          "Animation|Comedy",
		PredictedRating: 3,
	}, result)
	// repeated calls return the identical rating
	again, err := r.Predict(1, 10)
	assert.NoError(t, err)
	assert.Equal(t, result, again)
	// unknown user
	_, err = r.Predict(99, 10)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.True(t, errors.Is(err, errors.NotFound))
	// unknown movie
	_, err = r.Predict(1, 99)
	assert.ErrorIs(t, err, ErrMovieNotFound)
	// a catalog movie outside the trained set is unknown to Predict
	_, err = r.Predict(1, 40)
	assert.ErrorIs(t, err, ErrMovieNotFound)
}

func TestPredictRounding(t *testing.T) {
	fm := newTestModel()
	fm.W[3] = 3.14159
	r, err := NewRecommender(newTestCatalog(t), fm, 1)
	assert.NoError(t, err)
	result, err := r.Predict(1, 10)
	assert.NoError(t, err)
	assert.Equal(t, 3.14, result.PredictedRating)
}

func TestRecommend(t *testing.T) {
	r := newTestRecommender(t)
	// ranked by predicted rating descending
	results, err := r.Recommend(1, 2)
	assert.NoError(t, err)
	assert.Equal(t, []int64{20, 30}, lo.Map(results, func(r PredictionResult, _ int) int64 {
		return r.MovieId
	}))
	assert.Equal(t, []float64{5, 4}, lo.Map(results, func(r PredictionResult, _ int) float64 {
		return r.PredictedRating
	}))
	// topN larger than the trained catalog returns every scorable movie once,
	// the untrained movie 40 is skipped
	results, err = r.Recommend(1, 10)
	assert.NoError(t, err)
	assert.Equal(t, []int64{20, 30, 10}, lo.Map(results, func(r PredictionResult, _ int) int64 {
		return r.MovieId
	}))
	// non-positive topN yields an empty list
	results, err = r.Recommend(1, 0)
	assert.NoError(t, err)
	assert.Empty(t, results)
	results, err = r.Recommend(1, -5)
	assert.NoError(t, err)
	assert.Empty(t, results)
	// unknown user
	_, err = r.Recommend(99, 10)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRecommendTies(t *testing.T) {
	fm := newTestModel()
	// equal ratings keep catalog order
	fm.W[3], fm.W[4], fm.W[5] = 4, 4, 4
	r, err := NewRecommender(newTestCatalog(t), fm, 1)
	assert.NoError(t, err)
	results, err := r.Recommend(2, 3)
	assert.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, lo.Map(results, func(r PredictionResult, _ int) int64 {
		return r.MovieId
	}))
}

func TestRecommendParallel(t *testing.T) {
	// scoring with multiple workers returns the same ranking
	r, err := NewRecommender(newTestCatalog(t), newTestModel(), 4)
	assert.NoError(t, err)
	results, err := r.Recommend(3, 3)
	assert.NoError(t, err)
	assert.Equal(t, []int64{20, 30, 10}, lo.Map(results, func(r PredictionResult, _ int) int64 {
		return r.MovieId
	}))
}
