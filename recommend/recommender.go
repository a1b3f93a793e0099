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

// Package recommend answers rating predictions and top-N recommendations
// from the loaded model and catalog.
package recommend

import (
	"math"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/juju/errors"

	"github.com/cinematch/cinematch/base"
	"github.com/cinematch/cinematch/base/parallel"
	"github.com/cinematch/cinematch/catalog"
	"github.com/cinematch/cinematch/model"
)

var (
	// ErrUserNotFound is returned when a user ID is outside the trained set.
	ErrUserNotFound = errors.NotFoundf("user in training data")
	// ErrMovieNotFound is returned when a movie ID is outside the trained set.
	ErrMovieNotFound = errors.NotFoundf("movie in training data")
)

// PredictionResult is a single scored user-movie pair.
type PredictionResult struct {
	UserId          int64   `json:"userId"`
	MovieId         int64   `json:"movieId"`
	MovieTitle      string  `json:"movieTitle"`
	Genres          string  `json:"genres"`
	PredictedRating float64 `json:"predictedRating"`
}

// Recommender scores user-movie pairs against the full catalog. All fields
// are fixed at construction, so a single instance serves concurrent requests
// without locking.
type Recommender struct {
	catalog *catalog.Catalog
	model   *model.FactorizationMachine
	// scorable marks catalog positions whose movie the model was trained on
	scorable *bitset.BitSet
	numJobs  int
}

// NewRecommender wires a loaded model to a loaded catalog. It verifies the
// invariants between the two artifacts that would otherwise surface as wrong
// answers at request time: every movie the model knows must exist in the
// catalog, and the catalog's genre vectors must be aligned to the model's
// genre vocabulary.
func NewRecommender(ctlg *catalog.Catalog, fm *model.FactorizationMachine, numJobs int) (*Recommender, error) {
	if fm.Invalid() {
		return nil, errors.New("scoring model is not loaded")
	}
	if numJobs < 1 {
		numJobs = 1
	}
	// genre vocabulary must be identical between training and serving,
	// a silent mismatch would mis-score without raising an error
	if len(ctlg.GenreColumns()) != len(fm.GenreColumns) {
		return nil, errors.Errorf("genre vocabulary width mismatch: catalog %d, model %d",
			len(ctlg.GenreColumns()), len(fm.GenreColumns))
	}
	for i, tag := range fm.GenreColumns {
		if ctlg.GenreColumns()[i] != tag {
			return nil, errors.Errorf("genre vocabulary mismatch at column %d: catalog %q, model %q",
				i, ctlg.GenreColumns()[i], tag)
		}
	}
	// every movie known to the model must exist in the catalog
	for _, movieId := range fm.MovieIndex.GetIds() {
		if _, exist := ctlg.Get(movieId); !exist {
			return nil, errors.Errorf("movie %d known to the model is missing from the catalog", movieId)
		}
	}
	// catalog movies outside the trained set are legal, they are skipped by
	// Recommend and rejected by Predict
	scorable := bitset.New(uint(ctlg.Len()))
	for pos, movie := range ctlg.Movies() {
		if fm.MovieIndex.Contains(movie.MovieId) {
			scorable.Set(uint(pos))
		}
	}
	return &Recommender{
		catalog:  ctlg,
		model:    fm,
		scorable: scorable,
		numJobs:  numJobs,
	}, nil
}

// Predict returns the predicted rating for a single user-movie pair.
func (r *Recommender) Predict(userId, movieId int64) (PredictionResult, error) {
	userIndex := r.model.UserIndex.ToNumber(userId)
	if userIndex == base.NotId {
		return PredictionResult{}, errors.Annotatef(ErrUserNotFound, "user ID %d", userId)
	}
	movieIndex := r.model.MovieIndex.ToNumber(movieId)
	if movieIndex == base.NotId {
		return PredictionResult{}, errors.Annotatef(ErrMovieNotFound, "movie ID %d", movieId)
	}
	movie, exist := r.catalog.Get(movieId)
	if !exist {
		// NewRecommender checked this invariant, reaching here means the
		// catalog and the model went out of lockstep
		return PredictionResult{}, errors.Errorf("movie %d known to the model is missing from the catalog", movieId)
	}
	rating := r.model.Score(userIndex, movieIndex, movie.GenreVector)
	if !model.IsValidScore(rating) {
		return PredictionResult{}, errors.Errorf("invalid score for user %d and movie %d", userId, movieId)
	}
	return r.result(userId, &movie, rating), nil
}

// Recommend returns the topN movies with the highest predicted rating for a
// user. Only movies the model was trained on are scored. Ties keep catalog
// order. A non-positive topN yields an empty list.
func (r *Recommender) Recommend(userId int64, topN int) ([]PredictionResult, error) {
	userIndex := r.model.UserIndex.ToNumber(userId)
	if userIndex == base.NotId {
		return nil, errors.Annotatef(ErrUserNotFound, "user ID %d", userId)
	}
	if topN <= 0 {
		return []PredictionResult{}, nil
	}
	movies := r.catalog.Movies()
	ratings := make([]float32, len(movies))
	if err := parallel.Parallel(len(movies), r.numJobs, func(_, pos int) error {
		if !r.scorable.Test(uint(pos)) {
			return nil
		}
		movieIndex := r.model.MovieIndex.ToNumber(movies[pos].MovieId)
		ratings[pos] = r.model.Score(userIndex, movieIndex, movies[pos].GenreVector)
		if !model.IsValidScore(ratings[pos]) {
			return errors.Errorf("invalid score for user %d and movie %d", userId, movies[pos].MovieId)
		}
		return nil
	}); err != nil {
		return nil, errors.Trace(err)
	}
	// collect scorable positions in catalog order so that the stable sort
	// breaks rating ties deterministically
	positions := make([]int, 0, len(movies))
	for pos := range movies {
		if r.scorable.Test(uint(pos)) {
			positions = append(positions, pos)
		}
	}
	sort.SliceStable(positions, func(i, j int) bool {
		return ratings[positions[i]] > ratings[positions[j]]
	})
	if len(positions) > topN {
		positions = positions[:topN]
	}
	results := make([]PredictionResult, 0, len(positions))
	for _, pos := range positions {
		results = append(results, r.result(userId, &movies[pos], ratings[pos]))
	}
	return results, nil
}

func (r *Recommender) result(userId int64, movie *catalog.Movie, rating float32) PredictionResult {
	return PredictionResult{
		UserId:          userId,
		MovieId:         movie.MovieId,
		MovieTitle:      movie.Title,
		Genres:          movie.GenreString(),
		PredictedRating: roundRating(rating),
	}
}

// roundRating rounds a predicted rating to 2 decimal places for display.
func roundRating(rating float32) float64 {
	return math.Round(float64(rating)*100) / 100
}
