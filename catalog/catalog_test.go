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

package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testMovies = `movieId,title,genres
10,Toy Story (1995),Animation|Comedy
20,"Heat, The (1995)",Action|Crime
30,Sudden Death (1995),Action
40,Unrated Short,
`

func TestRead(t *testing.T) {
	genreColumns := []string{"Action", "Animation", "Comedy", "Crime"}
	catalog, err := Read(strings.NewReader(testMovies), genreColumns)
	assert.NoError(t, err)
	assert.Equal(t, 4, catalog.Len())
	assert.Equal(t, genreColumns, catalog.GenreColumns())
	// catalog preserves file order
	ids := make([]int64, 0, catalog.Len())
	for _, movie := range catalog.Movies() {
		ids = append(ids, movie.MovieId)
	}
	assert.Equal(t, []int64{10, 20, 30, 40}, ids)
	// lookup
	movie, exist := catalog.Get(20)
	assert.True(t, exist)
	assert.Equal(t, "Heat, The (1995)", movie.Title)
	assert.Equal(t, []string{"Action", "Crime"}, movie.Genres)
	assert.Equal(t, "Action|Crime", movie.GenreString())
	assert.Equal(t, []float32{1, 0, 0, 1}, movie.GenreVector)
	// a movie without genres has a zero vector
	movie, exist = catalog.Get(40)
	assert.True(t, exist)
	assert.Empty(t, movie.Genres)
	assert.Equal(t, []float32{0, 0, 0, 0}, movie.GenreVector)
	// unknown movie
	_, exist = catalog.Get(99)
	assert.False(t, exist)
}

func TestReadUnknownTag(t *testing.T) {
	// tags outside the vocabulary don't widen the vector
	catalog, err := Read(strings.NewReader(testMovies), []string{"Action"})
	assert.NoError(t, err)
	movie, _ := catalog.Get(10)
	assert.Equal(t, []float32{0}, movie.GenreVector)
	movie, _ = catalog.Get(20)
	assert.Equal(t, []float32{1}, movie.GenreVector)
}

func TestReadInvalid(t *testing.T) {
	// duplicate vocabulary tag
	_, err := Read(strings.NewReader(testMovies), []string{"Action", "Action"})
	assert.Error(t, err)
	// duplicate movie id
	_, err = Read(strings.NewReader("10,a,Action\n10,b,Action\n"), []string{"Action"})
	assert.Error(t, err)
	// invalid movie id
	_, err = Read(strings.NewReader("abc,a,Action\n"), []string{"Action"})
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.csv")
	err := os.WriteFile(path, []byte(testMovies), 0o644)
	assert.NoError(t, err)
	catalog, err := Load(path, []string{"Action"})
	assert.NoError(t, err)
	assert.Equal(t, 4, catalog.Len())
	// missing file
	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"), []string{"Action"})
	assert.Error(t, err)
}
