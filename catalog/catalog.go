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

// Package catalog holds the immutable movie table loaded at startup.
package catalog

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cinematch/cinematch/base/log"
)

// GenreSeparator joins genre tags at the API boundary.
const GenreSeparator = "|"

// Movie is a single catalog entry. Immutable after load.
type Movie struct {
	MovieId int64
	Title   string
	Genres  []string
	// GenreVector is aligned to the catalog's genre vocabulary.
	GenreVector []float32
}

// GenreString returns the genres in their wire form.
func (m *Movie) GenreString() string {
	return strings.Join(m.Genres, GenreSeparator)
}

// Catalog is the read-only table of all known movies in file order.
type Catalog struct {
	movies       []Movie
	positions    map[int64]int
	genreColumns []string
}

// Len returns the number of movies.
func (c *Catalog) Len() int {
	return len(c.movies)
}

// Movies returns all movies in catalog order.
func (c *Catalog) Movies() []Movie {
	return c.movies
}

// Get looks up a movie by its raw ID.
func (c *Catalog) Get(movieId int64) (Movie, bool) {
	if pos, exist := c.positions[movieId]; exist {
		return c.movies[pos], true
	}
	return Movie{}, false
}

// GenreColumns returns the genre vocabulary the genre vectors are aligned to.
func (c *Catalog) GenreColumns() []string {
	return c.genreColumns
}

// Load reads the movie table from a CSV file (movieId,title,genres with
// "|"-joined genres) and builds genre vectors against the given vocabulary.
// The vocabulary comes from the trained model so that vector columns line up
// with the model's feature space.
func Load(path string, genreColumns []string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open movies %s", path)
	}
	defer f.Close()
	return Read(f, genreColumns)
}

// Read parses the movie table from a reader. See Load.
func Read(r io.Reader, genreColumns []string) (*Catalog, error) {
	// the vocabulary must be duplicate free, otherwise two columns would
	// carry the same tag and the vector width would lie
	vocabulary := mapset.NewSet(genreColumns...)
	if vocabulary.Cardinality() != len(genreColumns) {
		return nil, errors.Errorf("duplicate genre tags in vocabulary %v", genreColumns)
	}
	columns := make(map[string]int, len(genreColumns))
	for i, tag := range genreColumns {
		columns[tag] = i
	}
	catalog := &Catalog{
		positions:    make(map[int64]int),
		genreColumns: genreColumns,
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	unknownTags := 0
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		line++
		// skip header
		if line == 1 && record[0] == "movieId" {
			continue
		}
		movieId, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return nil, errors.Annotatef(err, "invalid movie id at line %d", line)
		}
		if _, exist := catalog.positions[movieId]; exist {
			return nil, errors.Errorf("duplicate movie id %d at line %d", movieId, line)
		}
		movie := Movie{
			MovieId:     movieId,
			Title:       record[1],
			GenreVector: make([]float32, len(genreColumns)),
		}
		if record[2] != "" {
			movie.Genres = strings.Split(record[2], GenreSeparator)
		}
		for _, tag := range movie.Genres {
			if i, exist := columns[tag]; exist {
				movie.GenreVector[i] = 1
			} else {
				unknownTags++
			}
		}
		catalog.positions[movieId] = len(catalog.movies)
		catalog.movies = append(catalog.movies, movie)
	}
	if unknownTags > 0 {
		log.Logger().Warn("genre tags outside the training vocabulary",
			zap.Int("num_unknown_tags", unknownTags))
	}
	return catalog, nil
}
