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

package server

import (
	"github.com/emicklei/go-restful/v3"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cinematch/cinematch/base/log"
	"github.com/cinematch/cinematch/catalog"
	"github.com/cinematch/cinematch/config"
	"github.com/cinematch/cinematch/model"
	"github.com/cinematch/cinematch/recommend"
)

// Server is a cinematch inference server node.
type Server struct {
	RestServer
}

// NewServer creates a server node.
func NewServer(cfg *config.Config) *Server {
	return &Server{
		RestServer: RestServer{
			Config:     cfg,
			HttpHost:   cfg.Server.HttpHost,
			HttpPort:   cfg.Server.HttpPort,
			WebService: new(restful.WebService),
		},
	}
}

// LoadArtifacts reads the trained model and the movie table from the model
// directory and wires the recommender. Everything loaded here is read-only
// shared state for the lifetime of the process.
func (s *Server) LoadArtifacts() error {
	fm, err := model.Load(s.Config.ModelPath())
	if err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("loaded model",
		zap.String("path", s.Config.ModelPath()),
		zap.Int32("num_users", fm.UserIndex.Len()),
		zap.Int32("num_movies", fm.MovieIndex.Len()),
		zap.Int("num_genres", len(fm.GenreColumns)))
	ctlg, err := catalog.Load(s.Config.MoviesPath(), fm.GenreColumns)
	if err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("loaded catalog",
		zap.String("path", s.Config.MoviesPath()),
		zap.Int("num_movies", ctlg.Len()))
	recommender, err := recommend.NewRecommender(ctlg, fm, s.Config.Recommend.NumJobs)
	if err != nil {
		return errors.Trace(err)
	}
	s.Model = fm
	s.Catalog = ctlg
	s.Recommender = recommender
	return nil
}

// Serve loads the artifacts and starts the HTTP server. It blocks until the
// process exits.
func (s *Server) Serve() {
	if err := s.LoadArtifacts(); err != nil {
		log.Logger().Fatal("failed to load artifacts", zap.Error(err))
	}
	s.StartHttpServer()
}
