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
	"fmt"
	"net/http"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/cinematch/cinematch/base/log"
	"github.com/cinematch/cinematch/catalog"
	"github.com/cinematch/cinematch/config"
	"github.com/cinematch/cinematch/model"
	"github.com/cinematch/cinematch/recommend"
)

// RestServer implements the REST-ful inference API. All referenced state is
// loaded once before serving and read-only afterwards.
type RestServer struct {
	Config      *config.Config
	Catalog     *catalog.Catalog
	Model       *model.FactorizationMachine
	Recommender *recommend.Recommender
	HttpHost    string
	HttpPort    int
	WebService  *restful.WebService
}

// StartHttpServer starts the REST-ful API server.
func (s *RestServer) StartHttpServer() {
	// register restful APIs
	s.CreateWebService()
	restful.DefaultContainer.Add(s.WebService)
	// register openapi spec
	specConfig := restfulspec.Config{
		WebServices: restful.RegisteredWebServices(),
		APIPath:     "/apidocs.json",
	}
	restful.DefaultContainer.Add(restfulspec.NewOpenAPIService(specConfig))
	// register prometheus
	http.Handle("/metrics", promhttp.Handler())

	log.Logger().Info("start http server",
		zap.String("url", fmt.Sprintf("http://%s:%d", s.HttpHost, s.HttpPort)))
	log.Logger().Fatal("failed to start http server",
		zap.Error(http.ListenAndServe(fmt.Sprintf("%s:%d", s.HttpHost, s.HttpPort), nil)))
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	chain.ProcessFilter(req, resp)
	log.Logger().Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
		zap.Int("status_code", resp.StatusCode()))
}

// HealthResponse is the response of the health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// MovieSummary is a catalog entry with genres in their wire form.
type MovieSummary struct {
	MovieId int64  `json:"movieId"`
	Title   string `json:"title"`
	Genres  string `json:"genres"`
}

// MovieList is the response of the movie listing.
type MovieList struct {
	Movies []MovieSummary `json:"movies"`
}

// UserList is the response of the user listing.
type UserList struct {
	UserIds []int64 `json:"userIds"`
}

// PredictRequest is the payload of a rating prediction. Pointer fields
// distinguish an absent id from a zero id.
type PredictRequest struct {
	UserId  *int64 `json:"userId"`
	MovieId *int64 `json:"movieId"`
}

// RecommendRequest is the payload of a recommendation query.
type RecommendRequest struct {
	UserId *int64 `json:"userId"`
	TopN   *int   `json:"topN"`
}

// RecommendResponse is the response of a recommendation query.
type RecommendResponse struct {
	UserId          int64                        `json:"userId"`
	Recommendations []recommend.PredictionResult `json:"recommendations"`
}

// CreateWebService creates web service.
func (s *RestServer) CreateWebService() {
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/")
	ws.Filter(LogFilter)

	// Health check
	ws.Route(ws.GET("/health").To(s.getHealth).
		Doc("Check the health of the server.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Writes(HealthResponse{}))
	// Get movies
	ws.Route(ws.GET("/movies").To(s.getMovies).
		Doc("Get the list of all movies.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"movie"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Writes(MovieList{}))
	// Get users
	ws.Route(ws.GET("/users").To(s.getUsers).
		Doc("Get the list of all user IDs.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"user"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Writes(UserList{}))
	// Predict rating
	ws.Route(ws.POST("/predict").To(s.predict).
		Doc("Predict the rating for a user-movie pair.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"prediction"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Reads(PredictRequest{}).
		Writes(recommend.PredictionResult{}))
	// Recommend movies
	ws.Route(ws.POST("/recommend").To(s.recommendMovies).
		Doc("Get the top N movie recommendations for a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"prediction"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Reads(RecommendRequest{}).
		Writes(RecommendResponse{}))
}

func (s *RestServer) getHealth(_ *restful.Request, response *restful.Response) {
	Ok(response, HealthResponse{Status: "healthy", Message: "cinematch server is running"})
}

func (s *RestServer) getMovies(request *restful.Request, response *restful.Response) {
	// Authorize
	if !s.auth(request, response) {
		return
	}
	Ok(response, MovieList{Movies: lo.Map(s.Catalog.Movies(), func(movie catalog.Movie, _ int) MovieSummary {
		return MovieSummary{
			MovieId: movie.MovieId,
			Title:   movie.Title,
			Genres:  movie.GenreString(),
		}
	})})
}

func (s *RestServer) getUsers(request *restful.Request, response *restful.Response) {
	// Authorize
	if !s.auth(request, response) {
		return
	}
	Ok(response, UserList{UserIds: s.Model.UserIndex.GetIds()})
}

func (s *RestServer) predict(request *restful.Request, response *restful.Response) {
	// Authorize
	if !s.auth(request, response) {
		return
	}
	// Parse payload
	var payload PredictRequest
	if err := request.ReadEntity(&payload); err != nil {
		BadRequest(response, err)
		return
	}
	if payload.UserId == nil || payload.MovieId == nil {
		BadRequest(response, errors.BadRequestf("userId and movieId are required"))
		return
	}
	start := time.Now()
	result, err := s.Recommender.Predict(*payload.UserId, *payload.MovieId)
	if err != nil {
		Error(response, err)
		return
	}
	PredictSeconds.Observe(time.Since(start).Seconds())
	Ok(response, result)
}

func (s *RestServer) recommendMovies(request *restful.Request, response *restful.Response) {
	// Authorize
	if !s.auth(request, response) {
		return
	}
	// Parse payload
	var payload RecommendRequest
	if err := request.ReadEntity(&payload); err != nil {
		BadRequest(response, err)
		return
	}
	if payload.UserId == nil {
		BadRequest(response, errors.BadRequestf("userId is required"))
		return
	}
	topN := s.Config.Recommend.DefaultN
	if payload.TopN != nil {
		topN = *payload.TopN
	}
	start := time.Now()
	results, err := s.Recommender.Recommend(*payload.UserId, topN)
	if err != nil {
		Error(response, err)
		return
	}
	RecommendSeconds.Observe(time.Since(start).Seconds())
	Ok(response, RecommendResponse{UserId: *payload.UserId, Recommendations: results})
}

// Error maps an error to its HTTP status: domain lookups outside the trained
// set are 404, client payload faults are 400, everything else is surfaced as
// a 500 without killing the process.
func Error(response *restful.Response, err error) {
	switch {
	case errors.Is(err, errors.NotFound):
		PageNotFound(response, err)
	case errors.Is(err, errors.BadRequest):
		BadRequest(response, err)
	default:
		InternalServerError(response, err)
	}
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.Logger().Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// PageNotFound returns a not found error.
func PageNotFound(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteError(http.StatusNotFound, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns an internal server error.
func InternalServerError(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.Logger().Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content interface{}) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.Logger().Error("failed to write json", zap.Error(err))
	}
}

func (s *RestServer) auth(request *restful.Request, response *restful.Response) bool {
	if s.Config.Server.APIKey == "" {
		return true
	}
	apikey := request.HeaderParameter("X-API-Key")
	if apikey == s.Config.Server.APIKey {
		return true
	}
	log.Logger().Error("unauthorized", zap.String("X-API-Key", apikey))
	if err := response.WriteError(http.StatusUnauthorized, fmt.Errorf("unauthorized")); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
	return false
}
