// Copyright 2026 olist-intelligence Project Authors
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
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/base/log"
	"github.com/olist-intelligence/olist/config"
	"github.com/olist-intelligence/olist/logics"
	"go.uber.org/zap"
)

// RestServer implements a REST-ful API server.
type RestServer struct {
	Config     *config.Config
	Handle     *logics.ModelHandle
	Ranker     *logics.Ranker
	Popular    *logics.CachedPopularity
	WebService *restful.WebService
}

// LogFilter logs every request with its status code and latency.
func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	chain.ProcessFilter(req, resp)
	RequestSeconds.WithLabelValues(req.SelectedRoutePath()).Observe(time.Since(start).Seconds())
	if req.Request.URL.Path != "/api/health" {
		log.ResponseLogger(resp).Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
			zap.Int("status_code", resp.StatusCode()),
			zap.Duration("duration", time.Since(start)))
	}
}

// RequestIdFilter echoes X-Request-ID or generates a new one.
func RequestIdFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	requestId := req.HeaderParameter(log.RequestIdHeader)
	if requestId == "" {
		requestId = uuid.New().String()
	}
	resp.Header().Set(log.RequestIdHeader, requestId)
	chain.ProcessFilter(req, resp)
}

// CreateWebService creates web service.
func (s *RestServer) CreateWebService() {
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/")
	ws.Filter(RequestIdFilter)
	ws.Filter(LogFilter)

	ws.Route(ws.GET("/health").To(s.health).
		Doc("Probe the server.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Returns(http.StatusOK, "OK", HealthStatus{}).
		Writes(HealthStatus{}))

	// Recommendations
	ws.Route(ws.POST("/recommend").To(s.postRecommend).
		Doc("Get recommendations for a customer.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Filter(s.auth).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Reads(RecommendRequest{}).
		Returns(http.StatusOK, "OK", logics.Result{}).
		Returns(http.StatusBadRequest, "invalid request", nil).
		Writes(logics.Result{}))
	ws.Route(ws.GET("/recommend/{customer-id}").To(s.getRecommend).
		Doc("Get recommendations for a customer.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Filter(s.auth).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("customer-id", "customer_unique_id of the customer").DataType("string")).
		Param(ws.QueryParameter("n", "number of returned products").DataType("integer")).
		Param(ws.QueryParameter("begin", "start of the popularity window").DataType("string")).
		Param(ws.QueryParameter("end", "end of the popularity window").DataType("string")).
		Returns(http.StatusOK, "OK", logics.Result{}).
		Returns(http.StatusBadRequest, "invalid request", nil).
		Writes(logics.Result{}))

	// Model
	ws.Route(ws.POST("/model/reload").To(s.reloadModel).
		Doc("Reload the recommendation artifact.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"model"}).
		Filter(s.auth).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Returns(http.StatusOK, "OK", ReloadResult{}).
		Writes(ReloadResult{}))
}

// RecommendRequest is the body of POST /api/recommend. TopK falls back to the default when absent.
type RecommendRequest struct {
	CustomerId string `json:"customer_id"`
	TopK       *int   `json:"top_k,omitempty"`
	Begin      string `json:"begin,omitempty"`
	End        string `json:"end,omitempty"`
}

type ArtifactStatus struct {
	Timestamp time.Time `json:"timestamp"`
	NFactors  int       `json:"n_factors"`
	Customers int       `json:"n_customers"`
	Products  int       `json:"n_products"`
}

type HealthStatus struct {
	Ready       bool            `json:"ready"`
	ModelLoaded bool            `json:"model_loaded"`
	Artifact    *ArtifactStatus `json:"artifact,omitempty"`
}

type ReloadResult struct {
	Swapped  bool            `json:"swapped"`
	Artifact *ArtifactStatus `json:"artifact,omitempty"`
}

func (s *RestServer) artifactStatus() *ArtifactStatus {
	artifact := s.Handle.Load()
	if artifact == nil {
		return nil
	}
	meta := artifact.Meta()
	return &ArtifactStatus{
		Timestamp: meta.Timestamp,
		NFactors:  meta.NFactors,
		Customers: artifact.CountCustomers(),
		Products:  artifact.CountProducts(),
	}
}

func (s *RestServer) health(_ *restful.Request, response *restful.Response) {
	status := s.artifactStatus()
	Ok(response, HealthStatus{Ready: true, ModelLoaded: status != nil, Artifact: status})
}

func (s *RestServer) postRecommend(request *restful.Request, response *restful.Response) {
	var body RecommendRequest
	if err := request.ReadEntity(&body); err != nil {
		BadRequest(response, err)
		return
	}
	topK := s.Config.Recommend.DefaultTopK
	if body.TopK != nil {
		topK = *body.TopK
	}
	s.recommend(request.Request.Context(), response, body.CustomerId, topK, body.Begin, body.End)
}

func (s *RestServer) getRecommend(request *restful.Request, response *restful.Response) {
	topK, err := ParseInt(request, "n", s.Config.Recommend.DefaultTopK)
	if err != nil {
		BadRequest(response, err)
		return
	}
	s.recommend(request.Request.Context(), response, request.PathParameter("customer-id"), topK,
		request.QueryParameter("begin"), request.QueryParameter("end"))
}

func (s *RestServer) recommend(ctx context.Context, response *restful.Response, customerId string, topK int, begin, end string) {
	if customerId == "" {
		BadRequest(response, errors.NotValidf("empty customer_id"))
		return
	}
	req := logics.Request{CustomerId: customerId, TopK: topK}
	var err error
	if req.Begin, err = ParseTime(begin); err != nil {
		BadRequest(response, err)
		return
	}
	if req.End, err = ParseTime(end); err != nil {
		BadRequest(response, err)
		return
	}
	start := time.Now()
	result, err := s.Ranker.Recommend(ctx, req)
	if errors.Is(err, errors.NotValid) {
		BadRequest(response, err)
		return
	} else if err != nil {
		InternalServerError(response, err)
		return
	}
	RecommendSeconds.WithLabelValues(result.Method).Observe(time.Since(start).Seconds())
	Ok(response, result)
}

func (s *RestServer) reloadModel(_ *restful.Request, response *restful.Response) {
	swapped, err := s.Reload()
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, ReloadResult{Swapped: swapped, Artifact: s.artifactStatus()})
}

// Reload swaps in the latest artifact. Cached popularity lists are dropped as well since
// they are refreshed by the same training job.
func (s *RestServer) Reload() (bool, error) {
	swapped, err := s.Handle.Reload()
	if err != nil {
		return false, errors.Trace(err)
	}
	if swapped && s.Popular != nil {
		s.Popular.Purge()
	}
	return swapped, nil
}

// ParseInt parses an integer query parameter.
func ParseInt(request *restful.Request, name string, fallback int) (int, error) {
	valueString := request.QueryParameter(name)
	if valueString == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueString)
	if err != nil {
		return 0, errors.NewNotValid(err, fmt.Sprintf("query parameter %s", name))
	}
	return value, nil
}

// ParseTime parses a timestamp in any common layout. An empty string means no bound.
func ParseTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return nil, errors.NewNotValid(err, fmt.Sprintf("timestamp %q", value))
	}
	return &t, nil
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns a internal server error.
func InternalServerError(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content interface{}) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
	}
}

func (s *RestServer) auth(request *restful.Request, response *restful.Response, chain *restful.FilterChain) {
	if s.Config.Server.APIKey == "" {
		chain.ProcessFilter(request, response)
		return
	}
	apikey := request.HeaderParameter("X-API-Key")
	if apikey == s.Config.Server.APIKey {
		chain.ProcessFilter(request, response)
		return
	}
	log.ResponseLogger(response).Error("unauthorized", zap.String("X-API-Key", apikey))
	if err := response.WriteError(http.StatusUnauthorized, errors.Unauthorizedf("invalid api key")); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}
