// Package server serves elevation lookups over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	dem "github.com/wgmilleriii/go-dem"
)

const (
	defaultProfilePoints = 100
	batchChunkSize       = 256
)

// An Elevationer returns elevations at points, with NaN for missing values.
type Elevationer = dem.Elevationer

// Server handles elevation API requests.
type Server struct {
	elevationer Elevationer
	staticDir   string
	maxParallel int
	logger      *zap.Logger
}

// An Option sets an option on a Server.
type Option func(*Server)

// New returns a new Server answering lookups with elevationer.
func New(elevationer Elevationer, options ...Option) *Server {
	s := &Server{
		elevationer: elevationer,
		maxParallel: 8,
		logger:      zap.L(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// WithStaticDir serves files from dir for paths that are not API routes.
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

// WithMaxParallel sets the number of concurrent lookups in a batch request.
func WithMaxParallel(maxParallel int) Option {
	return func(s *Server) {
		s.maxParallel = max(maxParallel, 1)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Handler returns the HTTP handler for s.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/elevation", func(r chi.Router) {
		r.Post("/batch", s.handleBatch)
		r.Post("/profile", s.handleProfile)
		r.Get("/{lat}/{lon}", s.handleElevation)
	})

	if s.staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.staticDir)))
	}

	return r
}

type elevationResponse struct {
	Elevation *float64 `json:"elevation"`
}

func (s *Server) handleElevation(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(chi.URLParam(r, "lat"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid latitude")
		return
	}
	lon, err := strconv.ParseFloat(chi.URLParam(r, "lon"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid longitude")
		return
	}

	elevations, err := s.elevationer.Elevations(r.Context(), []dem.Point{{Lat: lat, Lon: lon}})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, elevationResponse{
		Elevation: dem.OptionalElevation(elevations[0]),
	})
}

type batchRequest struct {
	Points []dem.Point `json:"points"`
}

type batchPoint struct {
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Elevation *float64 `json:"elevation"`
}

type batchResponse struct {
	Points []batchPoint `json:"points"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Points == nil {
		writeError(w, http.StatusBadRequest, "invalid request body: points array required")
		return
	}

	elevations, err := s.batchElevations(r.Context(), req.Points)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	resp := batchResponse{
		Points: make([]batchPoint, len(req.Points)),
	}
	for i, point := range req.Points {
		resp.Points[i] = batchPoint{
			Lat:       point.Lat,
			Lon:       point.Lon,
			Elevation: dem.OptionalElevation(elevations[i]),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// batchElevations looks up points in chunks, at most s.maxParallel chunks at a
// time.
func (s *Server) batchElevations(ctx context.Context, points []dem.Point) ([]float64, error) {
	elevations := make([]float64, len(points))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for start := 0; start < len(points); start += batchChunkSize {
		end := min(start+batchChunkSize, len(points))
		g.Go(func() error {
			chunk, err := s.elevationer.Elevations(ctx, points[start:end])
			if err != nil {
				return err
			}
			copy(elevations[start:end], chunk)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return elevations, nil
}

type profileRequest struct {
	Start     *dem.Point `json:"start"`
	End       *dem.Point `json:"end"`
	NumPoints int        `json:"numPoints"`
}

type profileMetadata struct {
	TotalDistance float64   `json:"totalDistance"`
	NumPoints     int       `json:"numPoints"`
	Start         dem.Point `json:"start"`
	End           dem.Point `json:"end"`
}

type profileResponse struct {
	Points   []dem.ProfilePoint `json:"points"`
	Metadata profileMetadata    `json:"metadata"`
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Start == nil || req.End == nil {
		writeError(w, http.StatusBadRequest, "invalid request body: start and end points required")
		return
	}
	numPoints := req.NumPoints
	if numPoints == 0 {
		numPoints = defaultProfilePoints
	}
	if numPoints < 2 {
		writeError(w, http.StatusBadRequest, "numPoints must be at least 2")
		return
	}

	profile, err := dem.NewProfile(r.Context(), s.elevationer, *req.Start, *req.End, numPoints)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		Points: profile.Points,
		Metadata: profileMetadata{
			TotalDistance: profile.TotalDistance,
			NumPoints:     profile.NumPoints,
			Start:         profile.Start,
			End:           profile.End,
		},
	})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, eris.Cause(err).Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
