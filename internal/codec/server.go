package codec

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/env"
)

// ErrUnknownEnv is returned when an env ID has no open session.
var ErrUnknownEnv = errors.New("unknown environment")

// #region server-config
// ServerConfig bounds the service.
type ServerConfig struct {
	MaxSessions int // Open fails with ResourceExhausted beyond this; 0 means unlimited
}

// DefaultServerConfig returns the limits used by the controller.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{MaxSessions: 256}
}

// #endregion server-config

// #region server
type session struct {
	mu  sync.Mutex
	env *env.Env
}

// Server hosts independent environments, one per session. Calls on the same
// session are serialized; sessions run in parallel.
type Server struct {
	catalog *catalog.Catalog
	config  ServerConfig
	envOpts []env.Option
	logger  *zap.Logger
	tracer  trace.Tracer

	// recorderFor returns the recorder for a new session; configYAML is
	// empty when the session uses the server's catalog.
	recorderFor func(configYAML string) env.Recorder

	mu       sync.RWMutex
	sessions map[string]*session
}

var _ EnvironmentServer = (*Server)(nil)

// NewServer serves environments over cat unless a client supplies its own
// configuration. envOpts apply to every environment the server opens.
func NewServer(cat *catalog.Catalog, config ServerConfig, logger *zap.Logger, envOpts ...env.Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		catalog:  cat,
		config:   config,
		envOpts:  envOpts,
		logger:   logger,
		tracer:   otel.Tracer("siteplan/codec"),
		sessions: make(map[string]*session),
	}
}

// SetRecorderFactory records every session opened after the call.
func (s *Server) SetRecorderFactory(f func(configYAML string) env.Recorder) {
	s.recorderFor = f
}

// Sessions reports how many environments are open.
func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Server) lookup(envID string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[envID]
	s.mu.RUnlock()
	if !ok {
		return nil, status.Error(codes.NotFound, fmt.Sprintf("%s: %v", envID, ErrUnknownEnv))
	}
	return sess, nil
}

// #endregion server

// #region open
func (s *Server) Open(ctx context.Context, req *OpenRequest) (*OpenResponse, error) {
	_, span := s.tracer.Start(ctx, "Environment.Open")
	defer span.End()

	cat := s.catalog
	if req.ConfigYAML != "" {
		parsed, err := catalog.Parse([]byte(req.ConfigYAML))
		if err != nil {
			return nil, fail(span, status.Error(codes.InvalidArgument, err.Error()))
		}
		cat = parsed
	}

	id := uuid.New().String()
	opts := append([]env.Option{env.WithLogger(s.logger.With(zap.String("env_id", id)))}, s.envOpts...)
	if s.recorderFor != nil {
		opts = append(opts, env.WithRecorder(s.recorderFor(req.ConfigYAML)))
	}
	sess := &session{env: env.New(cat, opts...)}

	s.mu.Lock()
	if s.config.MaxSessions > 0 && len(s.sessions) >= s.config.MaxSessions {
		s.mu.Unlock()
		return nil, fail(span, status.Error(codes.ResourceExhausted,
			fmt.Sprintf("%d environments open, limit %d", len(s.sessions), s.config.MaxSessions)))
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	span.SetAttributes(attribute.String("env_id", id), attribute.String("catalog_hash", cat.Hash()))
	s.logger.Info("environment opened", zap.String("env_id", id), zap.String("catalog_hash", cat.Hash()))
	return &OpenResponse{
		EnvID:           id,
		ActionSpace:     cat.ActionSpaceSize(),
		ObservationSize: cat.ObservationSize(),
		PassAction:      cat.PassAction(),
		CatalogHash:     cat.Hash(),
	}, nil
}

// #endregion open

// #region reset
func (s *Server) Reset(ctx context.Context, req *ResetRequest) (*ResetResponse, error) {
	_, span := s.tracer.Start(ctx, "Environment.Reset", trace.WithAttributes(attribute.String("env_id", req.EnvID)))
	defer span.End()

	sess, err := s.lookup(req.EnvID)
	if err != nil {
		return nil, fail(span, err)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	obs, info := sess.env.Reset(req.Seed)
	span.SetAttributes(attribute.String("episode_id", sess.env.EpisodeID()))
	return &ResetResponse{EpisodeID: sess.env.EpisodeID(), Observation: obs, Info: info}, nil
}

// #endregion reset

// #region step
func (s *Server) Step(ctx context.Context, req *StepRequest) (*StepResponse, error) {
	_, span := s.tracer.Start(ctx, "Environment.Step", trace.WithAttributes(
		attribute.String("env_id", req.EnvID),
		attribute.Int("action", req.Action),
	))
	defer span.End()

	sess, err := s.lookup(req.EnvID)
	if err != nil {
		return nil, fail(span, err)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	res, err := sess.env.Step(req.Action)
	if errors.Is(err, env.ErrNeedsReset) {
		return nil, fail(span, status.Error(codes.FailedPrecondition, err.Error()))
	}
	if err != nil {
		return nil, fail(span, status.Error(codes.Internal, err.Error()))
	}

	span.SetAttributes(attribute.Float64("reward", res.Reward), attribute.Bool("terminated", res.Terminated))
	return &StepResponse{
		Observation: res.Observation,
		Reward:      res.Reward,
		Terminated:  res.Terminated,
		Truncated:   res.Truncated,
		Info:        res.Info,
	}, nil
}

// #endregion step

// #region close
func (s *Server) Close(ctx context.Context, req *CloseRequest) (*CloseResponse, error) {
	_, span := s.tracer.Start(ctx, "Environment.Close", trace.WithAttributes(attribute.String("env_id", req.EnvID)))
	defer span.End()

	s.mu.Lock()
	sess, ok := s.sessions[req.EnvID]
	delete(s.sessions, req.EnvID)
	s.mu.Unlock()
	if !ok {
		return nil, fail(span, status.Error(codes.NotFound, fmt.Sprintf("%s: %v", req.EnvID, ErrUnknownEnv)))
	}
	sess.close()
	s.logger.Info("environment closed", zap.String("env_id", req.EnvID))
	return &CloseResponse{}, nil
}

// Shutdown closes every open session, ending active episodes as abandoned.
// Call it after the gRPC server has stopped accepting calls.
func (s *Server) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for id, sess := range sessions {
		sess.close()
		s.logger.Info("environment closed at shutdown", zap.String("env_id", id))
	}
}

func (sess *session) close() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.env.Close()
}

// #endregion close

// fail records err on span and returns it.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	return err
}
