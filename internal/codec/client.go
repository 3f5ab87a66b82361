package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/danielpatrickdp/siteplan/internal/env"
)

// #region types
// Spaces describes an opened remote environment.
type Spaces struct {
	EnvID           string
	ActionSpace     int
	ObservationSize int
	PassAction      int
	CatalogHash     string
}

// #endregion types

// #region client-struct
// CodecClient wraps the gRPC connection to an environment server.
type CodecClient struct {
	conn   *grpc.ClientConn
	client EnvironmentClient
}

// #endregion client-struct

// #region constructor
// NewCodecClient connects to an environment server.
func NewCodecClient(addr string, opts ...grpc.DialOption) (*CodecClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &CodecClient{
		conn:   conn,
		client: NewEnvironmentClient(conn),
	}, nil
}

// NewCodecClientWithService creates a CodecClient with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewCodecClientWithService(svc EnvironmentClient) *CodecClient {
	return &CodecClient{client: svc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *CodecClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region open
// Open creates a remote environment. An empty configYAML uses the server's
// catalog.
func (c *CodecClient) Open(ctx context.Context, configYAML string) (Spaces, error) {
	resp, err := c.client.Open(ctx, &OpenRequest{ConfigYAML: configYAML})
	if err != nil {
		return Spaces{}, fmt.Errorf("open rpc: %w", err)
	}
	return Spaces{
		EnvID:           resp.EnvID,
		ActionSpace:     resp.ActionSpace,
		ObservationSize: resp.ObservationSize,
		PassAction:      resp.PassAction,
		CatalogHash:     resp.CatalogHash,
	}, nil
}

// #endregion open

// #region reset
// Reset starts a new episode in a remote environment.
func (c *CodecClient) Reset(ctx context.Context, envID string, seed *int64) (env.Observation, env.Info, error) {
	resp, err := c.client.Reset(ctx, &ResetRequest{EnvID: envID, Seed: seed})
	if err != nil {
		return nil, env.Info{}, fmt.Errorf("reset rpc: %w", mapStatus(err))
	}
	return resp.Observation, resp.Info, nil
}

// #endregion reset

// #region step
// Step applies one action in a remote environment.
func (c *CodecClient) Step(ctx context.Context, envID string, action int) (env.StepResult, error) {
	resp, err := c.client.Step(ctx, &StepRequest{EnvID: envID, Action: action})
	if err != nil {
		return env.StepResult{}, fmt.Errorf("step rpc: %w", mapStatus(err))
	}
	return env.StepResult{
		Observation: resp.Observation,
		Reward:      resp.Reward,
		Terminated:  resp.Terminated,
		Truncated:   resp.Truncated,
		Info:        resp.Info,
	}, nil
}

// #endregion step

// #region close-env
// CloseEnv releases a remote environment.
func (c *CodecClient) CloseEnv(ctx context.Context, envID string) error {
	if _, err := c.client.Close(ctx, &CloseRequest{EnvID: envID}); err != nil {
		return fmt.Errorf("close rpc: %w", mapStatus(err))
	}
	return nil
}

// #endregion close-env

// mapStatus turns the service's status codes back into sentinel errors.
func mapStatus(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrUnknownEnv, status.Convert(err).Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", env.ErrNeedsReset, status.Convert(err).Message())
	default:
		return err
	}
}
