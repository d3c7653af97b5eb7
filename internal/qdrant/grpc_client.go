package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/logging"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// GRPCClient implements Client using Qdrant's official Go client.
type GRPCClient struct {
	client *qdrant.Client
	config *ClientConfig
	logger *logging.Logger
}

// ClientConfig configures the Qdrant gRPC client.
type ClientConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the gRPC port (6334), not the REST port (6333).
	Port int

	UseTLS bool
	APIKey string

	// MaxMessageSize is the maximum gRPC message size in bytes. Default: 16MB.
	MaxMessageSize int

	// DialTimeout bounds the startup health check. Default: 5s.
	DialTimeout time.Duration

	// RequestTimeout bounds each request including retries. Default: 30s.
	RequestTimeout time.Duration

	// RetryAttempts is the number of retries after the first try. Default: 3.
	RetryAttempts int

	// RetryBackoff is the first retry delay; it doubles on every retry. Default: 500ms.
	RetryBackoff time.Duration

	// Distance is the metric for collections created by this client. Default: Cosine.
	Distance qdrant.Distance
}

// DefaultClientConfig returns defaults for a local Qdrant.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Host:           "localhost",
		Port:           6334,
		MaxMessageSize: 16 * 1024 * 1024,
		DialTimeout:    5 * time.Second,
		RequestTimeout: 30 * time.Second,
		RetryAttempts:  3,
		RetryBackoff:   500 * time.Millisecond,
		Distance:       qdrant.Distance_Cosine,
	}
}

// ApplyDefaults sets default values for unset fields.
func (c *ClientConfig) ApplyDefaults() {
	defaults := DefaultClientConfig()

	if c.Host == "" {
		c.Host = defaults.Host
	}
	if c.Port == 0 {
		c.Port = defaults.Port
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = defaults.MaxMessageSize
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaults.DialTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = defaults.RetryAttempts
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = defaults.RetryBackoff
	}
	if c.Distance == qdrant.Distance_UnknownDistance {
		c.Distance = defaults.Distance
	}
}

// Validate validates the client configuration.
func (c *ClientConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("invalid max message size: %d (must be > 0)", c.MaxMessageSize)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("invalid retry attempts: %d (must be >= 0)", c.RetryAttempts)
	}
	return nil
}

// NewGRPCClient creates a Qdrant client and runs a startup health check. A failed
// check is logged and the client is still returned.
func NewGRPCClient(config *ClientConfig, logger *logging.Logger) (*GRPCClient, error) {
	if config == nil {
		config = DefaultClientConfig()
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	qdrantConfig := &qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		APIKey: config.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	}
	if !config.UseTLS {
		qdrantConfig.GrpcOptions = append(qdrantConfig.GrpcOptions,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
	}

	client, err := qdrant.NewClient(qdrantConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	c := &GRPCClient{client: client, config: config, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	logger.Info(ctx, "connecting to qdrant",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.Bool("tls", config.UseTLS),
	)

	// go-client dials lazily, so an unreachable server only fails the calls
	// made while it is down.
	if err := c.Health(ctx); err != nil {
		logger.Warn(ctx, "qdrant not reachable, continuing",
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
			zap.Error(err),
		)
		return c, nil
	}

	logger.Info(ctx, "qdrant connection established",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
	)

	return c, nil
}

// Health performs a health check on the Qdrant connection.
func (c *GRPCClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	if _, err := c.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// CreateCollection creates a single-vector collection using the configured distance.
// An AlreadyExists reply from a concurrent creator is not an error.
func (c *GRPCClient) CreateCollection(ctx context.Context, name string, vectorSize uint64) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	err := c.retryOperation(ctx, func() error {
		return c.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     vectorSize,
				Distance: c.config.Distance,
			}),
		})
	})
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	return err
}

// CollectionExists checks if a collection exists.
func (c *GRPCClient) CollectionExists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var exists bool
	err := c.retryOperation(ctx, func() error {
		info, err := c.client.GetCollectionInfo(ctx, name)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = info != nil
		return nil
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Upsert inserts or replaces points in a collection and waits for the write.
func (c *GRPCClient) Upsert(ctx context.Context, collection string, points []*Point) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, point := range points {
		p, err := toPointStruct(point)
		if err != nil {
			return err
		}
		qdrantPoints[i] = p
	}

	return c.retryOperation(ctx, func() error {
		_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         qdrantPoints,
		})
		return err
	})
}

// Search returns up to limit nearest points with their payloads.
func (c *GRPCClient) Search(ctx context.Context, collection string, vector []float32, limit uint64) ([]*ScoredPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var results []*qdrant.ScoredPoint
	err := c.retryOperation(ctx, func() error {
		res, err := c.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(limit),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	scored := make([]*ScoredPoint, len(results))
	for i, r := range results {
		scored[i] = fromScoredPoint(r)
	}
	return scored, nil
}

// Close closes the client connection.
func (c *GRPCClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// retryOperation retries transient gRPC failures with exponential backoff.
func (c *GRPCClient) retryOperation(ctx context.Context, operation func() error) error {
	var lastErr error
	backoff := c.config.RetryBackoff
	startTime := time.Now()

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 0 {
				c.logger.Info(ctx, "qdrant operation recovered after retries",
					zap.Int("attempts", attempt),
					zap.Duration("total_time", time.Since(startTime)),
				)
			}
			return nil
		}

		lastErr = err
		if !isTransientError(err) {
			return err
		}
		if attempt == c.config.RetryAttempts {
			break
		}

		c.logger.Debug(ctx, "retrying qdrant operation after transient error",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.config.RetryAttempts),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation canceled: %w", ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	c.logger.Warn(ctx, "qdrant operation failed after all retries",
		zap.Int("total_attempts", c.config.RetryAttempts+1),
		zap.Duration("total_time", time.Since(startTime)),
		zap.Error(lastErr),
	)

	return fmt.Errorf("operation failed after %d retries: %w", c.config.RetryAttempts, lastErr)
}

// isTransientError reports whether a gRPC error is worth retrying.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

var _ Client = (*GRPCClient)(nil)
