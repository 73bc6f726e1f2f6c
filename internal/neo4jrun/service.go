package neo4jrun

//go:generate mockgen -destination=mocks/mock_service.go -package=neo4jrun_mocks github.com/roach88/cypherq/internal/neo4jrun Service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/roach88/cypherq/internal/config"
)

// Service runs Cypher against one database.
type Service interface {
	ExecuteReadQuery(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)
	ExecuteWriteQuery(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)
	DatabaseName() string
}

// DriverService is the Service backed by the Neo4j Go driver.
type DriverService struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewDriverService wraps an open driver.
func NewDriverService(driver neo4j.DriverWithContext, database string) *DriverService {
	return &DriverService{driver: driver, database: database}
}

// Connect opens a driver from configuration and verifies connectivity. An
// empty username connects without authentication.
func Connect(ctx context.Context, cfg config.Neo4jConfig) (*DriverService, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify connectivity to %s: %w", cfg.URI, err)
	}
	slog.Info("connected to neo4j", "uri", cfg.URI, "database", cfg.Database)
	return NewDriverService(driver, cfg.Database), nil
}

// Close closes the driver.
func (s *DriverService) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *DriverService) DatabaseName() string { return s.database }

func (s *DriverService) ExecuteReadQuery(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	return s.execute(ctx, cypher, params, neo4j.ExecuteQueryWithReadersRouting())
}

func (s *DriverService) ExecuteWriteQuery(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	return s.execute(ctx, cypher, params, neo4j.ExecuteQueryWithWritersRouting())
}

func (s *DriverService) execute(ctx context.Context, cypher string, params map[string]any, routing neo4j.ExecuteQueryConfigurationOption) ([]*neo4j.Record, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{routing}
	if s.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(s.database))
	}
	res, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}
