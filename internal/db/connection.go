package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/VoidMesh/txlab/internal/config"
	"github.com/VoidMesh/txlab/internal/logging"
)

// Querier is the statement surface of a single connection.
// *pgx.Conn satisfies it, as does pgxmock.PgxConnIface.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Conn is a connection owned by exactly one caller until Close.
type Conn interface {
	Querier
	Close(ctx context.Context) error
}

// Provider opens independent connections. It never pools and never retries.
type Provider struct {
	cfg config.DatabaseConfig
}

func NewProvider(cfg config.DatabaseConfig) *Provider {
	return &Provider{cfg: cfg}
}

// ConnConfig parses the configured URL and applies the credential overrides.
func (p *Provider) ConnConfig() (*pgx.ConnConfig, error) {
	connCfg, err := pgx.ParseConfig(p.cfg.URL)
	if err != nil {
		return nil, &ConnectionError{URL: p.cfg.URL, Err: err}
	}
	if p.cfg.User != "" {
		connCfg.User = p.cfg.User
	}
	if p.cfg.Password != "" {
		connCfg.Password = p.cfg.Password
	}
	if p.cfg.ConnectTimeout > 0 {
		connCfg.ConnectTimeout = p.cfg.ConnectTimeout
	}
	// Statements are raw SQL text; transaction control must reach the
	// server verbatim and not through prepared statements.
	connCfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	return connCfg, nil
}

// Connect opens a new connection for the caller.
func (p *Provider) Connect(ctx context.Context) (*pgx.Conn, error) {
	connCfg, err := p.ConnConfig()
	if err != nil {
		return nil, err
	}

	logging.GetLogger().Debug("Opening database connection", "host", connCfg.Host, "port", connCfg.Port, "database", connCfg.Database, "user", connCfg.User)
	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, &ConnectionError{URL: redact(connCfg), Err: err}
	}
	return conn, nil
}

// Session is Connect behind the Conn interface.
func (p *Provider) Session(ctx context.Context) (Conn, error) {
	conn, err := p.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func redact(c *pgx.ConnConfig) string {
	return c.User + "@" + c.Host + "/" + c.Database
}
