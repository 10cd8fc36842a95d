package source

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"sqlpulse/internal/sample"
)

//go:embed workload_sample_query.sql
var defaultQuery string

// Config describes how to reach the monitored SQL Server. An empty
// Username selects integrated authentication, matching the common case of
// running the monitor on the database host.
type Config struct {
	Server   string
	Database string
	Username string
	Password string

	// QueryFile optionally overrides the embedded workload query, so the
	// sample query can be tuned and tested in SSMS independently.
	QueryFile string

	ConnectTimeout time.Duration
}

// SQLServer collects workload samples from one SQL Server instance. It
// owns a single connection pool; the monitor is the only caller, one
// Collect at a time.
type SQLServer struct {
	cfg      Config
	db       *sql.DB
	query    string
	identity string
	log      *zap.SugaredLogger
}

func New(cfg Config, log *zap.SugaredLogger) *SQLServer {
	if cfg.Database == "" {
		cfg.Database = "master"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &SQLServer{cfg: cfg, log: log}
}

func (s *SQLServer) dsn() string {
	u := &url.URL{
		Scheme: "sqlserver",
		Host:   s.cfg.Server,
	}
	if s.cfg.Username != "" {
		u.User = url.UserPassword(s.cfg.Username, s.cfg.Password)
	}
	q := url.Values{}
	q.Set("database", s.cfg.Database)
	q.Set("dial timeout", fmt.Sprintf("%d", int(s.cfg.ConnectTimeout.Seconds())))
	u.RawQuery = q.Encode()
	return u.String()
}

// Connect opens the pool and runs a probe query to capture the server's
// self-reported identity.
func (s *SQLServer) Connect(ctx context.Context) error {
	s.log.Debugw("attempting connection", "server", s.cfg.Server, "database", s.cfg.Database)

	db, err := sql.Open("sqlserver", s.dsn())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	var version, name string
	err = db.QueryRowContext(pingCtx,
		"SELECT @@VERSION AS Version, @@SERVERNAME AS ServerName").Scan(&version, &name)
	if err != nil {
		db.Close()
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s.db = db
	s.identity = name
	s.log.Infow("connected", "server", name)
	s.log.Debugw("server version", "version", firstLine(version))
	return nil
}

// Identity returns the server name reported by the probe query.
func (s *SQLServer) Identity() string {
	if s.identity != "" {
		return s.identity
	}
	return s.cfg.Server
}

func (s *SQLServer) Database() string {
	return s.cfg.Database
}

func (s *SQLServer) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CheckPermissions verifies the login can read server state. Without VIEW
// SERVER STATE every DMV in the workload query comes back empty.
func (s *SQLServer) CheckPermissions(ctx context.Context) error {
	const q = `
SELECT
    HAS_PERMS_BY_NAME(NULL, NULL, 'VIEW SERVER STATE') AS HasViewServerState,
    ISNULL(IS_SRVROLEMEMBER('sysadmin'), 0)            AS IsSysAdmin,
    SUSER_SNAME()                                      AS CurrentUser`

	var viewState, sysadmin int
	var user string
	if err := s.db.QueryRowContext(ctx, q).Scan(&viewState, &sysadmin, &user); err != nil {
		return fmt.Errorf("check permissions: %w", err)
	}

	s.log.Infow("current user", "login", user)
	if viewState != 1 && sysadmin != 1 {
		return fmt.Errorf("%w: grant with: GRANT VIEW SERVER STATE TO [%s]", ErrPermissionDenied, user)
	}
	return nil
}

// LoadQuery resolves the workload query text: an external file when
// configured, the embedded default otherwise.
func (s *SQLServer) LoadQuery() error {
	if s.cfg.QueryFile == "" {
		s.query = defaultQuery
		return nil
	}
	data, err := os.ReadFile(s.cfg.QueryFile)
	if err != nil {
		return fmt.Errorf("load query file: %w", err)
	}
	s.query = string(data)
	s.log.Infow("loaded query", "file", s.cfg.QueryFile)
	return nil
}

// TestQuery runs the workload query once before monitoring starts and
// reports how long it took. Callers warn when it is slow relative to the
// sampling interval.
func (s *SQLServer) TestQuery(ctx context.Context) (time.Duration, error) {
	if s.query == "" {
		if err := s.LoadQuery(); err != nil {
			return 0, err
		}
	}
	start := time.Now()
	if _, err := s.queryRow(ctx); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// workloadRow is the fixed column shape of the workload query. The typed
// scan here is the only place the engine's result representation exists;
// the rest of the tool sees an opaque sample payload.
type workloadRow struct {
	SampleTime          time.Time
	TotalCPUs           int64
	SQLServerCPUTimeMs  int64
	TotalMemoryMB       int64
	CommittedMemoryMB   int64
	TargetMemoryMB      int64
	BufferPoolMB        int64
	BatchRequestsPerSec int64
	CompilationsPerSec  int64
	UserConnections     int64
	TotalReads          int64
	TotalWrites         int64
	TotalReadLatencyMs  int64
	TotalWriteLatencyMs int64
	TotalBytesRead      int64
	TotalBytesWritten   int64
	TopWaitType         string
	TopWaitTimeMs       int64
}

func (s *SQLServer) queryRow(ctx context.Context) (*workloadRow, error) {
	var r workloadRow
	err := s.db.QueryRowContext(ctx, s.query).Scan(
		&r.SampleTime,
		&r.TotalCPUs,
		&r.SQLServerCPUTimeMs,
		&r.TotalMemoryMB,
		&r.CommittedMemoryMB,
		&r.TargetMemoryMB,
		&r.BufferPoolMB,
		&r.BatchRequestsPerSec,
		&r.CompilationsPerSec,
		&r.UserConnections,
		&r.TotalReads,
		&r.TotalWrites,
		&r.TotalReadLatencyMs,
		&r.TotalWriteLatencyMs,
		&r.TotalBytesRead,
		&r.TotalBytesWritten,
		&r.TopWaitType,
		&r.TopWaitTimeMs,
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return &r, nil
}

// Collect implements Source.
func (s *SQLServer) Collect(ctx context.Context) (sample.Sample, error) {
	row, err := s.queryRow(ctx)
	if err != nil {
		return sample.Sample{}, err
	}
	return sample.Sample{
		Timestamp: row.SampleTime,
		Payload: map[string]sample.Fields{
			"cpu": {
				"total_cpus":             row.TotalCPUs,
				"sql_server_cpu_time_ms": row.SQLServerCPUTimeMs,
			},
			"memory": {
				"total_mb":       row.TotalMemoryMB,
				"committed_mb":   row.CommittedMemoryMB,
				"target_mb":      row.TargetMemoryMB,
				"buffer_pool_mb": row.BufferPoolMB,
			},
			"activity": {
				"batch_requests_per_sec": row.BatchRequestsPerSec,
				"compilations_per_sec":   row.CompilationsPerSec,
				"user_connections":       row.UserConnections,
			},
			"io": {
				"total_reads":            row.TotalReads,
				"total_writes":           row.TotalWrites,
				"total_read_latency_ms":  row.TotalReadLatencyMs,
				"total_write_latency_ms": row.TotalWriteLatencyMs,
				"total_bytes_read":       row.TotalBytesRead,
				"total_bytes_written":    row.TotalBytesWritten,
			},
			"waits": {
				"top_wait_type":    row.TopWaitType,
				"top_wait_time_ms": row.TopWaitTimeMs,
			},
		},
	}, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return strings.TrimSpace(s)
}
