// Package graph provides the Neo4j-backed knowledge graph used for alert
// topology, correlation edges, playbooks, and decision lineage. It exposes
// a small generic surface (upserts, reads, compare-and-set) on top of which
// the playbook store and the investigation specialists build their Cypher.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/resilience"
)

// Config contains the graph store connection settings.
type Config struct {
	// URI is the bolt endpoint, e.g. neo4j://graph:7687.
	URI string `yaml:"uri"`

	// Username and Password authenticate against the server.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Database selects the Neo4j database. Empty means the server default.
	Database string `yaml:"database"`
}

// Relation describes one edge upsert between two identified nodes.
type Relation struct {
	FromLabel string
	FromID    string
	Type      string
	ToLabel   string
	ToID      string
	Props     map[string]any
}

// identRe guards labels and relationship types, which cannot be passed as
// Cypher parameters and would otherwise be an injection vector.
var identRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Store is the shared graph client. Safe for concurrent use.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	exec     *resilience.Executor
	logger   *slog.Logger
}

// NewStore creates a graph store and its driver. The driver connects lazily;
// call Ping to verify connectivity at startup.
func NewStore(cfg Config, exec *resilience.Executor, logger *slog.Logger) (*Store, error) {
	if cfg.URI == "" {
		return nil, faults.New(faults.KindValidationFailed, "graph.NewStore", "graph URI is required")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, faults.Wrap(faults.KindUpstreamUnavailable, "graph.NewStore", "create driver", err)
	}
	return &Store{
		driver:   driver,
		database: cfg.Database,
		exec:     exec,
		logger:   logger,
	}, nil
}

// Ping verifies connectivity to the graph server.
func (s *Store) Ping(ctx context.Context) error {
	return s.exec.Do(ctx, "graph.Ping", func(ctx context.Context) error {
		return s.driver.VerifyConnectivity(ctx)
	})
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// EnsureSchema creates the uniqueness constraints and indexes the platform
// relies on. Idempotent; runs at startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		"CREATE CONSTRAINT playbook_id IF NOT EXISTS FOR (p:Playbook) REQUIRE p.id IS UNIQUE",
		"CREATE CONSTRAINT cluster_id IF NOT EXISTS FOR (c:AlertCluster) REQUIRE c.id IS UNIQUE",
		"CREATE CONSTRAINT decision_id IF NOT EXISTS FOR (d:Decision) REQUIRE d.id IS UNIQUE",
		"CREATE CONSTRAINT review_id IF NOT EXISTS FOR (r:Review) REQUIRE r.id IS UNIQUE",
		"CREATE CONSTRAINT execution_id IF NOT EXISTS FOR (e:Execution) REQUIRE e.id IS UNIQUE",
		"CREATE CONSTRAINT service_id IF NOT EXISTS FOR (s:Service) REQUIRE s.id IS UNIQUE",
		"CREATE INDEX alert_fingerprint IF NOT EXISTS FOR (a:Alert) ON (a.fingerprint)",
		"CREATE INDEX playbook_key IF NOT EXISTS FOR (p:Playbook) ON (p.pattern_type, p.service_pattern, p.status)",
	}
	for _, stmt := range stmts {
		stmt := stmt
		err := s.exec.Do(ctx, "graph.EnsureSchema", func(ctx context.Context) error {
			_, err := neo4j.ExecuteQuery(ctx, s.driver, stmt, nil,
				neo4j.EagerResultTransformer, s.queryOpts()...)
			return err
		})
		if err != nil {
			return err
		}
	}
	s.logger.Info("Graph schema ensured", "statements", len(stmts))
	return nil
}

// UpsertNode merges a node by label and id and sets the given properties.
func (s *Store) UpsertNode(ctx context.Context, label, id string, props map[string]any) error {
	if err := checkIdent(label); err != nil {
		return err
	}
	if id == "" {
		return faults.New(faults.KindValidationFailed, "graph.UpsertNode", "empty node id")
	}
	cypher := fmt.Sprintf("MERGE (n:%s {id: $id}) SET n += $props", label)
	return s.exec.Do(ctx, "graph.UpsertNode", func(ctx context.Context) error {
		_, err := neo4j.ExecuteQuery(ctx, s.driver, cypher,
			map[string]any{"id": id, "props": props},
			neo4j.EagerResultTransformer, s.queryOpts()...)
		return err
	})
}

// UpsertRelation merges both endpoint nodes and the edge between them.
func (s *Store) UpsertRelation(ctx context.Context, rel Relation) error {
	for _, ident := range []string{rel.FromLabel, rel.Type, rel.ToLabel} {
		if err := checkIdent(ident); err != nil {
			return err
		}
	}
	if rel.FromID == "" || rel.ToID == "" {
		return faults.New(faults.KindValidationFailed, "graph.UpsertRelation", "empty endpoint id")
	}
	props := rel.Props
	if props == nil {
		props = map[string]any{}
	}
	cypher := fmt.Sprintf(
		"MERGE (a:%s {id: $from}) MERGE (b:%s {id: $to}) MERGE (a)-[r:%s]->(b) SET r += $props",
		rel.FromLabel, rel.ToLabel, rel.Type)
	return s.exec.Do(ctx, "graph.UpsertRelation", func(ctx context.Context) error {
		_, err := neo4j.ExecuteQuery(ctx, s.driver, cypher,
			map[string]any{"from": rel.FromID, "to": rel.ToID, "props": props},
			neo4j.EagerResultTransformer, s.queryOpts()...)
		return err
	})
}

// Query runs a read Cypher statement and returns one map per record.
func (s *Store) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	var rows []map[string]any
	err := s.exec.Do(ctx, "graph.Query", func(ctx context.Context) error {
		result, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params,
			neo4j.EagerResultTransformer, s.queryOpts()...)
		if err != nil {
			return err
		}
		rows = make([]map[string]any, 0, len(result.Records))
		for _, rec := range result.Records {
			row := make(map[string]any, len(rec.Keys))
			for i, key := range rec.Keys {
				row[key] = rec.Values[i]
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Write runs a write Cypher statement and reports how many records it produced.
func (s *Store) Write(ctx context.Context, cypher string, params map[string]any) (int, error) {
	var n int
	err := s.exec.Do(ctx, "graph.Write", func(ctx context.Context) error {
		result, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params,
			neo4j.EagerResultTransformer, s.queryOpts()...)
		if err != nil {
			return err
		}
		n = len(result.Records)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// CompareAndSet updates props on the node only if guardField still holds
// expected. Returns false on a lost race so the caller can re-read and retry.
func (s *Store) CompareAndSet(ctx context.Context, label, id, guardField string, expected any, props map[string]any) (bool, error) {
	if err := checkIdent(label); err != nil {
		return false, err
	}
	if err := checkIdent(guardField); err != nil {
		return false, err
	}
	cypher := fmt.Sprintf(
		"MATCH (n:%s {id: $id}) WHERE n.%s = $expected SET n += $props RETURN n.id AS id",
		label, guardField)
	var matched bool
	err := s.exec.Do(ctx, "graph.CompareAndSet", func(ctx context.Context) error {
		result, err := neo4j.ExecuteQuery(ctx, s.driver, cypher,
			map[string]any{"id": id, "expected": expected, "props": props},
			neo4j.EagerResultTransformer, s.queryOpts()...)
		if err != nil {
			return err
		}
		matched = len(result.Records) > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return matched, nil
}

// Snapshot exposes the resilience counters for health reporting.
func (s *Store) Snapshot() resilience.Snapshot {
	return s.exec.Snapshot()
}

func (s *Store) queryOpts() []neo4j.ExecuteQueryConfigurationOption {
	if s.database == "" {
		return nil
	}
	return []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithDatabase(s.database)}
}

func checkIdent(ident string) error {
	if !identRe.MatchString(ident) {
		return faults.Newf(faults.KindValidationFailed, "graph", "invalid identifier %q", ident)
	}
	return nil
}
