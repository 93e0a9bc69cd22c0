// Package graphdb provides the shared Neo4j instance for integration
// tests. CI points the suite at an external server through CI_NEO4J_URL;
// local runs start one testcontainer per package and share it across
// tests.
package graphdb

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codeready-toolchain/strands/pkg/graph"
	"github.com/codeready-toolchain/strands/pkg/resilience"
)

const (
	image    = "neo4j:5"
	username = "neo4j"
	password = "strands-integration"
)

var (
	sharedURI     string
	containerOnce sync.Once
	containerErr  error
)

// Connect returns a graph store wired to an empty database with the
// schema ensured. Tests share one server, so the previous test's data is
// wiped on every call; the store is closed via t.Cleanup.
func Connect(t *testing.T) *graph.Store {
	t.Helper()
	ctx := context.Background()

	uri, user, pass := boltEndpoint(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := graph.NewStore(graph.Config{URI: uri, Username: user, Password: pass},
		resilience.NewExecutor("neo4j", resilience.DefaultConfig(), logger), logger)
	require.NoError(t, err)
	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.EnsureSchema(ctx))

	_, err = store.Write(ctx, "MATCH (n) DETACH DELETE n", nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := store.Close(context.Background()); err != nil {
			t.Logf("Warning: closing graph store: %v", err)
		}
	})

	return store
}

// boltEndpoint returns the bolt URI and credentials, from CI env vars or
// the shared container (started once per package).
func boltEndpoint(t *testing.T) (uri, user, pass string) {
	if ciURL := os.Getenv("CI_NEO4J_URL"); ciURL != "" {
		t.Log("Using external Neo4j from CI_NEO4J_URL")
		return ciURL, envOr("CI_NEO4J_USER", username), envOr("CI_NEO4J_PASSWORD", password)
	}

	containerOnce.Do(func() {
		ctx := context.Background()
		t.Log("Starting shared Neo4j testcontainer for all tests")

		container, err := testcontainers.Run(ctx, image,
			testcontainers.WithExposedPorts("7687/tcp"),
			testcontainers.WithEnv(map[string]string{
				"NEO4J_AUTH": username + "/" + password,
			}),
			testcontainers.WithWaitStrategy(
				wait.ForLog("Bolt enabled on").WithStartupTimeout(2*time.Minute)),
		)
		if err != nil {
			containerErr = fmt.Errorf("failed to start neo4j container: %w", err)
			return
		}

		host, err := container.Host(ctx)
		if err != nil {
			containerErr = fmt.Errorf("failed to resolve container host: %w", err)
			return
		}
		port, err := container.MappedPort(ctx, "7687")
		if err != nil {
			containerErr = fmt.Errorf("failed to resolve bolt port: %w", err)
			return
		}

		sharedURI = fmt.Sprintf("neo4j://%s:%s", host, port.Port())
		t.Logf("Shared container ready: %s", sharedURI)
	})

	require.NoError(t, containerErr, "Failed to setup shared Neo4j container")
	return sharedURI, username, password
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
