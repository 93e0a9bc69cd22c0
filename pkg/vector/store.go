// Package vector provides the Qdrant-backed embedding index. Approved
// incident resolutions are indexed here and the embedding-similarity
// specialist searches it for precedents during investigations.
package vector

import (
	"context"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/resilience"
)

// Config contains the vector store connection settings.
type Config struct {
	// Host and Port point at the Qdrant gRPC endpoint.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Collection is the collection holding incident embeddings.
	Collection string `yaml:"collection"`

	// Dimension is the embedding vector size. Must match the model
	// producing the embeddings.
	Dimension uint64 `yaml:"dimension"`
}

// DefaultConfig returns the built-in vector store defaults.
func DefaultConfig() Config {
	return Config{
		Host:       "localhost",
		Port:       6334,
		Collection: "incidents",
		Dimension:  384,
	}
}

// Point is one embedding with its payload, keyed by a UUID.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Hit is one search result.
type Hit struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Store is the shared vector store client. Safe for concurrent use.
type Store struct {
	client     *qdrant.Client
	collection string
	dimension  uint64
	exec       *resilience.Executor
	logger     *slog.Logger
}

// NewStore creates a vector store client.
func NewStore(cfg Config, exec *resilience.Executor, logger *slog.Logger) (*Store, error) {
	if cfg.Collection == "" {
		return nil, faults.New(faults.KindValidationFailed, "vector.NewStore", "collection name is required")
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, faults.Wrap(faults.KindUpstreamUnavailable, "vector.NewStore", "create client", err)
	}
	return &Store{
		client:     client,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		exec:       exec,
		logger:     logger,
	}, nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// EnsureCollection creates the incident collection if it does not exist.
// Idempotent; runs at startup.
func (s *Store) EnsureCollection(ctx context.Context) error {
	return s.exec.Do(ctx, "vector.EnsureCollection", func(ctx context.Context) error {
		exists, err := s.client.CollectionExists(ctx, s.collection)
		if err != nil {
			return mapGRPC("vector.EnsureCollection", err)
		}
		if exists {
			return nil
		}
		s.logger.Info("Creating vector collection", "collection", s.collection, "dimension", s.dimension)
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.dimension,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		return mapGRPC("vector.EnsureCollection", err)
	})
}

// Upsert writes points into the collection, waiting for them to be indexed.
func (s *Store) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		if p.ID == "" {
			return faults.New(faults.KindValidationFailed, "vector.Upsert", "empty point id")
		}
		if uint64(len(p.Vector)) != s.dimension {
			return faults.Newf(faults.KindValidationFailed, "vector.Upsert",
				"vector size %d does not match collection dimension %d", len(p.Vector), s.dimension)
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(p.Payload),
		})
	}
	return s.exec.Do(ctx, "vector.Upsert", func(ctx context.Context) error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         structs,
		})
		return mapGRPC("vector.Upsert", err)
	})
}

// Search returns the top-k nearest points to the query vector.
func (s *Store) Search(ctx context.Context, query []float32, k uint64) ([]Hit, error) {
	if uint64(len(query)) != s.dimension {
		return nil, faults.Newf(faults.KindValidationFailed, "vector.Search",
			"query size %d does not match collection dimension %d", len(query), s.dimension)
	}
	var hits []Hit
	err := s.exec.Do(ctx, "vector.Search", func(ctx context.Context) error {
		scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.collection,
			Query:          qdrant.NewQuery(query...),
			Limit:          qdrant.PtrOf(k),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return mapGRPC("vector.Search", err)
		}
		hits = make([]Hit, 0, len(scored))
		for _, sp := range scored {
			hits = append(hits, Hit{
				ID:      pointID(sp.GetId()),
				Score:   sp.GetScore(),
				Payload: payloadToMap(sp.GetPayload()),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// Snapshot exposes the resilience counters for health reporting.
func (s *Store) Snapshot() resilience.Snapshot {
	return s.exec.Snapshot()
}

// mapGRPC converts gRPC transport errors into the platform error taxonomy
// so the executor can tell transient outages from caller bugs.
func mapGRPC(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists:
		return faults.Wrap(faults.KindValidationFailed, op, st.Message(), err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return faults.Wrap(faults.KindUpstreamUnavailable, op, st.Message(), err)
	default:
		return err
	}
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return ""
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	default:
		return v.String()
	}
}
