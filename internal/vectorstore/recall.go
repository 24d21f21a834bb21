package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/nidhogg/noema/internal/memory"
	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// collMemories is the collection mirroring memory records for
// associative recall.
const collMemories = "memories"

// Config holds connection settings for a Qdrant instance.
type Config struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Recall mirrors memory records into Qdrant for nearest-neighbor lookup.
// It owns the gRPC connection. All writes are fire-and-forget; a missing
// or failing Qdrant only costs the associative-recall augmentation, never
// correctness.
type Recall struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	logger      *zap.Logger
}

// NewRecall dials the Qdrant gRPC endpoint and ensures the memories
// collection holds vectors of the given dimension.
func NewRecall(ctx context.Context, cfg Config, dimension int, logger *zap.Logger) (*Recall, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}
	r := &Recall{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		logger:      logger,
	}
	if err := r.ensureCollection(ctx, uint64(dimension)); err != nil {
		conn.Close()
		return nil, err
	}
	return r, nil
}

func (r *Recall) ensureCollection(ctx context.Context, dimension uint64) error {
	_, err := r.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: collMemories})
	if err == nil {
		return nil
	}
	_, err = r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: collMemories,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     dimension,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", collMemories, err)
	}
	return nil
}

// Mirror upserts a stored record under its composite vector. Errors are
// logged and swallowed.
func (r *Recall) Mirror(rec *memory.Record, vec []float32) {
	if len(vec) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collMemories,
		Points: []*pb.PointStruct{
			{
				Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: rec.ID}},
				Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vec}}},
				Payload: map[string]*pb.Value{
					"owner": {Kind: &pb.Value_StringValue{StringValue: rec.OwnerID}},
					"kind":  {Kind: &pb.Value_StringValue{StringValue: string(rec.Kind)}},
				},
			},
		},
	})
	if err != nil {
		r.logger.Debug("recall mirror failed", zap.String("record", rec.ID), zap.Error(err))
	}
}

// Similar returns the IDs of the most similar mirrored records.
func (r *Recall) Similar(ctx context.Context, vec []float32, topK int) []string {
	if len(vec) == 0 {
		return nil
	}
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collMemories,
		Vector:         vec,
		Limit:          uint64(topK),
	})
	if err != nil {
		r.logger.Debug("recall search failed", zap.Error(err))
		return nil
	}
	ids := make([]string, 0, len(resp.Result))
	for _, hit := range resp.Result {
		ids = append(ids, hit.Id.GetUuid())
	}
	return ids
}

// Close tears down the underlying gRPC connection.
func (r *Recall) Close() error {
	return r.conn.Close()
}
