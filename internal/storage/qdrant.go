/**
 * Qdrant Image Feature Index
 *
 * Stores the 256-bin grayscale histogram of annotated images as a vector so
 * the image matcher can shortlist likely corpus records before running the
 * exact feature comparison. The shortlist is a prefilter only: the comparator
 * still decides every match, and a missing or unreachable index degrades to a
 * full corpus scan.
 */

package storage

import (
	"context"
	"fmt"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/adverant/nexus/categorize-worker/internal/engine"
)

const featureVectorSize = 256

// QdrantClient handles the image feature index.
type QdrantClient struct {
	points         qdrant.PointsClient
	collections    qdrant.CollectionsClient
	conn           *grpc.ClientConn
	collectionName string
}

// ShortlistHit is one shortlisted corpus record with its index score.
type ShortlistHit struct {
	DataID string
	Score  float32
}

// NewQdrantClient connects to Qdrant and ensures the feature collection
// exists.
func NewQdrantClient(address string, collectionName string) (*QdrantClient, error) {
	if address == "" {
		return nil, fmt.Errorf("qdrant address is required")
	}
	if collectionName == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	conn, err := grpc.Dial(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	qc := &QdrantClient{
		points:         qdrant.NewPointsClient(conn),
		collections:    qdrant.NewCollectionsClient(conn),
		conn:           conn,
		collectionName: collectionName,
	}

	if err := qc.ensureCollection(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	return qc, nil
}

func (q *QdrantClient) ensureCollection(ctx context.Context) error {
	listResp, err := q.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, col := range listResp.Collections {
		if col.Name == q.collectionName {
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     featureVectorSize,
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// UpsertFeatures stores the histogram vector of one annotated image, keyed by
// the corpus record's data ID.
func (q *QdrantClient) UpsertFeatures(ctx context.Context, dataID string, features *engine.ImageFeatures, categoryID string) error {
	if dataID == "" {
		return fmt.Errorf("data ID is required")
	}
	if features == nil {
		return fmt.Errorf("features are required")
	}

	vector := histogramVector(features)

	point := &qdrant.PointStruct{
		Id: &qdrant.PointId{
			PointIdOptions: &qdrant.PointId_Uuid{Uuid: dataID},
		},
		Vectors: &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vector{
				Vector: &qdrant.Vector{Data: vector},
			},
		},
		Payload: map[string]*qdrant.Value{
			"data_id": {
				Kind: &qdrant.Value_StringValue{StringValue: dataID},
			},
			"category_id": {
				Kind: &qdrant.Value_StringValue{StringValue: categoryID},
			},
		},
	}

	_, err := q.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert features: %w", err)
	}

	return nil
}

// Shortlist returns the corpus records whose histogram vectors score closest
// to the candidate's.
func (q *QdrantClient) Shortlist(ctx context.Context, features *engine.ImageFeatures, limit int) ([]ShortlistHit, error) {
	if features == nil {
		return nil, fmt.Errorf("features are required")
	}
	if limit <= 0 {
		limit = 50
	}

	results, err := q.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: q.collectionName,
		Vector:         histogramVector(features),
		Limit:          uint64(limit),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search features: %w", err)
	}

	hits := make([]ShortlistHit, 0, len(results.Result))
	for _, result := range results.Result {
		dataID := ""
		if result.Payload != nil {
			if v, ok := result.Payload["data_id"]; ok {
				dataID = v.GetStringValue()
			}
		}
		if dataID == "" && result.Id != nil {
			dataID = result.Id.GetUuid()
		}
		if dataID == "" {
			continue
		}
		hits = append(hits, ShortlistHit{DataID: dataID, Score: result.Score})
	}

	return hits, nil
}

// histogramVector converts the 256-bin histogram to the index vector.
func histogramVector(features *engine.ImageFeatures) []float32 {
	vector := make([]float32, featureVectorSize)
	for i, freq := range features.Histogram {
		vector[i] = float32(freq)
	}
	return vector
}

// Close closes the Qdrant client connection.
func (q *QdrantClient) Close() error {
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
