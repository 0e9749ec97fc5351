/**
 * Storage Manager for the Categorization Worker
 *
 * Coordinates PostgreSQL (results, job status) and the optional Qdrant image
 * feature index. Qdrant is a latency optimization, never a correctness
 * dependency: every operation on it is best-effort.
 */

package storage

import (
	"context"
	"fmt"

	"github.com/adverant/nexus/categorize-worker/internal/engine"
	"github.com/adverant/nexus/categorize-worker/internal/logging"
)

// Manager coordinates PostgreSQL and Qdrant operations.
type Manager struct {
	postgres *PostgresClient
	qdrant   *QdrantClient
	logger   *logging.Logger
}

// NewManager creates a storage manager. Pass an empty qdrantAddress to run
// without the feature index.
func NewManager(postgresURL, qdrantAddress, qdrantCollection string) (*Manager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	logger := logging.NewLogger("StorageManager")

	var qc *QdrantClient
	if qdrantAddress != "" {
		qc, err = NewQdrantClient(qdrantAddress, qdrantCollection)
		if err != nil {
			// The index is optional: log and continue on PostgreSQL alone.
			logger.Warn("Qdrant unavailable, image shortlisting disabled", "error", err)
			qc = nil
		}
	}

	return &Manager{
		postgres: postgres,
		qdrant:   qc,
		logger:   logger,
	}, nil
}

// StoreResult persists the analysis result and returns its ID.
func (m *Manager) StoreResult(ctx context.Context, jobID string, result *engine.AnalysisResult) (string, error) {
	return m.postgres.StoreAnalysisResult(ctx, jobID, result)
}

// UpdateJobStatus updates job status in PostgreSQL.
func (m *Manager) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	return m.postgres.UpdateJobStatus(ctx, update)
}

// IndexImageFeatures stores an annotated image's feature vector for future
// shortlisting. Best-effort: failures are logged, never returned.
func (m *Manager) IndexImageFeatures(ctx context.Context, dataID string, features *engine.ImageFeatures, categoryID string) {
	if m.qdrant == nil || features == nil {
		return
	}
	if err := m.qdrant.UpsertFeatures(ctx, dataID, features, categoryID); err != nil {
		m.logger.Warn("Failed to index image features", "dataId", dataID, "error", err)
	}
}

// ShortlistSimilar returns the data IDs of corpus records most similar to the
// candidate image, or nil when the index is unavailable or empty.
func (m *Manager) ShortlistSimilar(ctx context.Context, features *engine.ImageFeatures, limit int) []string {
	if m.qdrant == nil || features == nil {
		return nil
	}

	hits, err := m.qdrant.Shortlist(ctx, features, limit)
	if err != nil {
		m.logger.Warn("Feature shortlist failed, falling back to full scan", "error", err)
		return nil
	}

	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.DataID)
	}
	return ids
}

// Ping checks PostgreSQL connectivity.
func (m *Manager) Ping(ctx context.Context) error {
	return m.postgres.Ping(ctx)
}

// Close closes all storage connections.
func (m *Manager) Close() error {
	var firstErr error
	if m.qdrant != nil {
		if err := m.qdrant.Close(); err != nil {
			firstErr = err
		}
	}
	if err := m.postgres.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
