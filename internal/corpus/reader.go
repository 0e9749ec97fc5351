/**
 * Annotation Corpus Reader
 *
 * Loads the annotated, category-tagged pattern corpus and the category
 * directory from PostgreSQL. Records are read once per analysis request and
 * treated as immutable from there on; the engine filters them by pattern
 * kind, the reader does not.
 */

package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/adverant/nexus/categorize-worker/internal/engine"
	"github.com/adverant/nexus/categorize-worker/internal/logging"
)

// Reader loads annotation records and categories from PostgreSQL.
type Reader struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewReader connects to the corpus database.
func NewReader(databaseURL string) (*Reader, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Reader{
		db:     db,
		logger: logging.NewLogger("CorpusReader"),
	}, nil
}

// LoadAnnotations returns all annotation records. Rows whose annotation
// payload cannot be decoded are skipped with a log line; a bad row never
// fails the whole load.
func (r *Reader) LoadAnnotations(ctx context.Context) ([]engine.AnnotationRecord, error) {
	query := `
		SELECT
			data_id,
			rule_id,
			category_id,
			file_type,
			annotations,
			image_features
		FROM categorize.annotation_records
		ORDER BY created_at, data_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotation records: %w", err)
	}
	defer rows.Close()

	var records []engine.AnnotationRecord
	skipped := 0
	for rows.Next() {
		var (
			dataID, ruleID, categoryID, fileType string
			annotationsJSON                      []byte
			featuresJSON                         []byte
		)
		if err := rows.Scan(&dataID, &ruleID, &categoryID, &fileType, &annotationsJSON, &featuresJSON); err != nil {
			return nil, fmt.Errorf("failed to scan annotation record: %w", err)
		}

		var annotations []engine.AnnotationPattern
		if err := json.Unmarshal(annotationsJSON, &annotations); err != nil {
			r.logger.Warn("Skipping record with malformed annotations", "dataId", dataID, "error", err)
			skipped++
			continue
		}

		record := engine.AnnotationRecord{
			DataID:      dataID,
			Rule:        engine.AnnotationRule{ID: ruleID, CategoryID: categoryID},
			Annotations: annotations,
			Type:        engine.FileType(fileType),
		}

		if len(featuresJSON) > 0 {
			var features engine.ImageFeatures
			if err := json.Unmarshal(featuresJSON, &features); err != nil {
				r.logger.Warn("Skipping malformed image features", "dataId", dataID, "error", err)
			} else {
				record.Features = &features
			}
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate annotation records: %w", err)
	}

	if skipped > 0 {
		r.logger.Warn("Corpus load skipped malformed records", "skipped", skipped, "loaded", len(records))
	}
	return records, nil
}

// LoadRecordsByIDs returns the records matching a shortlist of data IDs,
// preserving corpus order.
func (r *Reader) LoadRecordsByIDs(ctx context.Context, dataIDs []string) ([]engine.AnnotationRecord, error) {
	if len(dataIDs) == 0 {
		return nil, nil
	}

	all, err := r.LoadAnnotations(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(dataIDs))
	for _, id := range dataIDs {
		wanted[id] = true
	}

	var records []engine.AnnotationRecord
	for _, record := range all {
		if wanted[record.DataID] {
			records = append(records, record)
		}
	}
	return records, nil
}

// LoadDirectory returns a request-scoped category directory snapshot. Callers
// pass it explicitly into the aggregator; it is never cached across requests.
func (r *Reader) LoadDirectory(ctx context.Context) (*Directory, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categorize.categories`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}

	return &Directory{names: names}, nil
}

// Ping checks database connectivity.
func (r *Reader) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *Reader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Directory is an immutable category id-to-name snapshot for one request.
type Directory struct {
	names map[string]string
}

// NewDirectory builds a directory from an in-memory map. Used by tests and
// by callers that already hold the category list.
func NewDirectory(names map[string]string) *Directory {
	copied := make(map[string]string, len(names))
	for k, v := range names {
		copied[k] = v
	}
	return &Directory{names: copied}
}

// Name implements engine.CategoryDirectory.
func (d *Directory) Name(categoryID string) (string, bool) {
	name, ok := d.names[categoryID]
	return name, ok
}

// Len returns the number of known categories.
func (d *Directory) Len() int {
	return len(d.names)
}
