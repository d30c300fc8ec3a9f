package corpus

import (
	"context"
	"fmt"
	"regexp"

	"github.com/errdocs/retrieval-engine/pkg/postgres"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresSource reads the corpus from a PostgreSQL table with
// (doc_path, service, content) columns. doc_path is the stable document id.
type PostgresSource struct {
	client *postgres.Client
	table  string
}

// NewPostgresSource creates a source over the given table.
func NewPostgresSource(client *postgres.Client, table string) (*PostgresSource, error) {
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid corpus table name %q", table)
	}
	return &PostgresSource{client: client, table: table}, nil
}

// Documents returns the full corpus snapshot ordered by doc_path.
func (s *PostgresSource) Documents(ctx context.Context) ([]Document, error) {
	query := fmt.Sprintf(
		"SELECT doc_path, COALESCE(service, ''), content FROM %s ORDER BY doc_path",
		s.table,
	)
	rows, err := s.client.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying corpus table %s: %w", s.table, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Service, &doc.Text); err != nil {
			return nil, fmt.Errorf("scanning corpus row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating corpus rows: %w", err)
	}
	return docs, nil
}
