package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MaxBatchOps caps the number of writes in a single BatchWrite call.
const MaxBatchOps = 400

// ErrBatchTooLarge is returned when a batch exceeds MaxBatchOps.
var ErrBatchTooLarge = errors.New("batch exceeds maximum operation count")

var fieldNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Document is one schemaless record in a collection.
type Document struct {
	Collection string
	ID         string
	Data       map[string]any
	UpdatedAt  time.Time
}

// OpKind selects how a WriteOp is applied.
type OpKind int

const (
	// OpMerge writes the given fields over any existing document, keeping the rest.
	OpMerge OpKind = iota
	// OpSet replaces the whole document.
	OpSet
	// OpDelete removes the document.
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpMerge:
		return "merge"
	case OpSet:
		return "set"
	case OpDelete:
		return "delete"
	}
	return fmt.Sprintf("op(%d)", int(k))
}

// WriteOp is a single write inside a batch.
type WriteOp struct {
	Kind       OpKind
	Collection string
	ID         string
	Data       map[string]any
}

// Merge builds a merge write.
func Merge(collection, id string, data map[string]any) WriteOp {
	return WriteOp{Kind: OpMerge, Collection: collection, ID: id, Data: data}
}

// Set builds a replacing write.
func Set(collection, id string, data map[string]any) WriteOp {
	return WriteOp{Kind: OpSet, Collection: collection, ID: id, Data: data}
}

// Delete builds a delete.
func Delete(collection, id string) WriteOp {
	return WriteOp{Kind: OpDelete, Collection: collection, ID: id}
}

// Filter restricts a query to documents whose top-level field matches one of Values.
type Filter struct {
	Field  string
	Values []string
}

// Eq matches documents where field equals value.
func Eq(field, value string) Filter {
	return Filter{Field: field, Values: []string{value}}
}

// In matches documents where field equals any of values. An empty set matches nothing.
func In(field string, values ...string) Filter {
	return Filter{Field: field, Values: values}
}

func (db *DB) whereClause(collection string, filters []Filter) (string, []any, error) {
	clauses := []string{"collection = ?"}
	args := []any{collection}
	for _, f := range filters {
		if !fieldNameRe.MatchString(f.Field) {
			return "", nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		if len(f.Values) == 0 {
			clauses = append(clauses, "1 = 0")
			continue
		}
		expr := db.dialect.JSONText("data", f.Field)
		if len(f.Values) == 1 {
			clauses = append(clauses, expr+" = ?")
			args = append(args, f.Values[0])
			continue
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(f.Values)), ", ")
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", expr, marks))
		for _, v := range f.Values {
			args = append(args, v)
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

// QueryDocuments returns the documents of a collection matching all filters, ordered by id.
func (db *DB) QueryDocuments(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	where, args, err := db.whereClause(collection, filters)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, db.Q(`SELECT collection, id, data, updated_at FROM documents WHERE `+where+` ORDER BY id`), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// GetDocument returns a single document. Missing documents yield sql.ErrNoRows.
func (db *DB) GetDocument(ctx context.Context, collection, id string) (*Document, error) {
	row := db.QueryRowContext(ctx, db.Q(`SELECT collection, id, data, updated_at FROM documents WHERE collection = ? AND id = ?`), collection, id)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocumentIDs returns every id in a collection.
func (db *DB) ListDocumentIDs(ctx context.Context, collection string) ([]string, error) {
	rows, err := db.QueryContext(ctx, db.Q(`SELECT id FROM documents WHERE collection = ? ORDER BY id`), collection)
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", collection, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// BatchWrite applies ops atomically. Subscribers of the touched collections
// are refreshed after the transaction commits.
func (db *DB) BatchWrite(ctx context.Context, ops []WriteOp) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > MaxBatchOps {
		return fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(ops), MaxBatchOps)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	touched := make(map[string]bool)
	for _, op := range ops {
		if err := db.applyOp(ctx, tx, op); err != nil {
			return fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, err)
		}
		touched[op.Collection] = true
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	db.feed.notify(db, touched)
	return nil
}

func (db *DB) applyOp(ctx context.Context, tx *sql.Tx, op WriteOp) error {
	if op.Collection == "" || op.ID == "" {
		return errors.New("collection and id are required")
	}
	if op.Kind == OpDelete {
		_, err := tx.ExecContext(ctx, db.Q(`DELETE FROM documents WHERE collection = ? AND id = ?`), op.Collection, op.ID)
		return err
	}
	data := op.Data
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	update := "excluded.data"
	if op.Kind == OpMerge {
		update = db.dialect.MergeJSON("documents.data", "excluded.data")
	}
	query := fmt.Sprintf(`INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, %s, %s)
		ON CONFLICT (collection, id) DO UPDATE SET data = %s, updated_at = excluded.updated_at`,
		db.dialect.JSONParam(), db.dialect.Now(), update)
	_, err = tx.ExecContext(ctx, db.Q(query), op.Collection, op.ID, string(payload))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var raw []byte
	var updatedAt any
	if err := row.Scan(&doc.Collection, &doc.ID, &raw, &updatedAt); err != nil {
		return doc, err
	}
	doc.UpdatedAt = parseTime(updatedAt)
	doc.Data = map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc.Data); err != nil {
			return doc, fmt.Errorf("decode %s/%s: %w", doc.Collection, doc.ID, err)
		}
	}
	return doc, nil
}
