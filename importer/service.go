package importer

import (
	"context"
	"log"
	"time"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/config"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

// Store is what the import service needs from the document store.
type Store interface {
	IDLister
	BatchWriter
	InsertImportLog(e *store.ImportLogEntry) (int64, error)
}

// Preview is the parsed, not yet committed state of an import.
type Preview struct {
	SessionID         string       `json:"session_id"`
	Source            string       `json:"source"`
	Drafts            []OrderDraft `json:"drafts"`
	Summary           Summary      `json:"summary"`
	SnapshotFetchedAt time.Time    `json:"snapshot_fetched_at"`
	ExpiresAt         time.Time    `json:"expires_at"`
}

// CommitReport is the outcome of committing a session.
type CommitReport struct {
	SessionID         string       `json:"session_id"`
	Source            string       `json:"source"`
	Result            CommitResult `json:"result"`
	SnapshotFetchedAt time.Time    `json:"snapshot_fetched_at"`
	Error             string       `json:"error,omitempty"`
}

// Service runs the preview/commit import flow.
type Service struct {
	parser    *Parser
	store     Store
	sessions  *Sessions
	batchSize int

	// OnCommit, when set, is called after every commit attempt that wrote rows.
	OnCommit func(CommitReport)
}

// NewService builds an import service from the import config.
func NewService(cfg config.ImportConfig, st Store) *Service {
	return &Service{
		parser:    NewParser(ColumnsFromConfig(cfg), cfg.LeadTimeDays),
		store:     st,
		sessions:  NewSessions(cfg.SessionTTL),
		batchSize: cfg.BatchSize,
	}
}

// Sessions exposes the session store.
func (s *Service) Sessions() *Sessions { return s.sessions }

// Preview parses rows against a fresh snapshot of existing IDs and opens a
// session. Header and validation failures return before any session exists.
func (s *Service) Preview(ctx context.Context, source, username string, rows [][]string) (*Preview, error) {
	snap, err := FetchSnapshot(ctx, s.store)
	if err != nil {
		return nil, err
	}
	drafts, err := s.parser.Parse(rows, snap)
	if err != nil {
		return nil, err
	}
	sess := s.sessions.Create(source, username, drafts, snap)
	return &Preview{
		SessionID:         sess.ID,
		Source:            source,
		Drafts:            drafts,
		Summary:           sess.Summary,
		SnapshotFetchedAt: snap.FetchedAt,
		ExpiresAt:         sess.ExpiresAt,
	}, nil
}

// Session reopens a pending preview without consuming it.
func (s *Service) Session(id string) (*Preview, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &Preview{
		SessionID:         sess.ID,
		Source:            sess.Source,
		Drafts:            sess.Drafts,
		Summary:           sess.Summary,
		SnapshotFetchedAt: sess.Snapshot.FetchedAt,
		ExpiresAt:         sess.ExpiresAt,
	}, nil
}

// Commit writes a previewed session. Every attempt is recorded in the import
// log. A partial failure returns the report together with a *CommitError.
func (s *Service) Commit(ctx context.Context, sessionID string, mode Mode) (*CommitReport, error) {
	sess, ok := s.sessions.Take(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	res, err := Commit(ctx, s.store, sess.Drafts, mode, CommitOptions{BatchSize: s.batchSize})
	report := &CommitReport{
		SessionID:         sess.ID,
		Source:            sess.Source,
		Result:            res,
		SnapshotFetchedAt: sess.Snapshot.FetchedAt,
	}
	entry := &store.ImportLogEntry{
		Source:        sess.Source,
		Mode:          string(mode),
		Username:      sess.Username,
		TotalRows:     res.TotalRows,
		CommittedRows: res.CommittedRows,
		SkippedRows:   res.Skipped,
		FailedAtChunk: res.FailedAtChunk,
	}
	if err != nil {
		report.Error = err.Error()
		entry.Error = err.Error()
		log.Printf("importer: commit %s (%s): %v", sess.Source, mode, err)
	}
	if _, logErr := s.store.InsertImportLog(entry); logErr != nil {
		log.Printf("importer: record import log: %v", logErr)
	}
	if res.CommittedRows > 0 && s.OnCommit != nil {
		s.OnCommit(*report)
	}
	if err != nil {
		return report, err
	}
	return report, nil
}
