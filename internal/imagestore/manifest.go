package imagestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/lewtec/imagesprite/internal/domain"
)

const manifestName = "ingest_manifest"

// encMode produces deterministic CBOR so identical manifests are stored as
// identical bytes.
var encMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	encMode, err = opts.EncMode()
	if err != nil {
		panic("imagestore: CBOR encoder initialization failed: " + err.Error())
	}
}

// PutManifest records m inside the transaction.
func (t *WriteTxn) PutManifest(ctx context.Context, m *domain.IngestManifest) error {
	if t.done {
		return domain.ErrTxDone
	}
	data, err := encMode.Marshal(m)
	if err != nil {
		return fmt.Errorf("while encoding ingest manifest: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
insert into meta (name, value) values (?, ?) on conflict(name) do update set value=excluded.value
`, manifestName, data)
	if err != nil {
		return fmt.Errorf("while writing ingest manifest: %w", translateError(err))
	}
	return nil
}

// Manifest returns the manifest of the last ingestion, or domain.ErrNotFound
// when the store was never populated by the ingestor.
func (s *Store) Manifest(ctx context.Context) (*domain.IngestManifest, error) {
	if s.closed.Load() {
		return nil, domain.ErrClosed
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE name = ?", manifestName).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("while reading ingest manifest: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("while reading ingest manifest: %w", err)
	}
	var m domain.IngestManifest
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("while decoding ingest manifest: %w", err)
	}
	return &m, nil
}
