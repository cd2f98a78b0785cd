package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import for register side-effects.
	log "github.com/sirupsen/logrus"

	"github.com/fspswitch/transfers/go/transfer"
)

// SQLite is a Store backed by an embedded SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// SQLite / go-sqlite3 is a bit fickle about raced opens of a newly created
// database, often returning "database is locked" errors. Ensure one
// sql.Open completes before the next starts.
var sqliteOpenMu sync.Mutex

// OpenSQLite opens (and migrates) the transfer store at |path|.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	log.WithField("path", path).Info("opening transfer store")

	sqliteOpenMu.Lock()
	var db, err = sql.Open("sqlite3", path)
	if err == nil {
		err = db.PingContext(ctx)
	}
	sqliteOpenMu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("opening SQLite database %q: %w", path, err)
	}
	if _, err = db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("migrating store schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS participant (
	name       TEXT PRIMARY KEY,
	is_active  INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS transfer (
	transfer_id         TEXT PRIMARY KEY,
	payer_fsp           TEXT NOT NULL,
	payee_fsp           TEXT NOT NULL,
	currency            TEXT NOT NULL,
	amount              TEXT NOT NULL,
	ilp_packet          TEXT NOT NULL,
	condition           TEXT NOT NULL,
	expiration_date     TEXT NOT NULL,
	extension_list      TEXT NOT NULL,
	is_valid            INTEGER NOT NULL,
	invalid_reason      TEXT,
	fulfilment          TEXT,
	completed_timestamp TEXT,
	created_at          TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS transfer_duplicate_check (
	transfer_id TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS transfer_state_change (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	transfer_id TEXT NOT NULL,
	state       TEXT NOT NULL,
	reason      TEXT,
	created_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS transfer_error (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	transfer_id       TEXT NOT NULL,
	error_code        INTEGER NOT NULL,
	error_description TEXT NOT NULL,
	created_at        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS topic_offset (
	topic            TEXT PRIMARY KEY,
	committed_offset INTEGER NOT NULL
);
`

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

func nowUTC() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// ValidateDuplicateHash implements Store.
func (s *SQLite) ValidateDuplicateHash(ctx context.Context, transferID string, fingerprint []byte) (DuplicateCheck, error) {
	var tx, err = s.db.BeginTx(ctx, nil)
	if err != nil {
		return DuplicateCheck{}, fmt.Errorf("beginning duplicate-check txn: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var hexPrint = hex.EncodeToString(fingerprint)
	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT fingerprint FROM transfer_duplicate_check WHERE transfer_id = ?`,
		transferID).Scan(&existing)

	if errors.Is(err, sql.ErrNoRows) {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO transfer_duplicate_check (transfer_id, fingerprint, created_at) VALUES (?, ?, ?)`,
			transferID, hexPrint, nowUTC()); err != nil {
			return DuplicateCheck{}, fmt.Errorf("inserting duplicate hash of %q: %w", transferID, err)
		}
		if err = tx.Commit(); err != nil {
			return DuplicateCheck{}, fmt.Errorf("committing duplicate-check txn: %w", err)
		}
		return DuplicateCheck{}, nil
	} else if err != nil {
		return DuplicateCheck{}, fmt.Errorf("reading duplicate hash of %q: %w", transferID, err)
	}

	if existing == hexPrint {
		return DuplicateCheck{ExistsMatching: true}, nil
	}
	return DuplicateCheck{ExistsNotMatching: true}, nil
}

// TransferStateChange implements Store.
func (s *SQLite) TransferStateChange(ctx context.Context, transferID string) (transfer.State, error) {
	var state string
	var err = s.db.QueryRowContext(ctx,
		`SELECT state FROM transfer_state_change WHERE transfer_id = ? ORDER BY id DESC LIMIT 1`,
		transferID).Scan(&state)

	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	} else if err != nil {
		return "", fmt.Errorf("reading state of %q: %w", transferID, err)
	}
	return transfer.State(state), nil
}

// GetByID implements Store.
func (s *SQLite) GetByID(ctx context.Context, transferID string) (*transfer.Transfer, error) {
	var (
		t          transfer.Transfer
		expiration string
		extensions string
		fulfilment sql.NullString
		completed  sql.NullString
	)
	var err = s.db.QueryRowContext(ctx, `
		SELECT transfer_id, payer_fsp, payee_fsp, currency, amount,
		       ilp_packet, condition, expiration_date, extension_list,
		       fulfilment, completed_timestamp
		FROM transfer WHERE transfer_id = ?`, transferID).Scan(
		&t.TransferID, &t.PayerFSP, &t.PayeeFSP, &t.Amount.Currency, &t.Amount.Amount,
		&t.ILPPacket, &t.Condition, &expiration, &extensions,
		&fulfilment, &completed)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("reading transfer %q: %w", transferID, err)
	}

	if t.ExpirationDate, err = time.Parse(time.RFC3339Nano, expiration); err != nil {
		return nil, fmt.Errorf("parsing expiration of %q: %w", transferID, err)
	}
	if err = json.Unmarshal([]byte(extensions), &t.ExtensionList); err != nil {
		return nil, fmt.Errorf("parsing extensions of %q: %w", transferID, err)
	}
	if fulfilment.Valid {
		t.Fulfilment = fulfilment.String
	}
	if completed.Valid {
		var ts, err = time.Parse(time.RFC3339Nano, completed.String)
		if err != nil {
			return nil, fmt.Errorf("parsing completed timestamp of %q: %w", transferID, err)
		}
		t.CompletedTimestamp = &ts
	}

	if t.TransferState, err = s.TransferStateChange(ctx, transferID); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return &t, nil
}

// Prepare implements Store.
func (s *SQLite) Prepare(ctx context.Context, p *transfer.Prepare, reason string, valid bool) error {
	var extensions, err = json.Marshal(p.ExtensionList)
	if err != nil {
		return fmt.Errorf("encoding extensions of %q: %w", p.TransferID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning prepare txn: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var invalidReason sql.NullString
	if !valid {
		invalidReason = sql.NullString{String: reason, Valid: true}
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO transfer (transfer_id, payer_fsp, payee_fsp, currency, amount,
			ilp_packet, condition, expiration_date, extension_list,
			is_valid, invalid_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.TransferID, p.PayerFSP, p.PayeeFSP, p.Amount.Currency, p.Amount.Amount,
		p.ILPPacket, p.Condition, p.ExpirationDate.UTC().Format(time.RFC3339Nano),
		string(extensions), valid, invalidReason, nowUTC()); err != nil {
		return fmt.Errorf("inserting transfer %q: %w", p.TransferID, err)
	}
	if err = insertStateChange(ctx, tx, p.TransferID, transfer.StateReceived, reason); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing prepare txn: %w", err)
	}
	return nil
}

// Reserve implements Store.
func (s *SQLite) Reserve(ctx context.Context, transferID string) error {
	return s.transition(ctx, transferID, transfer.StateReceived, transfer.StateReserved, "", nil)
}

// Fulfil implements Store.
func (s *SQLite) Fulfil(ctx context.Context, transferID, fulfilment string, completed time.Time) error {
	return s.transition(ctx, transferID, transfer.StateReserved, transfer.StateCommitted, "",
		func(tx *sql.Tx) error {
			var _, err = tx.ExecContext(ctx,
				`UPDATE transfer SET fulfilment = ?, completed_timestamp = ? WHERE transfer_id = ?`,
				fulfilment, completed.UTC().Format(time.RFC3339Nano), transferID)
			if err != nil {
				return fmt.Errorf("recording fulfilment of %q: %w", transferID, err)
			}
			return nil
		})
}

// Reject implements Store.
func (s *SQLite) Reject(ctx context.Context, transferID string, info transfer.ErrorInformation) error {
	return s.transition(ctx, transferID, transfer.StateReserved, transfer.StateAborted, info.ErrorDescription,
		func(tx *sql.Tx) error {
			var _, err = tx.ExecContext(ctx,
				`INSERT INTO transfer_error (transfer_id, error_code, error_description, created_at) VALUES (?, ?, ?, ?)`,
				transferID, info.ErrorCode, info.ErrorDescription, nowUTC())
			if err != nil {
				return fmt.Errorf("recording rejection error of %q: %w", transferID, err)
			}
			return nil
		})
}

// transition atomically verifies the current state is |from| and appends a
// state change to |to|, running |also| within the same transaction.
func (s *SQLite) transition(ctx context.Context, transferID string, from, to transfer.State, reason string, also func(*sql.Tx) error) error {
	var tx, err = s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transition txn: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT state FROM transfer_state_change WHERE transfer_id = ? ORDER BY id DESC LIMIT 1`,
		transferID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("transfer %q: %w", transferID, ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("reading state of %q: %w", transferID, err)
	}

	if transfer.State(current) != from {
		return fmt.Errorf("transfer %q is %s, not %s: %w", transferID, current, from, ErrInvalidTransition)
	}
	if also != nil {
		if err = also(tx); err != nil {
			return err
		}
	}
	if err = insertStateChange(ctx, tx, transferID, to, reason); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transition txn: %w", err)
	}
	return nil
}

func insertStateChange(ctx context.Context, tx *sql.Tx, transferID string, state transfer.State, reason string) error {
	var r sql.NullString
	if reason != "" {
		r = sql.NullString{String: reason, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transfer_state_change (transfer_id, state, reason, created_at) VALUES (?, ?, ?, ?)`,
		transferID, string(state), r, nowUTC()); err != nil {
		return fmt.Errorf("appending state change of %q: %w", transferID, err)
	}
	return nil
}

// LogTransferError implements Store.
func (s *SQLite) LogTransferError(ctx context.Context, transferID string, code int, description string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO transfer_error (transfer_id, error_code, error_description, created_at) VALUES (?, ?, ?, ?)`,
		transferID, code, description, nowUTC()); err != nil {
		return fmt.Errorf("logging error of %q: %w", transferID, err)
	}
	return nil
}

// Participant implements Store.
func (s *SQLite) Participant(ctx context.Context, name string) (*transfer.Participant, error) {
	var (
		p       transfer.Participant
		created string
	)
	var err = s.db.QueryRowContext(ctx,
		`SELECT name, is_active, created_at FROM participant WHERE name = ?`,
		name).Scan(&p.Name, &p.IsActive, &created)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading participant %q: %w", name, err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return &p, nil
}

// Participants implements Store.
func (s *SQLite) Participants(ctx context.Context) ([]string, error) {
	var rows, err = s.db.QueryContext(ctx,
		`SELECT name FROM participant WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// EnsureParticipant registers |name| as an active participant if absent.
func (s *SQLite) EnsureParticipant(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO participant (name, is_active, created_at) VALUES (?, 1, ?)
		 ON CONFLICT(name) DO NOTHING`, name, nowUTC()); err != nil {
		return fmt.Errorf("ensuring participant %q: %w", name, err)
	}
	return nil
}

// TopicOffset implements Store.
func (s *SQLite) TopicOffset(ctx context.Context, topic string) (int64, error) {
	var offset int64
	var err = s.db.QueryRowContext(ctx,
		`SELECT committed_offset FROM topic_offset WHERE topic = ?`, topic).Scan(&offset)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("reading offset of %q: %w", topic, err)
	}
	return offset, nil
}

// CommitTopicOffset implements Store.
func (s *SQLite) CommitTopicOffset(ctx context.Context, topic string, offset int64) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO topic_offset (topic, committed_offset) VALUES (?, ?)
		 ON CONFLICT(topic) DO UPDATE SET committed_offset = excluded.committed_offset`,
		topic, offset); err != nil {
		return fmt.Errorf("committing offset of %q: %w", topic, err)
	}
	return nil
}
