package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/klauspost/compress/zstd"

	"shajara/internal/core/apperror"
	"shajara/internal/core/id"
	"shajara/internal/domain/audit"
)

// Compile-time check.
var _ audit.Repository = (*AuditRepo)(nil)

const auditTable = "audit_log"

// CompressionAlgo specifies the compression algorithm used for snapshots.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// auditRow is the storage shape of an entry. Snapshots above the threshold
// are stored zstd-compressed; the domain type never sees compressed bytes.
type auditRow struct {
	ID         id.ID           `db:"id"`
	ActorID    id.ID           `db:"actor_id"`
	TargetType string          `db:"target_type"`
	TargetID   id.ID           `db:"target_id"`
	ActionKind string          `db:"action_kind"`
	Severity   string          `db:"severity"`
	OldData     json.RawMessage `db:"old_data"`
	NewData     json.RawMessage `db:"new_data"`
	Compressed  []byte          `db:"snapshots_compressed"`
	Algo        CompressionAlgo `db:"compression_algo"`
	Description *string         `db:"description"`
	GroupID     *id.ID          `db:"group_id"`
	UndoneAt    *time.Time      `db:"undone_at"`
	UndoneBy    *id.ID          `db:"undone_by"`
	UndoReason  *string         `db:"undo_reason"`
	UndoEntry   *id.ID          `db:"undo_entry_id"`
	CreatedAt   time.Time       `db:"created_at"`
}

// AuditRepo is the PostgreSQL implementation of audit.Repository.
type AuditRepo struct {
	txm               *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewAuditRepo creates the repository with zstd snapshot compression.
func NewAuditRepo(txm *TxManager) (*AuditRepo, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &AuditRepo{
		txm:               txm,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024, // 10KB across both snapshots
	}, nil
}

// snapshotPair bundles the two snapshots for joint compression.
type snapshotPair struct {
	Old json.RawMessage `json:"old,omitempty"`
	New json.RawMessage `json:"new,omitempty"`
}

const auditColumns = `
	id, actor_id, target_type, target_id, action_kind, severity,
	old_data, new_data, snapshots_compressed, compression_algo, description,
	group_id, undone_at, undone_by, undo_reason, undo_entry_id, created_at
`

// Append writes one entry. Must run in the same transaction as the data
// write it records, so a rollback of the write takes the record with it.
func (r *AuditRepo) Append(ctx context.Context, e *audit.Entry) error {
	oldData, newData, compressed, algo, err := r.encodeSnapshots(e)
	if err != nil {
		return err
	}
	sql := `
		INSERT INTO audit_log (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = r.txm.GetQuerier(ctx).Exec(ctx, sql,
		e.ID, e.ActorID, e.TargetType, e.TargetID, e.ActionKind, e.Severity,
		oldData, newData, compressed, algo, e.Description,
		e.GroupID, e.UndoneAt, e.UndoneBy, e.UndoReason, e.UndoEntryID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// AppendMany writes a group of entries in one batched round trip.
func (r *AuditRepo) AppendMany(ctx context.Context, entries []*audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	sql := `
		INSERT INTO audit_log (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	for _, e := range entries {
		oldData, newData, compressed, algo, err := r.encodeSnapshots(e)
		if err != nil {
			return err
		}
		batch.Queue(sql,
			e.ID, e.ActorID, e.TargetType, e.TargetID, e.ActionKind, e.Severity,
			oldData, newData, compressed, algo, e.Description,
			e.GroupID, e.UndoneAt, e.UndoneBy, e.UndoReason, e.UndoEntryID, e.CreatedAt,
		)
	}

	tx := r.txm.GetTx(ctx)
	if tx == nil {
		return apperror.NewInternal(errNoTransaction)
	}
	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert audit batch: %w", err)
		}
	}
	return nil
}

func (r *AuditRepo) encodeSnapshots(e *audit.Entry) (oldData, newData json.RawMessage, compressed []byte, algo CompressionAlgo, err error) {
	total := len(e.OldData) + len(e.NewData)
	if total <= r.compressThreshold {
		return e.OldData, e.NewData, nil, CompressionNone, nil
	}
	pair, err := json.Marshal(snapshotPair{Old: e.OldData, New: e.NewData})
	if err != nil {
		return nil, nil, nil, CompressionNone, fmt.Errorf("marshal snapshots: %w", err)
	}
	return nil, nil, r.encoder.EncodeAll(pair, nil), CompressionZstd, nil
}

func (r *AuditRepo) decodeRow(row *auditRow) (*audit.Entry, error) {
	e := &audit.Entry{
		ID:          row.ID,
		ActorID:     row.ActorID,
		TargetType:  audit.TargetType(row.TargetType),
		TargetID:    row.TargetID,
		ActionKind:  row.ActionKind,
		Severity:    audit.Severity(row.Severity),
		OldData:     row.OldData,
		NewData:     row.NewData,
		Description: row.Description,
		GroupID:     row.GroupID,
		UndoneAt:    row.UndoneAt,
		UndoneBy:    row.UndoneBy,
		UndoReason:  row.UndoReason,
		UndoEntryID: row.UndoEntry,
		CreatedAt:   row.CreatedAt,
	}
	if row.Algo == CompressionZstd && len(row.Compressed) > 0 {
		raw, err := r.decoder.DecodeAll(row.Compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress snapshots: %w", err)
		}
		var pair snapshotPair
		if err := json.Unmarshal(raw, &pair); err != nil {
			return nil, fmt.Errorf("decode snapshots: %w", err)
		}
		e.OldData = pair.Old
		e.NewData = pair.New
	}
	return e, nil
}

func (r *AuditRepo) getOne(ctx context.Context, sql string, args ...any) (*audit.Entry, error) {
	var row auditRow
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(
		&row.ID, &row.ActorID, &row.TargetType, &row.TargetID, &row.ActionKind, &row.Severity,
		&row.OldData, &row.NewData, &row.Compressed, &row.Algo, &row.Description,
		&row.GroupID, &row.UndoneAt, &row.UndoneBy, &row.UndoReason, &row.UndoEntry, &row.CreatedAt,
	)
	if err != nil {
		if pgxNoRows(err) {
			return nil, apperror.NewNotFound("audit_entry", args[0])
		}
		if IsLockNotAvailable(err) {
			return nil, apperror.NewLockedByOther("audit_entry", args[0])
		}
		return nil, fmt.Errorf("get audit entry: %w", err)
	}
	return r.decodeRow(&row)
}

// GetByID fetches one entry.
func (r *AuditRepo) GetByID(ctx context.Context, entryID id.ID) (*audit.Entry, error) {
	sql := `SELECT ` + auditColumns + ` FROM audit_log WHERE id = $1`
	return r.getOne(ctx, sql, entryID)
}

// GetForUpdate fetches one entry with a NOWAIT row lock.
func (r *AuditRepo) GetForUpdate(ctx context.Context, entryID id.ID) (*audit.Entry, error) {
	sql := `SELECT ` + auditColumns + ` FROM audit_log WHERE id = $1 FOR UPDATE NOWAIT`
	return r.getOne(ctx, sql, entryID)
}

func (r *AuditRepo) selectMany(ctx context.Context, sql string, args ...any) ([]*audit.Entry, error) {
	rows, err := r.txm.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []*audit.Entry
	for rows.Next() {
		var row auditRow
		err := rows.Scan(
			&row.ID, &row.ActorID, &row.TargetType, &row.TargetID, &row.ActionKind, &row.Severity,
			&row.OldData, &row.NewData, &row.Compressed, &row.Algo, &row.Description,
			&row.GroupID, &row.UndoneAt, &row.UndoneBy, &row.UndoReason, &row.UndoEntry, &row.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e, err := r.decodeRow(&row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListByGroup returns a group's entries newest-first, the order cascade
// undo replays them in.
func (r *AuditRepo) ListByGroup(ctx context.Context, groupID id.ID) ([]*audit.Entry, error) {
	sql := `SELECT ` + auditColumns + ` FROM audit_log WHERE group_id = $1 ORDER BY created_at DESC, id DESC`
	return r.selectMany(ctx, sql, groupID)
}

// List returns entries matching the filter, newest-first.
func (r *AuditRepo) List(ctx context.Context, f audit.ListFilter) ([]*audit.Entry, error) {
	q := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select(auditColumns).
		From(auditTable).
		OrderBy("created_at DESC", "id DESC")

	if f.TargetType != "" {
		q = q.Where(squirrel.Eq{"target_type": f.TargetType})
	}
	if !id.IsNil(f.TargetID) {
		q = q.Where(squirrel.Eq{"target_id": f.TargetID})
	}
	if !id.IsNil(f.ActorID) {
		q = q.Where(squirrel.Eq{"actor_id": f.ActorID})
	}
	if f.ActionKind != "" {
		q = q.Where(squirrel.Eq{"action_kind": f.ActionKind})
	}
	if f.Severity != "" {
		q = q.Where(squirrel.Eq{"severity": f.Severity})
	}
	if !f.Since.IsZero() {
		q = q.Where(squirrel.GtOrEq{"created_at": f.Since})
	}
	if !f.Until.IsZero() {
		q = q.Where(squirrel.Lt{"created_at": f.Until})
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q = q.Limit(uint64(limit))
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.selectMany(ctx, sql, args...)
}

// MarkUndone sets the undo state exactly once. The WHERE undone_at IS NULL
// guard makes a second attempt affect zero rows.
func (r *AuditRepo) MarkUndone(ctx context.Context, entryID, undoneBy, undoEntryID id.ID, reason *string) error {
	sql := `
		UPDATE audit_log
		SET undone_at = now(), undone_by = $2, undo_entry_id = $3, undo_reason = $4
		WHERE id = $1 AND undone_at IS NULL
	`
	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, entryID, undoneBy, undoEntryID, reason)
	if err != nil {
		return fmt.Errorf("mark undone: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, entryID); getErr != nil {
			return getErr
		}
		return apperror.NewAlreadyUndone(entryID)
	}
	return nil
}
