// Package sqlstore implements the document store on MySQL. Work items and
// biz-events are kept as JSON documents with their lookup keys and status
// promoted to indexed columns; saves are upserts with last-write-wins
// semantics.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	receiptgen "github.com/padigital/receiptgen"
)

const (
	tableReceipts      = "receipts"
	tableCarts         = "receipt_carts"
	tableBizEvents     = "biz_events"
	tablePoisonRecords = "poison_records"
)

// SQL queries
const (
	upsertReceiptQuery = `
		INSERT INTO %s (event_id, status, document)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status), document = VALUES(document)`

	getReceiptQuery = `SELECT document FROM %s WHERE event_id = ?`

	upsertCartQuery = `
		INSERT INTO %s (transaction_id, status, document)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status), document = VALUES(document)`

	getCartQuery = `SELECT document FROM %s WHERE transaction_id = ?`

	getBizEventQuery = `SELECT document FROM %s WHERE event_id = ?`

	getBizEventsByTransactionQuery = `
		SELECT document FROM %s WHERE transaction_id = ? ORDER BY event_id`

	insertPoisonQuery = `
		INSERT INTO %s (record_id, work_item_id, status, document, created_at)
		VALUES (?, ?, ?, ?, ?)`

	updatePoisonQuery = `
		UPDATE %s SET status = ?, document = ? WHERE record_id = ?`

	fetchReviewedPoisonQuery = `
		SELECT document FROM %s WHERE status = ? ORDER BY created_at LIMIT ?`

	deleteRequeuedPoisonQuery = `
		DELETE FROM %s WHERE status = ? AND created_at < ?`
)

// SQLStore implements receiptgen.Store on a MySQL database.
type SQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLStore(db *sql.DB, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{
		db:     db,
		logger: logger,
	}
}

func (s *SQLStore) GetReceipt(ctx context.Context, eventID string) (*receiptgen.Receipt, error) {
	query := fmt.Sprintf(getReceiptQuery, tableReceipts)
	var document []byte
	err := s.db.QueryRowContext(ctx, query, eventID).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, receiptgen.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query receipt: %w", err)
	}

	var receipt receiptgen.Receipt
	if err := json.Unmarshal(document, &receipt); err != nil {
		return nil, fmt.Errorf("failed to decode receipt document: %w", err)
	}
	return &receipt, nil
}

func (s *SQLStore) SaveReceipt(ctx context.Context, receipt *receiptgen.Receipt) error {
	document, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("failed to encode receipt document: %w", err)
	}
	query := fmt.Sprintf(upsertReceiptQuery, tableReceipts)
	if _, err := s.db.ExecContext(ctx, query, receipt.EventID, string(receipt.Status), document); err != nil {
		return fmt.Errorf("failed to save receipt: %w", err)
	}
	return nil
}

func (s *SQLStore) GetCart(ctx context.Context, transactionID string) (*receiptgen.CartForReceipt, error) {
	query := fmt.Sprintf(getCartQuery, tableCarts)
	var document []byte
	err := s.db.QueryRowContext(ctx, query, transactionID).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, receiptgen.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}

	var cart receiptgen.CartForReceipt
	if err := json.Unmarshal(document, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart document: %w", err)
	}
	return &cart, nil
}

func (s *SQLStore) SaveCart(ctx context.Context, cart *receiptgen.CartForReceipt) error {
	document, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart document: %w", err)
	}
	query := fmt.Sprintf(upsertCartQuery, tableCarts)
	if _, err := s.db.ExecContext(ctx, query, cart.EventID, string(cart.Status), document); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (s *SQLStore) GetBizEvent(ctx context.Context, eventID string) (*receiptgen.BizEvent, error) {
	query := fmt.Sprintf(getBizEventQuery, tableBizEvents)
	var document []byte
	err := s.db.QueryRowContext(ctx, query, eventID).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, receiptgen.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query biz-event: %w", err)
	}

	var event receiptgen.BizEvent
	if err := json.Unmarshal(document, &event); err != nil {
		return nil, fmt.Errorf("failed to decode biz-event document: %w", err)
	}
	return &event, nil
}

func (s *SQLStore) GetBizEventsByTransaction(ctx context.Context, transactionID string) ([]receiptgen.BizEvent, error) {
	query := fmt.Sprintf(getBizEventsByTransactionQuery, tableBizEvents)
	rows, err := s.db.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query biz-events: %w", err)
	}
	defer rows.Close()

	var events []receiptgen.BizEvent
	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan biz-event row: %w", err)
		}
		var event receiptgen.BizEvent
		if err := json.Unmarshal(document, &event); err != nil {
			return nil, fmt.Errorf("failed to decode biz-event document: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading biz-event rows: %w", err)
	}
	return events, nil
}

func (s *SQLStore) SavePoisonRecord(ctx context.Context, record *receiptgen.PoisonRecord) error {
	document, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode poison record: %w", err)
	}
	query := fmt.Sprintf(insertPoisonQuery, tablePoisonRecords)
	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.WorkItemID,
		string(record.Status),
		document,
		record.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save poison record: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdatePoisonRecord(ctx context.Context, record *receiptgen.PoisonRecord) error {
	document, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode poison record: %w", err)
	}
	query := fmt.Sprintf(updatePoisonQuery, tablePoisonRecords)
	res, err := s.db.ExecContext(ctx, query, string(record.Status), document, record.ID)
	if err != nil {
		return fmt.Errorf("failed to update poison record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return receiptgen.ErrNotFound
	}
	return nil
}

func (s *SQLStore) FetchReviewedPoisonRecords(ctx context.Context, limit int) ([]receiptgen.PoisonRecord, error) {
	query := fmt.Sprintf(fetchReviewedPoisonQuery, tablePoisonRecords)
	rows, err := s.db.QueryContext(ctx, query, string(receiptgen.PoisonStatusReviewed), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviewed poison records: %w", err)
	}
	defer rows.Close()

	var records []receiptgen.PoisonRecord
	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan poison record row: %w", err)
		}
		var record receiptgen.PoisonRecord
		if err := json.Unmarshal(document, &record); err != nil {
			return nil, fmt.Errorf("failed to decode poison record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading poison record rows: %w", err)
	}
	return records, nil
}

func (s *SQLStore) DeleteRequeuedPoisonRecords(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(deleteRequeuedPoisonQuery, tablePoisonRecords)
	res, err := s.db.ExecContext(ctx, query, string(receiptgen.PoisonStatusRequeued), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// EnsureTables creates the schema if it does not exist.
func (s *SQLStore) EnsureTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS receipts (
			id         BIGINT AUTO_INCREMENT PRIMARY KEY,
			event_id   VARCHAR(255) NOT NULL UNIQUE,
			status     VARCHAR(32)  NOT NULL,
			document   JSON         NOT NULL,
			created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			updated_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
			INDEX idx_receipts_status (status)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

		`CREATE TABLE IF NOT EXISTS receipt_carts (
			id             BIGINT AUTO_INCREMENT PRIMARY KEY,
			transaction_id VARCHAR(255) NOT NULL UNIQUE,
			status         VARCHAR(32)  NOT NULL,
			document       JSON         NOT NULL,
			created_at     TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			updated_at     TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
			INDEX idx_carts_status (status)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

		`CREATE TABLE IF NOT EXISTS biz_events (
			id             BIGINT AUTO_INCREMENT PRIMARY KEY,
			event_id       VARCHAR(255) NOT NULL UNIQUE,
			transaction_id VARCHAR(255) NULL,
			document       JSON         NOT NULL,
			created_at     TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			INDEX idx_biz_events_transaction (transaction_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

		`CREATE TABLE IF NOT EXISTS poison_records (
			id           BIGINT AUTO_INCREMENT PRIMARY KEY,
			record_id    CHAR(36)     NOT NULL UNIQUE,
			work_item_id VARCHAR(255) NULL,
			status       VARCHAR(32)  NOT NULL,
			document     JSON         NOT NULL,
			created_at   TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			INDEX idx_poison_status_created (status, created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}
