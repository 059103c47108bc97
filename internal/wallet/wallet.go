package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/playarena/backend/internal/models"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSignatureInvalid    = errors.New("gateway signature invalid")
	ErrNotPending          = errors.New("ledger entry is not pending")
	ErrNotFound            = errors.New("ledger entry not found")
)

// Service is the wallet ledger. Every balance mutation happens inside a single
// serializable transaction together with its ledger entry.
type Service struct {
	db            *sqlx.DB
	gatewaySecret string
}

// Result of a completed credit or debit.
type Result struct {
	NewBalance float64
	LedgerID   string
}

func New(db *sqlx.DB, gatewaySecret string) *Service {
	return &Service{db: db, gatewaySecret: gatewaySecret}
}

func serializable(ctx context.Context, db *sqlx.DB) (*sqlx.Tx, error) {
	return db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// Credit adds amount to the user's balance with a COMPLETED ledger entry.
func (s *Service) Credit(ctx context.Context, userID, kind string, amount float64, memo, gameID string) (*Result, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := serializable(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := applyCompleted(tx, userID, kind, amount, memo, gameID, "")
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

// Debit removes amount from the user's balance with a COMPLETED ledger entry.
// Fails with ErrInsufficientBalance when the balance does not cover the amount.
func (s *Service) Debit(ctx context.Context, userID, kind string, amount float64, memo, gameID string) (*Result, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := serializable(ctx, s.db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := applyCompleted(tx, userID, kind, -amount, memo, gameID, "")
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

// CreditTx and DebitTx apply a completed entry inside a caller-owned
// transaction (DebitTx: matchmaker group formation).
func (s *Service) CreditTx(tx *sqlx.Tx, userID, kind string, amount float64, memo, gameID string) (*Result, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return applyCompleted(tx, userID, kind, amount, memo, gameID, "")
}

func (s *Service) DebitTx(tx *sqlx.Tx, userID, kind string, amount float64, memo, gameID string) (*Result, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return applyCompleted(tx, userID, kind, -amount, memo, gameID, "")
}

// applyCompleted locks the wallet row, mutates the balance, inserts the
// COMPLETED ledger entry and re-verifies the ledger-sum invariant. The signed
// amount follows the ledger convention: credits positive, debits negative.
func applyCompleted(tx *sqlx.Tx, userID, kind string, signedAmount float64, memo, gameID, receipt string) (*Result, error) {
	var balance float64
	if err := tx.Get(&balance, `SELECT balance FROM wallets WHERE user_id=$1 FOR UPDATE`, userID); err != nil {
		if err == sql.ErrNoRows {
			if _, err := tx.Exec(`INSERT INTO wallets (user_id, balance) VALUES ($1, 0)`, userID); err != nil {
				return nil, err
			}
			balance = 0
		} else {
			return nil, err
		}
	}

	newBalance := balance + signedAmount
	if newBalance < 0 {
		return nil, ErrInsufficientBalance
	}

	if _, err := tx.Exec(`UPDATE wallets SET balance=$1 WHERE user_id=$2`, newBalance, userID); err != nil {
		return nil, err
	}

	ledgerID := uuid.NewString()
	var gameRef, receiptRef interface{}
	if gameID != "" {
		gameRef = gameID
	}
	if receipt != "" {
		receiptRef = receipt
	}
	if _, err := tx.Exec(`INSERT INTO ledger (id, user_id, kind, amount, status, game_id, receipt, memo, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())`,
		ledgerID, userID, kind, signedAmount, models.StatusCompleted, gameRef, receiptRef, memo); err != nil {
		return nil, err
	}

	if err := verifyLedgerSum(tx, userID, newBalance); err != nil {
		return nil, err
	}

	log.Printf("[WALLET] %s %s amount=%.2f user=%s balance=%.2f game=%s", kind, models.StatusCompleted, signedAmount, userID, newBalance, gameID)
	return &Result{NewBalance: newBalance, LedgerID: ledgerID}, nil
}

// verifyLedgerSum checks that the ledger sum equals the balance. COMPLETED
// entries count; withdrawal rows count in every status because the hold
// leaves the balance at request time and reversals compensate with a REFUND
// row rather than un-counting the hold. A divergence aborts the transaction
// and leaves state unchanged.
func verifyLedgerSum(tx *sqlx.Tx, userID string, balance float64) error {
	var sum float64
	if err := tx.Get(&sum, `SELECT COALESCE(SUM(amount), 0) FROM ledger
		WHERE user_id=$1 AND (status=$2 OR kind=$3)`,
		userID, models.StatusCompleted, models.LedgerWithdrawal); err != nil {
		return err
	}
	if diff := sum - balance; diff > 0.005 || diff < -0.005 {
		log.Printf("[WALLET] FATAL ledger sum diverged for user %s: sum=%.2f balance=%.2f", userID, sum, balance)
		return fmt.Errorf("ledger sum diverged for user %s", userID)
	}
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique-index conflict.
// Settlement treats it as an already-applied credit.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// Balance returns the user's current balance, zero for a missing wallet.
func (s *Service) Balance(ctx context.Context, userID string) (float64, error) {
	var balance float64
	err := s.db.GetContext(ctx, &balance, `SELECT balance FROM wallets WHERE user_id=$1`, userID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}

// History returns the user's most recent ledger entries.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.LedgerEntry
	err := s.db.SelectContext(ctx, &entries, `SELECT id, user_id, kind, amount, status, game_id, receipt, memo, created_at
		FROM ledger WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	return entries, err
}

// ReserveDeposit creates a PENDING DEPOSIT row without touching the balance.
func (s *Service) ReserveDeposit(ctx context.Context, userID string, amount float64) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	ledgerID := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO ledger (id, user_id, kind, amount, status, memo, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())`,
		ledgerID, userID, models.LedgerDeposit, amount, models.StatusPending, "deposit reserved")
	if err != nil {
		return "", err
	}
	log.Printf("[WALLET] DEPOSIT PENDING id=%s user=%s amount=%.2f", ledgerID, userID, amount)
	return ledgerID, nil
}

// ConfirmDeposit verifies the gateway signature and, on success, transitions
// the pending entry to COMPLETED and credits the balance in one transaction.
// On signature mismatch the entry is marked FAILED and ErrSignatureInvalid
// is returned.
func (s *Service) ConfirmDeposit(ctx context.Context, pendingID, orderID, paymentID, signature string) (float64, error) {
	if !VerifySignature(s.gatewaySecret, orderID, paymentID, signature) {
		if _, err := s.db.ExecContext(ctx, `UPDATE ledger SET status=$1 WHERE id=$2 AND status=$3`,
			models.StatusFailed, pendingID, models.StatusPending); err != nil {
			log.Printf("[WALLET] failed to mark deposit %s FAILED: %v", pendingID, err)
		}
		return 0, ErrSignatureInvalid
	}

	receipt := orderID + "|" + paymentID

	tx, err := serializable(ctx, s.db)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	entry, err := lockPending(tx, pendingID)
	if err != nil {
		if errors.Is(err, ErrNotPending) {
			// Already confirmed: duplicate callback, keep the first effect.
			var b float64
			if gerr := s.db.GetContext(ctx, &b, `SELECT balance FROM wallets WHERE user_id=(SELECT user_id FROM ledger WHERE id=$1)`, pendingID); gerr == nil {
				return b, nil
			}
		}
		return 0, err
	}

	// Duplicate receipt from the gateway: silently succeed, no double credit.
	var dup int
	if err := tx.Get(&dup, `SELECT COUNT(*) FROM ledger WHERE receipt=$1 AND status=$2`, receipt, models.StatusCompleted); err != nil {
		return 0, err
	}
	if dup > 0 {
		balance, berr := s.Balance(ctx, entry.UserID)
		return balance, berr
	}

	var balance float64
	if err := tx.Get(&balance, `SELECT balance FROM wallets WHERE user_id=$1 FOR UPDATE`, entry.UserID); err != nil {
		if err == sql.ErrNoRows {
			if _, err := tx.Exec(`INSERT INTO wallets (user_id, balance) VALUES ($1, 0)`, entry.UserID); err != nil {
				return 0, err
			}
			balance = 0
		} else {
			return 0, err
		}
	}
	newBalance := balance + entry.Amount

	if _, err := tx.Exec(`UPDATE wallets SET balance=$1 WHERE user_id=$2`, newBalance, entry.UserID); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`UPDATE ledger SET status=$1, receipt=$2 WHERE id=$3`, models.StatusCompleted, receipt, pendingID); err != nil {
		return 0, err
	}
	if err := verifyLedgerSum(tx, entry.UserID, newBalance); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	log.Printf("[WALLET] DEPOSIT COMPLETED id=%s user=%s amount=%.2f receipt=%s", pendingID, entry.UserID, entry.Amount, receipt)
	return newBalance, nil
}

// RequestWithdrawal debits the balance now (hold) and creates a PENDING
// WITHDRAWAL row in the same transaction.
func (s *Service) RequestWithdrawal(ctx context.Context, userID string, amount float64, bankDetails string) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}

	tx, err := serializable(ctx, s.db)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var balance float64
	if err := tx.Get(&balance, `SELECT balance FROM wallets WHERE user_id=$1 FOR UPDATE`, userID); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrInsufficientBalance
		}
		return "", err
	}
	if balance < amount {
		return "", ErrInsufficientBalance
	}

	newBalance := balance - amount
	if _, err := tx.Exec(`UPDATE wallets SET balance=$1 WHERE user_id=$2`, newBalance, userID); err != nil {
		return "", err
	}

	ledgerID := uuid.NewString()
	if _, err := tx.Exec(`INSERT INTO ledger (id, user_id, kind, amount, status, memo, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())`,
		ledgerID, userID, models.LedgerWithdrawal, -amount, models.StatusPending, bankDetails); err != nil {
		return "", err
	}
	if err := verifyLedgerSum(tx, userID, newBalance); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	log.Printf("[WALLET] WITHDRAWAL PENDING id=%s user=%s amount=%.2f", ledgerID, userID, amount)
	return ledgerID, nil
}

// CompleteWithdrawal marks a pending withdrawal COMPLETED after external
// payout success. The hold already left the balance at request time, so the
// balance is untouched here.
func (s *Service) CompleteWithdrawal(ctx context.Context, pendingID string) error {
	tx, err := serializable(ctx, s.db)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	entry, err := lockPending(tx, pendingID)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE ledger SET status=$1 WHERE id=$2`, models.StatusCompleted, pendingID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[WALLET] WITHDRAWAL COMPLETED id=%s user=%s", pendingID, entry.UserID)
	return nil
}

// FailWithdrawal marks a pending withdrawal FAILED after payout failure and
// credits the held amount back, both inside one transaction.
func (s *Service) FailWithdrawal(ctx context.Context, pendingID string) error {
	return s.reverseHold(ctx, pendingID, models.StatusFailed, "withdrawal payout failed")
}

// Refund is the terminal PENDING -> CANCELLED transition with a compensating
// credit for the held amount.
func (s *Service) Refund(ctx context.Context, pendingID, reason string) error {
	return s.reverseHold(ctx, pendingID, models.StatusCancelled, reason)
}

func (s *Service) reverseHold(ctx context.Context, pendingID, terminal, memo string) error {
	tx, err := serializable(ctx, s.db)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	entry, err := lockPending(tx, pendingID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`UPDATE ledger SET status=$1 WHERE id=$2`, terminal, pendingID); err != nil {
		return err
	}

	held := -entry.Amount
	if held > 0 {
		if _, err := applyCompleted(tx, entry.UserID, models.LedgerRefund, held, memo, "", ""); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[WALLET] %s %s id=%s user=%s", entry.Kind, terminal, pendingID, entry.UserID)
	return nil
}

func lockPending(tx *sqlx.Tx, pendingID string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := tx.Get(&entry, `SELECT id, user_id, kind, amount, status, game_id, receipt, memo, created_at
		FROM ledger WHERE id=$1 FOR UPDATE`, pendingID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if entry.Status != models.StatusPending {
		return nil, ErrNotPending
	}
	return &entry, nil
}
