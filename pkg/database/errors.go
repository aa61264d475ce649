package database

import (
	stderrors "errors"
	"strings"

	"github.com/lib/pq"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

// PostgreSQL error codes the ledger reacts to
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeNotNullViolation     = "23502"
	codeCheckViolation       = "23514"
	codeInvalidTextRepr      = "22P02"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error or has no mapping.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case codeCheckViolation:
		return mapCheckConstraint(pqErr)

	case codeUniqueViolation:
		return errors.Conflict(formatConstraintMessage(pqErr))

	case codeForeignKeyViolation:
		return errors.BadRequest("referenced record does not exist")

	case codeInvalidTextRepr:
		return errors.BadRequest("malformed identifier or value")

	case codeNotNullViolation:
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// Classify returns the AppError for a mapped PostgreSQL error and err
// unchanged otherwise. Retryable lock failures are never mapped.
func Classify(err error) error {
	if err == nil || IsRetryable(err) {
		return err
	}
	if appErr := MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// IsRetryable reports whether err is a transient lock failure that a fresh
// transaction may not hit again: deadlock, serialization failure, or a
// lock_timeout expiry.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return false
	}

	switch pqErr.Code {
	case codeDeadlockDetected, codeSerializationFailure, codeLockNotAvailable:
		return true
	case codeQueryCanceled:
		return strings.Contains(pqErr.Message, "lock timeout")
	default:
		return false
	}
}

func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.HasSuffix(constraint, "_nonnegative"),
		strings.Contains(constraint, "remaining_le_purchased"):
		return errors.Conflict("stock quantities would become inconsistent")

	case strings.Contains(constraint, "quantity_positive"):
		return errors.InvalidRequest("quantity must be greater than zero")

	case strings.Contains(constraint, "cause_valid"):
		return errors.Validation(map[string]string{
			"cause": "must be one of: expired, defective",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "products_code"):
		return "a product with this code already exists"
	case strings.Contains(constraint, "total_stocks_product"):
		return "aggregate stock already exists for this product"
	default:
		return "a record with these values already exists"
	}
}
