package executor

import (
	"errors"

	"leafdb/storage"
)

// QueryError is an error with a PostgreSQL SQLSTATE code, reported to the
// client in an ErrorResponse.
type QueryError struct {
	Code    string
	Message string
}

func (e *QueryError) Error() string { return e.Message }

// WrapError converts a storage error into a QueryError with the matching
// SQLSTATE code. QueryErrors pass through unchanged.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryError{Code: sqlState(err), Message: err.Error()}
}

func sqlState(err error) string {
	var (
		tableExists   *storage.TableExistsError
		tableNotFound *storage.TableNotFoundError
		fieldNotFound *storage.FieldNotFoundError
		typeMismatch  *storage.TypeMismatchError
		unique        *storage.UniqueViolationError
		keyField      *storage.KeyFieldError
		recNotFound   *storage.RecordNotFoundError
		indexExists   *storage.IndexExistsError
		indexNotFound *storage.IndexNotFoundError
		operator      *storage.OperatorError
	)
	switch {
	case errors.As(err, &tableExists):
		return "42P07" // duplicate_table
	case errors.As(err, &tableNotFound):
		return "42P01" // undefined_table
	case errors.As(err, &fieldNotFound):
		return "42703" // undefined_column
	case errors.As(err, &typeMismatch):
		return "42804" // datatype_mismatch
	case errors.As(err, &unique):
		return "23505" // unique_violation
	case errors.As(err, &keyField):
		switch keyField.Reason {
		case storage.KeyNull:
			return "23502" // not_null_violation
		case storage.KeyImmutable, storage.KeyIndexPinned:
			return "0A000" // feature_not_supported
		case storage.KeyNotAField:
			return "42P16" // invalid_table_definition
		}
		return "XX001" // data_corrupted
	case errors.As(err, &recNotFound):
		return "P0002" // no_data_found
	case errors.As(err, &indexExists):
		return "42P07" // duplicate_table (relation)
	case errors.As(err, &indexNotFound):
		return "42704" // undefined_object
	case errors.As(err, &operator):
		return "42883" // undefined_function
	case errors.Is(err, storage.ErrCorruptSnapshot):
		return "XX001" // data_corrupted
	default:
		return "XX000" // internal_error
	}
}
