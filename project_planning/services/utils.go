package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Matgc04/dssd-2025/client"
	"github.com/Matgc04/dssd-2025/project_planning/lifecycle"
	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

// lookupError converts the errors returned by the schema getters and the
// lifecycle into coded errors.
func lookupError(err error) error {
	switch {
	case errors.Is(err, schema.ErrProjectNotFound),
		errors.Is(err, schema.ErrStageNotFound),
		errors.Is(err, schema.ErrRequestNotFound),
		errors.Is(err, schema.ErrCollaborationNotFound),
		errors.Is(err, schema.ErrObservationNotFound),
		errors.Is(err, schema.ErrUserNotFound):
		return CodedError(err, http.StatusNotFound)
	case errors.Is(err, lifecycle.ErrAlreadyDone),
		errors.Is(err, lifecycle.ErrAlreadyInProgress),
		errors.Is(err, lifecycle.ErrInvalidProjectStatus):
		return CodedError(err, http.StatusConflict)
	}
	return CodedError(err, http.StatusInternalServerError)
}

// workflowError maps failures talking to the workflow engine.
func workflowError(err error) error {
	if errors.Is(err, client.ErrNoReadyTask) {
		return CodedError(err, http.StatusConflict)
	}
	return CodedError(fmt.Errorf("workflow engine error: %w", err), http.StatusBadGateway)
}

func dbError(msg string, err error, args ...interface{}) error {
	slog.Error(msg, append(args, "error", err)...)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return CodedError(errors.New("an entry with the same id already exists"), http.StatusConflict)
	}
	return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), GetResponseCode(err))
}

func decimalToFloat(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}
