package core

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput        = "NOTICAST_BAD_INPUT"
	ErrorTargetNotFound  = "NOTICAST_TARGET_NOT_FOUND"
	ErrorExternalFailure = "NOTICAST_EXTERNAL_FAILURE"
	ErrorInternal        = "NOTICAST_INTERNAL_ERROR"

	textCodePrefix = "NOTICAST_"
)

// NewTargetNotFoundError reports an identifier matching neither a device nor
// a group.
func NewTargetNotFoundError(identifier string) *goerrors.Error {
	return goerrors.New(
		fmt.Sprintf("core: target %q not found", strings.TrimSpace(identifier)),
		goerrors.CategoryNotFound,
	).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorTargetNotFound).
		WithMetadata(map[string]any{"target": strings.TrimSpace(identifier)})
}

func NewValidationError(message string, fields ...goerrors.FieldError) *goerrors.Error {
	return goerrors.NewValidation(message, fields...).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func NewBadInputError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// NewExternalError classifies a collaborator failure as external even when
// the collaborator tagged it with a caller facing category.
func NewExternalError(source error, message string, metadata map[string]any) error {
	if source == nil {
		return nil
	}
	err := goerrors.New(message, goerrors.CategoryExternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorExternalFailure)
	err.Source = source
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func newInternalError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorInternal)
}

func IsTargetNotFound(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryNotFound)
}

func IsValidationError(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryValidation) ||
		goerrors.IsCategory(err, goerrors.CategoryBadInput)
}

// MapError turns any error into an envelope carrying an HTTP status and a
// text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = HTTPStatus(err.Category)
	}
	if !strings.HasPrefix(err.TextCode, textCodePrefix) {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorTargetNotFound
	case goerrors.CategoryExternal:
		return ErrorExternalFailure
	default:
		return ErrorInternal
	}
}

func HTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
