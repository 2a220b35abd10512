package persistence

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"syscall"

	"github.com/clinic/pharmacy/internal/domain/shared"
	"gorm.io/gorm"
)

// translateError maps driver and GORM errors onto the domain taxonomy.
// Domain errors pass through untouched; the raw cause is kept for logging.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.WrapDomainError(shared.CodeNotFound, "Resource not found", err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.WrapDomainError(shared.CodeDuplicateKey, "Resource already exists", err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return shared.WrapDomainError(shared.CodeForeignKey, "Referenced resource does not exist", err)
	case isTransient(err):
		return shared.WrapDomainError(shared.CodeTransient, "Temporary storage failure, please retry", err)
	default:
		return shared.WrapDomainError(shared.CodePersistence, "Storage operation failed", err)
	}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// notFound converts a missing row into a NotFoundError naming the entity
func notFound(err error, entity string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.NewNotFoundError(entity, id)
	}
	return translateError(err)
}
