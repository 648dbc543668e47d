// ABOUTME: Error taxonomy for engagement tracking operations
// ABOUTME: Not-found/denied, best-effort warnings, hard failures and name collisions
package crm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/identity"
	"github.com/harperreed/kith/models"
)

// ErrNotFoundOrAccessDenied is returned when the target is missing or owned
// by someone else. The two cases are indistinguishable on purpose.
var ErrNotFoundOrAccessDenied = errors.New("not found or access denied")

// Warning is a secondary side effect that failed while the primary
// operation succeeded.
type Warning struct {
	Op  string
	Err error
}

func (w *Warning) Error() string {
	return fmt.Sprintf("%s: %v", w.Op, w.Err)
}

func (w *Warning) Unwrap() error {
	return w.Err
}

// Warnings accompany a successful result.
type Warnings []*Warning

// Err joins the warnings, or returns nil when there are none.
func (w Warnings) Err() error {
	if len(w) == 0 {
		return nil
	}
	errs := make([]error, len(w))
	for i, x := range w {
		errs[i] = x
	}
	return errors.Join(errs...)
}

func (w Warnings) String() string {
	msgs := make([]string, len(w))
	for i, x := range w {
		msgs[i] = x.Error()
	}
	return strings.Join(msgs, "; ")
}

// note records a best-effort failure: logged, counted and kept as a warning.
func (w *Warnings) note(op string, err error, keyvals ...interface{}) {
	if err == nil {
		return
	}
	bestEffortFailures.WithLabelValues(op).Inc()
	log.Warn(op, append(keyvals, "err", err)...)
	*w = append(*w, &Warning{Op: op, Err: err})
}

// HardFailureError wraps a failed primary write or read.
type HardFailureError struct {
	Op  string
	Err error
}

func (e *HardFailureError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *HardFailureError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the operation may succeed.
func (e *HardFailureError) Retryable() bool {
	return !errors.Is(e.Err, context.Canceled) && !errors.Is(e.Err, db.ErrInvalidDocument)
}

// IsRetryable reports whether err is a retryable hard failure.
func IsRetryable(err error) bool {
	var hf *HardFailureError
	return errors.As(err, &hf) && hf.Retryable()
}

// CollisionError is returned when an explicit create would duplicate an
// existing relationship. The caller picks a resolution and retries once.
type CollisionError struct {
	Name     string
	Existing *models.Relationship
	ForkName string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("a relationship named %q already exists", e.Existing.ContactName)
}

// storeErr maps document store errors onto the taxonomy.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, db.ErrNotFound):
		return ErrNotFoundOrAccessDenied
	case errors.Is(err, db.ErrNoUser):
		return identity.ErrNoIdentity
	}
	return &HardFailureError{Op: op, Err: err}
}
