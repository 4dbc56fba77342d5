// Package rerr collects the typed error values shared by every layer of the
// dynamics core, from spatial algebra up through the mechanism and state
// packages. Callers are expected to use errors.As/errors.Is against the
// sentinel types below rather than matching on message text.
package rerr

import "github.com/pkg/errors"

// FrameMismatchError reports that an operation received spatial quantities
// whose declared frames violate the operation's contract.
type FrameMismatchError struct {
	Op       string
	Expected interface{}
	Got      interface{}
}

func (e *FrameMismatchError) Error() string {
	return errors.Errorf("%s: frame mismatch, expected %v but got %v", e.Op, e.Expected, e.Got).Error()
}

// NewFrameMismatchError builds a FrameMismatchError for the named operation.
func NewFrameMismatchError(op string, expected, got interface{}) error {
	return &FrameMismatchError{Op: op, Expected: expected, Got: got}
}

// TopologyError reports that a mechanism construction operation would
// produce an invalid tree, e.g. a body with two tree-joint parents.
type TopologyError struct {
	Reason string
}

func (e *TopologyError) Error() string {
	return errors.Errorf("invalid mechanism topology: %s", e.Reason).Error()
}

// NewTopologyError builds a TopologyError with the given reason.
func NewTopologyError(reason string) error {
	return &TopologyError{Reason: reason}
}

// StaleStateError reports that a MechanismState was used after the backing
// mechanism's topology changed underneath it.
type StaleStateError struct {
	WantVersion, GotVersion uint64
}

func (e *StaleStateError) Error() string {
	return errors.Errorf("stale state: built against mechanism version %d, mechanism is now version %d",
		e.WantVersion, e.GotVersion).Error()
}

// NewStaleStateError builds a StaleStateError.
func NewStaleStateError(want, got uint64) error {
	return &StaleStateError{WantVersion: want, GotVersion: got}
}

// SingularInertiaError reports that CRBA produced a mass matrix that is not
// positive definite.
type SingularInertiaError struct {
	Detail string
}

func (e *SingularInertiaError) Error() string {
	return errors.Errorf("singular inertia: mass matrix is not positive definite: %s", e.Detail).Error()
}

// NewSingularInertiaError builds a SingularInertiaError.
func NewSingularInertiaError(detail string) error {
	return &SingularInertiaError{Detail: detail}
}

// RedundantConstraintError reports that the loop-constraint Schur complement
// was singular during forward dynamics.
type RedundantConstraintError struct {
	Detail string
}

func (e *RedundantConstraintError) Error() string {
	return errors.Errorf("redundant constraint: constraint Schur complement is singular: %s", e.Detail).Error()
}

// NewRedundantConstraintError builds a RedundantConstraintError.
func NewRedundantConstraintError(detail string) error {
	return &RedundantConstraintError{Detail: detail}
}

// DimensionMismatchError reports that a caller-supplied buffer has the wrong
// shape.
type DimensionMismatchError struct {
	Op                   string
	WantRows, WantCols   int
	GotRows, GotCols     int
}

func (e *DimensionMismatchError) Error() string {
	return errors.Errorf("%s: dimension mismatch: want %dx%d, got %dx%d",
		e.Op, e.WantRows, e.WantCols, e.GotRows, e.GotCols).Error()
}

// NewDimensionMismatchError builds a DimensionMismatchError.
func NewDimensionMismatchError(op string, wantRows, wantCols, gotRows, gotCols int) error {
	return &DimensionMismatchError{Op: op, WantRows: wantRows, WantCols: wantCols, GotRows: gotRows, GotCols: gotCols}
}

// ConfigurationOutOfRangeError reports that normalizing a configuration
// segment produced a non-finite result, e.g. normalizing a zero quaternion.
type ConfigurationOutOfRangeError struct {
	Detail string
}

func (e *ConfigurationOutOfRangeError) Error() string {
	return errors.Errorf("configuration out of range: %s", e.Detail).Error()
}

// NewConfigurationOutOfRangeError builds a ConfigurationOutOfRangeError.
func NewConfigurationOutOfRangeError(detail string) error {
	return &ConfigurationOutOfRangeError{Detail: detail}
}
