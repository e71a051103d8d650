package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNodeNotFound        = errors.New("node not found")
	ErrLinkNotFound        = errors.New("link not found")
	ErrNodeExists          = errors.New("node already exists")
	ErrInvalidID           = errors.New("invalid id")
	ErrCalculationInFlight = errors.New("calculation already in flight")
	ErrNoBackend           = errors.New("no computation backend configured")
	ErrRunNotFound         = errors.New("calculation run not found")
)

// InvalidShapeError reports a payload that does not have the canonical shape
type InvalidShapeError struct {
	Path   string
	Reason string
}

func (e *InvalidShapeError) Error() string {
	if e.Path == "" {
		return "invalid payload: " + e.Reason
	}
	return fmt.Sprintf("invalid payload at %s: %s", e.Path, e.Reason)
}

// DuplicateLinkError reports an attempt to connect an already connected pair
type DuplicateLinkError struct {
	SourceID string
	TargetID string
}

func (e *DuplicateLinkError) Error() string {
	return fmt.Sprintf("link between %s and %s already exists", e.SourceID, e.TargetID)
}

// SelfLoopError reports an attempt to connect a node to itself
type SelfLoopError struct {
	NodeID string
}

func (e *SelfLoopError) Error() string {
	return fmt.Sprintf("cannot link %s to itself", e.NodeID)
}

// Unresolvable names one link endpoint that matched no node
type Unresolvable struct {
	LinkID string
	NodeID string
}

// ReferenceResolutionError reports links whose endpoints match no node
type ReferenceResolutionError struct {
	Missing []Unresolvable
}

func (e *ReferenceResolutionError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		parts = append(parts, fmt.Sprintf("%s->%s", m.LinkID, m.NodeID))
	}
	return fmt.Sprintf("%d unresolved link endpoint(s): %s", len(e.Missing), strings.Join(parts, ", "))
}

// NetworkError reports an unreachable backend or a non-2xx response
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
		}
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ReadOnlyFieldError reports an edit to a computation-derived field
type ReadOnlyFieldError struct {
	Type  NodeType
	Field Field
}

func (e *ReadOnlyFieldError) Error() string {
	return fmt.Sprintf("%s is computed for %s nodes and cannot be edited", e.Field, e.Type)
}

// IsGuardViolation reports whether err is a link-creation guard violation
func IsGuardViolation(err error) bool {
	var dup *DuplicateLinkError
	var loop *SelfLoopError
	return errors.As(err, &dup) || errors.As(err, &loop)
}

// CalculationError reports a computation that ran but did not converge
type CalculationError struct {
	Message string
}

func (e *CalculationError) Error() string {
	if e.Message == "" {
		return "power flow did not converge"
	}
	return "power flow did not converge: " + e.Message
}
