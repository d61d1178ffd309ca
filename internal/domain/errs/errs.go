package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies failures the realtime core reports back to a connection.
type Kind string

const (
	KindProtocol      Kind = "protocol"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindTransport     Kind = "transport"
	KindPersistence   Kind = "persistence"
	KindInternal      Kind = "internal"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Kind)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Kind)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, op, message string, cause error) error {
	return &Error{Kind: kind, Op: strings.TrimSpace(op), Message: strings.TrimSpace(message), Cause: cause}
}

func Protocol(op, message string) error      { return New(KindProtocol, op, message, nil) }
func Authorization(op, message string) error { return New(KindAuthorization, op, message, nil) }
func NotFound(op, message string) error      { return New(KindNotFound, op, message, nil) }
func Conflict(op, message string) error      { return New(KindConflict, op, message, nil) }

// Wrap tags err with kind, keeping err reachable through errors.Is/As.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(kind, op, err.Error(), err)
}

// KindOf returns the outermost kind in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Public is the message safe to show a client: the tagged message without the
// op prefix, or a generic text for internal failures.
func Public(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return "internal error"
	}
	if e.Kind == KindPersistence {
		return "message could not be stored; retry"
	}
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return string(e.Kind)
}
