package driver

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/tebeka/selenium"
)

// Error kinds returned by this package. Errors coming back from the remote end
// are wrapped so that both the kind and the original error can be inspected
// with errors.Is and errors.As.
var (
	// ErrInvalidArgument reports a bad input detected before anything was
	// sent to the remote end, such as an unknown browser name.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound reports that no element matched a locator.
	ErrNotFound = errors.New("no such element")
	// ErrTimeout reports that a wait condition was not met in time.
	ErrTimeout = errors.New("timeout")
	// ErrStaleReference reports that an element handle no longer refers to a
	// node in the current document.
	ErrStaleReference = errors.New("stale element reference")
	// ErrRemoteProtocol reports any other failure of the remote end or of the
	// connection to it.
	ErrRemoteProtocol = errors.New("remote protocol error")
)

// WaitError is returned when a wait condition is not met before its timeout.
// It matches both ErrTimeout and ErrNotFound.
type WaitError struct {
	// Target describes what was waited for, typically a Locator.
	Target string
	// Timeout is the duration that elapsed.
	Timeout time.Duration
	// Last is the error returned by the final poll, if any.
	Last error
}

func (e *WaitError) Error() string {
	msg := fmt.Sprintf("timed out after %v waiting for %s", e.Timeout, e.Target)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

// Is reports whether target is one of the kinds a WaitError stands for.
func (e *WaitError) Is(target error) bool {
	return target == ErrTimeout || target == ErrNotFound
}

func (e *WaitError) Unwrap() error { return e.Last }

// W3C error codes, as found in the "error" field of a failed command.
// See https://www.w3.org/TR/webdriver/#handling-errors .
const (
	codeNoSuchElement  = "no such element"
	codeStaleElement   = "stale element reference"
	codeTimeout        = "timeout"
	codeScriptTimeout  = "script timeout"
	codeInvalidSession = "invalid session id"
	codeNoSuchWindow   = "no such window"
	codeInvalidArg     = "invalid argument"
	codeInvalidSel     = "invalid selector"
)

// classify maps an error returned by the remote end onto one of the error
// kinds of this package. Errors that already carry a kind are returned as is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrInvalidArgument, ErrNotFound, ErrTimeout, ErrStaleReference, ErrRemoteProtocol} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", kindOf(err), err)
}

func kindOf(err error) error {
	code := remoteCode(err)
	switch code {
	case codeNoSuchElement:
		return ErrNotFound
	case codeStaleElement:
		return ErrStaleReference
	case codeTimeout, codeScriptTimeout:
		return ErrTimeout
	case codeInvalidArg, codeInvalidSel:
		return ErrInvalidArgument
	}
	return ErrRemoteProtocol
}

// remoteCode extracts the W3C error code from err. Legacy (pre-W3C) servers
// are only reported through the message text, which starts with the same
// code strings.
func remoteCode(err error) string {
	var se *selenium.Error
	if errors.As(err, &se) {
		return se.Err
	}
	msg := err.Error()
	for _, code := range []string{
		codeNoSuchElement, codeStaleElement, codeScriptTimeout, codeTimeout,
		codeInvalidSession, codeNoSuchWindow, codeInvalidArg, codeInvalidSel,
	} {
		if strings.HasPrefix(msg, code) {
			return code
		}
	}
	return ""
}

// isGone reports whether err indicates that the remote end, or the session on
// it, no longer exists.
func isGone(err error) bool {
	if err == nil {
		return false
	}
	switch remoteCode(err) {
	case codeInvalidSession, codeNoSuchWindow:
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// tolerable reports whether err is expected while polling a locator: the
// element may not exist yet, or may have been replaced between the find and
// the state query.
func tolerable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrStaleReference)
}
