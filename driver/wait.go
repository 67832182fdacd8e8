package driver

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
)

// tracef logs wait and find attempts. It is replaced in tests.
var tracef = func(format string, args ...interface{}) {
	glog.V(1).InfoDepthf(1, format, args...)
}

// DefaultPollInterval is the interval at which waits re-check their condition.
const DefaultPollInterval = 250 * time.Millisecond

// Waiter wraps a Remote and makes element lookups wait for visibility. It
// implements Remote itself, so it can be used anywhere the unwrapped session
// can.
//
// Waits block the calling goroutine. A wait ends either when its condition
// holds or when Timeout elapses, in which case a *WaitError is returned.
type Waiter struct {
	Remote

	// Timeout bounds every wait started through the Waiter.
	Timeout time.Duration
	// Interval is the polling interval. Zero means DefaultPollInterval.
	Interval time.Duration
}

// NewWaiter returns a Waiter around r with the given timeout and the default
// polling interval.
func NewWaiter(r Remote, timeout time.Duration) *Waiter {
	return &Waiter{Remote: r, Timeout: timeout, Interval: DefaultPollInterval}
}

func (w *Waiter) interval() time.Duration {
	if w.Interval <= 0 {
		return DefaultPollInterval
	}
	return w.Interval
}

// condition is polled by until. A done result ends the wait successfully; a
// non-nil error that is not ignorable ends it with that error.
type condition func() (done bool, err error)

// until polls cond every interval until it reports done, it returns an error
// that ignore does not accept, or the timeout elapses.
func (w *Waiter) until(target string, cond condition, ignore func(error) bool) error {
	tracef("Waiting for %s", target)
	deadline := time.Now().Add(w.Timeout)
	var last error
	for {
		done, err := cond()
		if err == nil && done {
			return nil
		}
		if err != nil {
			err = classify(err)
			if ignore == nil || !ignore(err) {
				return err
			}
		}
		last = err

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &WaitError{Target: target, Timeout: w.Timeout, Last: last}
		}
		if iv := w.interval(); remaining > iv {
			remaining = iv
		}
		time.Sleep(remaining)
	}
}

// WaitUntilVisible waits until an element matching loc is displayed and
// returns it. The element is looked up again on every poll, so missing and
// stale elements are tolerated until the timeout.
func (w *Waiter) WaitUntilVisible(loc Locator) (Element, error) {
	var found Element
	err := w.until(loc.String(), func() (bool, error) {
		e, err := w.Remote.FindElement(loc.By, loc.Value)
		if err != nil {
			return false, err
		}
		ok, err := e.IsDisplayed()
		if err != nil || !ok {
			return false, err
		}
		found = e
		return true, nil
	}, tolerable)
	if err != nil {
		return nil, err
	}
	return found, nil
}

// WaitForElement waits until e is both displayed and enabled. Unlike
// WaitUntilVisible, the same handle is checked on every poll: if the node it
// refers to is replaced, the wait fails with ErrStaleReference instead of
// picking up the new node.
func (w *Waiter) WaitForElement(e Element) error {
	return w.until("element", func() (bool, error) {
		return displayedAndEnabled(e)
	}, nil)
}

// WaitUntilInvisible waits until no element matching loc is displayed and
// enabled. An element that is missing or replaced counts as invisible.
func (w *Waiter) WaitUntilInvisible(loc Locator) error {
	return w.until(loc.String(), func() (bool, error) {
		e, err := w.Remote.FindElement(loc.By, loc.Value)
		if err != nil {
			if tolerable(classify(err)) {
				return true, nil
			}
			return false, err
		}
		ok, err := displayedAndEnabled(e)
		if err != nil {
			if tolerable(classify(err)) {
				return true, nil
			}
			return false, err
		}
		return !ok, nil
	}, nil)
}

// WaitForElementInvisible waits until e is hidden or disabled. A handle whose
// node has been replaced fails with ErrStaleReference.
func (w *Waiter) WaitForElementInvisible(e Element) error {
	return w.until("element", func() (bool, error) {
		ok, err := displayedAndEnabled(e)
		return !ok, err
	}, nil)
}

func displayedAndEnabled(e Element) (bool, error) {
	displayed, err := e.IsDisplayed()
	if err != nil || !displayed {
		return false, err
	}
	return e.IsEnabled()
}

// FindElement waits for an element matching by and value to be displayed and
// then finds it again, so the returned handle is as fresh as possible.
func (w *Waiter) FindElement(by, value string) (Element, error) {
	loc := Locator{By: by, Value: value}
	tracef("Finding element at: %s", loc)
	if _, err := w.WaitUntilVisible(loc); err != nil {
		tracef("%v, Element not found at: %s", err, loc)
		return nil, err
	}
	e, err := w.Remote.FindElement(by, value)
	if err != nil {
		return nil, classify(err)
	}
	return e, nil
}

// FindElements waits until at least one element matching by and value is
// displayed and returns every displayed match, in document order. Hidden
// matches are dropped. If elements match but none becomes displayed before the
// timeout, the result is empty and not an error; if nothing matches at all,
// the wait fails.
func (w *Waiter) FindElements(by, value string) ([]Element, error) {
	loc := Locator{By: by, Value: value}
	tracef("Finding elements at: %s", loc)
	var (
		visible []Element
		matched bool
	)
	err := w.until(loc.String(), func() (bool, error) {
		all, err := w.Remote.FindElements(loc.By, loc.Value)
		if err != nil {
			matched = false
			return false, err
		}
		matched = len(all) > 0
		if !matched {
			return false, fmt.Errorf("%w: %s", ErrNotFound, loc)
		}
		visible, err = displayed(all)
		if err != nil {
			return false, err
		}
		return len(visible) > 0, nil
	}, tolerable)
	var we *WaitError
	if errors.As(err, &we) && matched {
		return []Element{}, nil
	}
	if err != nil {
		tracef("%v, Elements not found at: %s", err, loc)
		return nil, err
	}
	return visible, nil
}

// Visible returns the elements matching loc that are displayed right now,
// without waiting.
func (w *Waiter) Visible(loc Locator) ([]Element, error) {
	all, err := w.Remote.FindElements(loc.By, loc.Value)
	if err != nil {
		if err = classify(err); errors.Is(err, ErrNotFound) {
			return []Element{}, nil
		}
		return nil, err
	}
	return displayed(all)
}

// displayed filters es down to the displayed elements. Elements that went
// stale since they were found are dropped.
func displayed(es []Element) ([]Element, error) {
	visible := make([]Element, 0, len(es))
	for _, e := range es {
		ok, err := e.IsDisplayed()
		if err != nil {
			if errors.Is(classify(err), ErrStaleReference) {
				continue
			}
			return nil, classify(err)
		}
		if ok {
			visible = append(visible, e)
		}
	}
	return visible, nil
}
