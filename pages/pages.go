// Package pages models the pages of the application under test. Each page
// knows its path relative to the base URL and the element that signals it is
// ready. Locators are built fresh on every access, so no element handle
// outlives the navigation that produced it.
package pages

import (
	"github.com/wanmail/seleniumexample/driver"
)

// Page is implemented by every page model.
type Page interface {
	// URL returns the path of the page relative to the base URL.
	URL() string
	// NavigateToPage loads the page and waits for it to be ready.
	NavigateToPage() error
	// WaitForPageToLoad blocks until the page's anchor element is usable.
	WaitForPageToLoad() error
}

// navigate loads p's URL through s and waits for p to be ready.
func navigate(s *driver.Session, p Page) error {
	if err := s.Navigate(p.URL()); err != nil {
		return err
	}
	return p.WaitForPageToLoad()
}
