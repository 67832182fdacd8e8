package pages

import (
	"github.com/wanmail/seleniumexample/driver"
)

// Search is the landing page with the search form.
type Search struct {
	s *driver.Session
}

// NewSearch returns the search page bound to s.
func NewSearch(s *driver.Session) *Search {
	return &Search{s: s}
}

func (p *Search) URL() string { return "/" }

func (p *Search) searchTextField() (driver.Element, error) {
	return p.s.Find(driver.ID("search_form_input_homepage"))
}

func (p *Search) searchButton() (driver.Element, error) {
	return p.s.Find(driver.ID("search_button_homepage"))
}

// EnterTextInSearchField types text into the search box.
func (p *Search) EnterTextInSearchField(text string) (*Search, error) {
	e, err := p.searchTextField()
	if err != nil {
		return nil, err
	}
	if err := driver.SendKeys(e, text, false); err != nil {
		return nil, err
	}
	return p, nil
}

// ClickSearchButton submits the search form.
func (p *Search) ClickSearchButton() (*Search, error) {
	e, err := p.searchButton()
	if err != nil {
		return nil, err
	}
	if err := e.Click(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Search) NavigateToPage() error {
	return navigate(p.s, p)
}

// WaitForPageToLoad waits for the search box to be displayed and enabled.
func (p *Search) WaitForPageToLoad() error {
	e, err := p.searchTextField()
	if err != nil {
		return err
	}
	return p.s.WaitFor(e)
}
