package pages

import (
	"github.com/wanmail/seleniumexample/driver"
)

// SearchResults lists the results of a search.
type SearchResults struct {
	s *driver.Session
}

// NewSearchResults returns the results page bound to s.
func NewSearchResults(s *driver.Session) *SearchResults {
	return &SearchResults{s: s}
}

func (p *SearchResults) URL() string { return "/q" }

func resultItems() driver.Locator {
	return driver.XPath("//*[@class='result__a']")
}

// GetVisibleResults returns the link targets of the results displayed right
// now, in page order. It looks the results up again on every call and returns
// an empty slice when none are displayed.
func (p *SearchResults) GetVisibleResults() ([]string, error) {
	items, err := p.s.Visible(resultItems())
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(items))
	for _, e := range items {
		href, err := e.GetAttribute("href")
		if err != nil {
			return nil, err
		}
		urls = append(urls, href)
	}
	return urls, nil
}

func (p *SearchResults) NavigateToPage() error {
	return navigate(p.s, p)
}

// WaitForPageToLoad waits for the first displayed result to be displayed and
// enabled. A page whose results all stay hidden has not loaded.
func (p *SearchResults) WaitForPageToLoad() error {
	items, err := p.s.FindAll(resultItems())
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return &driver.WaitError{Target: resultItems().String(), Timeout: p.s.Wait}
	}
	return p.s.WaitFor(items[0])
}

var (
	_ Page = (*Search)(nil)
	_ Page = (*SearchResults)(nil)
)
