package fakebrowser

import (
	"net/url"

	"github.com/wanmail/seleniumexample/driver"
)

// Locators of the search site, matching the pages package.
var (
	SearchBox     = driver.ID("search_form_input_homepage")
	SearchButton  = driver.ID("search_button_homepage")
	ResultAnchors = driver.XPath("//*[@class='result__a']")
)

// Result is one anchor on the results page.
type Result struct {
	Href   string
	Hidden bool
}

// SearchSite returns a browser serving a search form at "/" whose button
// navigates to "/q" with the typed query, where results are listed.
func SearchSite(baseURL string, results ...Result) *Browser {
	box := NewElement()
	button := NewElement()
	button.OnClick = func(b *Browser) error {
		return b.Get(baseURL + "/q?q=" + url.QueryEscape(box.Value))
	}
	home := NewPage().Add(SearchBox, box).Add(SearchButton, button)

	list := NewPage()
	for _, r := range results {
		e := NewElement()
		e.Attrs["href"] = r.Href
		e.Displayed = !r.Hidden
		list.Add(ResultAnchors, e)
	}
	return New(map[string]*Page{"/": home, "/q": list})
}
