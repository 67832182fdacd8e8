// Package fakebrowser provides an in-memory driver.Remote for tests. Pages
// are sets of elements keyed by locator; navigation switches the current
// page by URL path.
package fakebrowser

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/log"

	"github.com/wanmail/seleniumexample/driver"
)

// Element is an in-memory element.
type Element struct {
	Attrs       map[string]string
	TextContent string
	// Value is the text typed into the element.
	Value     string
	Displayed bool
	Enabled   bool
	// DisplayAfter delays visibility: IsDisplayed reports false for the
	// first DisplayAfter calls.
	DisplayAfter int
	// Stale makes every call fail with a stale element reference.
	Stale bool
	// StickyText is left in Text after Clear, like fields that Clear does not
	// empty.
	StickyText string
	OnClick    func(b *Browser) error

	Clicks, Clears, Polls int
	Keys                  []string

	browser *Browser
}

// NewElement returns a displayed and enabled element.
func NewElement() *Element {
	return &Element{Attrs: map[string]string{}, Displayed: true, Enabled: true}
}

var errStale = errors.New("stale element reference: element is not attached to the page document")

func (e *Element) Click() error {
	if e.Stale {
		return errStale
	}
	e.Clicks++
	if e.OnClick != nil {
		return e.OnClick(e.browser)
	}
	return nil
}

func (e *Element) SendKeys(keys string) error {
	if e.Stale {
		return errStale
	}
	e.Keys = append(e.Keys, keys)
	e.Value += keys
	return nil
}

func (e *Element) Clear() error {
	if e.Stale {
		return errStale
	}
	e.Clears++
	e.Value = ""
	e.TextContent = e.StickyText
	return nil
}

func (e *Element) Text() (string, error) {
	if e.Stale {
		return "", errStale
	}
	return e.TextContent, nil
}

func (e *Element) IsDisplayed() (bool, error) {
	if e.Stale {
		return false, errStale
	}
	e.Polls++
	if e.Polls <= e.DisplayAfter {
		return false, nil
	}
	return e.Displayed, nil
}

func (e *Element) IsEnabled() (bool, error) {
	if e.Stale {
		return false, errStale
	}
	return e.Enabled, nil
}

func (e *Element) GetAttribute(name string) (string, error) {
	if e.Stale {
		return "", errStale
	}
	if name == "value" {
		return e.Value, nil
	}
	v, ok := e.Attrs[name]
	if !ok {
		return "", fmt.Errorf("no such attribute %q", name)
	}
	return v, nil
}

// Page is the set of elements served at one path.
type Page struct {
	Elements map[driver.Locator][]*Element
}

// NewPage returns an empty page.
func NewPage() *Page {
	return &Page{Elements: map[driver.Locator][]*Element{}}
}

// Add appends elements matching loc, in document order.
func (p *Page) Add(loc driver.Locator, es ...*Element) *Page {
	p.Elements[loc] = append(p.Elements[loc], es...)
	return p
}

// Browser is an in-memory driver.Remote.
type Browser struct {
	Pages map[string]*Page
	Caps  selenium.Capabilities
	PNG   []byte
	Logs  []log.Message

	MaximizeErr, CloseErr, QuitErr, GetErr, LogErr error

	Visited      []string
	Refreshes    int
	ImplicitWait time.Duration
	Maximized    bool
	Closed       bool
	Ended        bool
	Finds        int
	// OnFind, if set, runs before every lookup with the lookup count, so
	// tests can change the page while a wait is polling.
	OnFind func(n int)

	current *Page
}

// New returns a browser serving pages by path.
func New(pages map[string]*Page) *Browser {
	b := &Browser{Pages: pages, current: NewPage()}
	for _, p := range pages {
		for _, es := range p.Elements {
			for _, e := range es {
				e.browser = b
			}
		}
	}
	return b
}

// Replace swaps the elements matching loc on the page at path for es, and
// marks the old ones stale.
func (b *Browser) Replace(path string, loc driver.Locator, es ...*Element) {
	p := b.Pages[path]
	for _, old := range p.Elements[loc] {
		old.Stale = true
	}
	for _, e := range es {
		e.browser = b
	}
	p.Elements[loc] = es
}

func (b *Browser) Get(u string) error {
	if b.GetErr != nil {
		return b.GetErr
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("invalid argument: %v", err)
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}
	b.Visited = append(b.Visited, u)
	p, ok := b.Pages[path]
	if !ok {
		p = NewPage()
	}
	for _, es := range p.Elements {
		for _, e := range es {
			e.browser = b
		}
	}
	b.current = p
	return nil
}

// Refresh discards whatever was typed into the current page.
func (b *Browser) Refresh() error {
	b.Refreshes++
	for _, es := range b.current.Elements {
		for _, e := range es {
			e.Value = ""
		}
	}
	return nil
}

func (b *Browser) CurrentURL() (string, error) {
	if len(b.Visited) == 0 {
		return "about:blank", nil
	}
	return b.Visited[len(b.Visited)-1], nil
}

func (b *Browser) FindElement(by, value string) (driver.Element, error) {
	b.find()
	es := b.current.Elements[driver.Locator{By: by, Value: value}]
	if len(es) == 0 {
		return nil, fmt.Errorf("no such element: Unable to locate element: {%q: %q}", by, value)
	}
	return es[0], nil
}

func (b *Browser) FindElements(by, value string) ([]driver.Element, error) {
	b.find()
	es := b.current.Elements[driver.Locator{By: by, Value: value}]
	out := make([]driver.Element, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out, nil
}

func (b *Browser) find() {
	b.Finds++
	if b.OnFind != nil {
		b.OnFind(b.Finds)
	}
}

func (b *Browser) SetImplicitWaitTimeout(timeout time.Duration) error {
	b.ImplicitWait = timeout
	return nil
}

func (b *Browser) MaximizeWindow(name string) error {
	if b.MaximizeErr != nil {
		return b.MaximizeErr
	}
	b.Maximized = true
	return nil
}

func (b *Browser) Capabilities() (selenium.Capabilities, error) {
	return b.Caps, nil
}

func (b *Browser) Screenshot() ([]byte, error) {
	return b.PNG, nil
}

// Log returns and clears the collected messages, like chromedriver does.
func (b *Browser) Log(typ log.Type) ([]log.Message, error) {
	if b.LogErr != nil {
		return nil, b.LogErr
	}
	msgs := b.Logs
	b.Logs = nil
	return msgs, nil
}

func (b *Browser) Close() error {
	b.Closed = true
	return b.CloseErr
}

func (b *Browser) Quit() error {
	b.Ended = true
	return b.QuitErr
}

var _ driver.Remote = (*Browser)(nil)
