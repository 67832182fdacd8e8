package driver

import (
	"fmt"
	"time"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/log"
)

// Methods by which to find elements. These are the strategies of the WebDriver
// protocol, re-exported so page models need not import the client directly.
const (
	ByID              = selenium.ByID
	ByXPath           = selenium.ByXPATH
	ByLinkText        = selenium.ByLinkText
	ByPartialLinkText = selenium.ByPartialLinkText
	ByName            = selenium.ByName
	ByTagName         = selenium.ByTagName
	ByClassName       = selenium.ByClassName
	ByCSSSelector     = selenium.ByCSSSelector
)

// Locator describes how to find an element: a strategy and a value. Locators
// are cheap values; page models build a fresh one on every access.
type Locator struct {
	By, Value string
}

// ID returns a Locator that matches elements by their id attribute.
func ID(id string) Locator { return Locator{By: ByID, Value: id} }

// XPath returns a Locator that matches elements by an XPath expression.
func XPath(expr string) Locator { return Locator{By: ByXPath, Value: expr} }

// CSS returns a Locator that matches elements by a CSS selector.
func CSS(selector string) Locator { return Locator{By: ByCSSSelector, Value: selector} }

func (l Locator) String() string {
	return fmt.Sprintf("By.%s: %s", l.By, l.Value)
}

// Element is a possibly-stale handle to a node in the remote document. It is
// the subset of selenium.WebElement used by this framework.
type Element interface {
	Click() error
	SendKeys(keys string) error
	Clear() error
	Text() (string, error)
	IsDisplayed() (bool, error)
	IsEnabled() (bool, error)
	GetAttribute(name string) (string, error)
}

// Remote is the capability surface of a browser-control session. It is the
// subset of selenium.WebDriver used by this framework.
type Remote interface {
	// Get navigates the browser to the provided URL.
	Get(url string) error
	// Refresh reloads the current page.
	Refresh() error
	// CurrentURL returns the browser's current URL.
	CurrentURL() (string, error)
	// FindElement finds exactly one element in the current page's DOM.
	FindElement(by, value string) (Element, error)
	// FindElements finds potentially many elements in the current page's DOM,
	// in document order.
	FindElements(by, value string) ([]Element, error)
	// SetImplicitWaitTimeout sets how long the remote end waits when searching
	// for elements.
	SetImplicitWaitTimeout(timeout time.Duration) error
	// MaximizeWindow maximizes a window. If the name is empty, the current
	// window is maximized.
	MaximizeWindow(name string) error
	// Capabilities returns the capabilities negotiated for the session.
	Capabilities() (selenium.Capabilities, error)
	// Screenshot takes a PNG screenshot of the browser window.
	Screenshot() ([]byte, error)
	// Log returns and clears the log entries of the given type collected by
	// the remote end. Not every driver supports every type.
	Log(typ log.Type) ([]log.Message, error)
	// Close closes the current window.
	Close() error
	// Quit ends the session.
	Quit() error
}

// webDriver adapts a selenium.WebDriver to Remote.
type webDriver struct {
	selenium.WebDriver
}

func (wd webDriver) FindElement(by, value string) (Element, error) {
	e, err := wd.WebDriver.FindElement(by, value)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (wd webDriver) FindElements(by, value string) ([]Element, error) {
	es, err := wd.WebDriver.FindElements(by, value)
	if err != nil {
		return nil, err
	}
	elems := make([]Element, len(es))
	for i, e := range es {
		elems[i] = e
	}
	return elems, nil
}

// Dial starts a new WebDriver session against the remote end at addr. An empty
// addr means a Selenium server on localhost:4444.
var Dial = func(caps selenium.Capabilities, addr string) (Remote, error) {
	wd, err := selenium.NewRemote(caps, addr)
	if err != nil {
		return nil, classify(err)
	}
	return webDriver{wd}, nil
}
