package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/golang/glog"
	"github.com/tebeka/selenium/log"
	"github.com/tebeka/selenium/sauce"
)

// Options configures a Session.
type Options struct {
	// Browser is the name of the browser variant, see ParseBrowser.
	Browser string
	// BaseURL is the root of the application under test.
	BaseURL string
	// Wait is the implicit wait of the session and the timeout of every
	// element wait. Zero means 30 seconds.
	Wait time.Duration
	// PollInterval is the polling interval of element waits. Zero means
	// DefaultPollInterval.
	PollInterval time.Duration

	// DriverPath is the driver executable to start locally. If both DriverPath
	// and Executor are empty, the conventional binary name for the browser is
	// started from PATH.
	DriverPath string
	// Port is the port of the locally started driver. Zero means 9515.
	Port int
	// Executor is the URL of an already-running WebDriver endpoint, such as
	// a Selenium grid. When set, no driver process is started.
	Executor string
	// BrowserBinary is the path of the browser executable.
	BrowserBinary string
	// Args are extra command-line arguments for the browser.
	Args []string
	// FrameBuffer starts an Xvfb server for headed browsers.
	FrameBuffer bool
	// ServiceOutput receives the driver's stdout and stderr.
	ServiceOutput io.Writer

	// MinBrowserVersion, if set, is the lowest browser version the session
	// accepts, e.g. "100" or "115.0.1".
	MinBrowserVersion string

	// Sauce, if set, runs the browser on Sauce Labs instead of locally.
	Sauce *SauceOptions
}

// SauceOptions selects a Sauce Labs hosted browser.
type SauceOptions struct {
	UserName, AccessKey string
	Capabilities        sauce.Capabilities
}

const (
	defaultWait = 30 * time.Second
	defaultPort = 9515
)

// Session owns one browser-control session: the remote handle, the driver
// processes started for it, and the wait policy applied to element lookups.
//
// A Session is not safe for concurrent use.
type Session struct {
	Browser Browser
	BaseURL string
	Wait    time.Duration

	remote   Remote
	waiter   *Waiter
	services []*Service
	minVer   string
	closed   bool
}

// Create resolves the browser variant, starts a driver for it unless an
// executor is configured, and opens a new session. An unknown browser fails
// with ErrInvalidArgument before any process is started.
func Create(opts Options) (*Session, error) {
	b, err := ParseBrowser(opts.Browser)
	if err != nil {
		return nil, err
	}
	if opts.MinBrowserVersion != "" {
		if _, err := parseVersion(opts.MinBrowserVersion); err != nil {
			return nil, fmt.Errorf("%w: minimum browser version %q: %v", ErrInvalidArgument, opts.MinBrowserVersion, err)
		}
	}

	caps := b.Capabilities(opts.BrowserBinary, opts.Args)
	addr := opts.Executor
	var services []*Service
	switch {
	case opts.Sauce != nil:
		m, err := opts.Sauce.Capabilities.ToMap()
		if err != nil {
			return nil, fmt.Errorf("%w: sauce capabilities: %v", ErrInvalidArgument, err)
		}
		for k, v := range m {
			caps[k] = v
		}
		addr = sauce.Addr(opts.Sauce.UserName, opts.Sauce.AccessKey)
	case addr == "":
		port := opts.Port
		if port == 0 {
			port = defaultPort
		}
		var sopts []ServiceOption
		if opts.ServiceOutput != nil {
			sopts = append(sopts, Output(opts.ServiceOutput))
		}
		if opts.FrameBuffer && !b.Headless() {
			sopts = append(sopts, StartFrameBuffer(DefaultScreen))
		}
		svc, err := startService(b, opts.DriverPath, port, sopts...)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
		addr = svc.Addr()
	}

	glog.V(1).Infof("starting %s session at %s", b, addr)
	remote, err := Dial(caps, addr)
	if err != nil {
		for _, svc := range services {
			svc.Kill() // ignore error.
		}
		return nil, err
	}
	s := NewSession(remote, b, opts.BaseURL, opts.Wait)
	s.services = services
	s.minVer = opts.MinBrowserVersion
	if opts.PollInterval > 0 {
		s.waiter.Interval = opts.PollInterval
	}
	return s, nil
}

// startService is replaced in tests.
var startService = NewService

// NewSession wraps an already-open remote session. No process is owned by the
// returned Session.
func NewSession(r Remote, b Browser, baseURL string, wait time.Duration) *Session {
	if wait <= 0 {
		wait = defaultWait
	}
	return &Session{
		Browser: b,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Wait:    wait,
		remote:  r,
		waiter:  NewWaiter(r, wait),
	}
}

// Initialize sets the implicit wait, maximizes the window, and navigates to
// the base URL. Failing to maximize is not an error: headless browsers and
// some window managers refuse it.
func (s *Session) Initialize() error {
	if err := s.remote.SetImplicitWaitTimeout(s.Wait); err != nil {
		return classify(err)
	}
	if err := s.remote.MaximizeWindow(""); err != nil {
		glog.Warningf("maximizing window: %v", err)
	}
	if s.minVer != "" {
		if err := s.checkVersion(); err != nil {
			return err
		}
	}
	glog.V(1).Infof("navigating to %s", s.BaseURL)
	return classify(s.remote.Get(s.BaseURL))
}

// Close closes the current window and ends the session. A remote end that is
// already gone is tolerated. Close does not stop the driver processes; see
// KillAll.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var closeErr error
	if err := s.remote.Close(); err != nil {
		if isGone(err) {
			glog.Warningf("closing window: remote end already gone: %v", err)
		} else {
			closeErr = classify(err)
		}
	}
	if err := s.remote.Quit(); err != nil {
		if !isGone(err) {
			return errors.Join(closeErr, classify(err))
		}
		glog.Warningf("ending session: remote end already gone: %v", err)
	}
	return closeErr
}

// KillAll forcibly terminates every process this Session started: the driver
// and, if any, its frame buffer. Processes are tracked by handle from the
// moment they are spawned, so unrelated browser or driver instances on the
// host are never touched.
func (s *Session) KillAll() error {
	var errs []error
	for _, svc := range s.services {
		if err := svc.Kill(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Remote returns the unwrapped remote session.
func (s *Session) Remote() Remote { return s.remote }

// Waiter returns the wait policy wrapping the remote session.
func (s *Session) Waiter() *Waiter { return s.waiter }

// Services returns the driver services owned by the session.
func (s *Session) Services() []*Service { return s.services }

// Navigate loads path relative to the base URL.
func (s *Session) Navigate(path string) error {
	u := s.BaseURL + path
	glog.V(1).Infof("navigating to %s", u)
	return classify(s.remote.Get(u))
}

// Refresh reloads the current page.
func (s *Session) Refresh() error {
	return classify(s.remote.Refresh())
}

// Find waits for an element matching loc to be displayed and returns it.
func (s *Session) Find(loc Locator) (Element, error) {
	return s.waiter.FindElement(loc.By, loc.Value)
}

// FindAll waits for an element matching loc to be displayed and returns all
// displayed matches.
func (s *Session) FindAll(loc Locator) ([]Element, error) {
	return s.waiter.FindElements(loc.By, loc.Value)
}

// Visible returns the displayed matches of loc without waiting.
func (s *Session) Visible(loc Locator) ([]Element, error) {
	return s.waiter.Visible(loc)
}

// WaitUntilVisible waits for an element matching loc to be displayed.
func (s *Session) WaitUntilVisible(loc Locator) (Element, error) {
	return s.waiter.WaitUntilVisible(loc)
}

// WaitUntilInvisible waits for every element matching loc to disappear.
func (s *Session) WaitUntilInvisible(loc Locator) error {
	return s.waiter.WaitUntilInvisible(loc)
}

// WaitFor waits for the element handle to be displayed and enabled.
func (s *Session) WaitFor(e Element) error {
	return s.waiter.WaitForElement(e)
}

// BrowserVersion returns the version of the browser reported by the remote
// end.
func (s *Session) BrowserVersion() (semver.Version, error) {
	caps, err := s.remote.Capabilities()
	if err != nil {
		return semver.Version{}, classify(err)
	}
	for _, key := range []string{"browserVersion", "version"} {
		if v, ok := caps[key].(string); ok && v != "" {
			return parseVersion(v)
		}
	}
	return semver.Version{}, fmt.Errorf("%w: remote end did not report a browser version", ErrRemoteProtocol)
}

func (s *Session) checkVersion() error {
	floor, err := parseVersion(s.minVer)
	if err != nil {
		return fmt.Errorf("%w: minimum browser version %q: %v", ErrInvalidArgument, s.minVer, err)
	}
	v, err := s.BrowserVersion()
	if err != nil {
		return err
	}
	glog.V(1).Infof("%s version %s", s.Browser, v)
	if v.LT(floor) {
		return fmt.Errorf("%w: %s version %s is older than the required %s", ErrInvalidArgument, s.Browser, v, floor)
	}
	return nil
}

// parseVersion parses browser versions, which often carry a fourth
// component ("120.0.6099.109") that semver does not allow.
func parseVersion(v string) (semver.Version, error) {
	parts := strings.SplitN(strings.TrimSpace(v), ".", 4)
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return semver.ParseTolerant(strings.Join(parts, "."))
}

// SaveScreenshot writes a PNG screenshot of the browser window to
// dir/name.png and returns the path.
func (s *Session) SaveScreenshot(dir, name string) (string, error) {
	png, err := s.remote.Screenshot()
	if err != nil {
		return "", classify(err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, sanitize(name)+".png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// SaveBrowserLog writes the browser console messages collected since the last
// call to dir/name.log and returns the path.
func (s *Session) SaveBrowserLog(dir, name string) (string, error) {
	msgs, err := s.remote.Log(log.Browser)
	if err != nil {
		return "", classify(err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s %s %s\n", m.Timestamp.Format(time.RFC3339Nano), m.Level, m.Message)
	}
	path := filepath.Join(dir, sanitize(name)+".log")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
}

var (
	_ Remote = (*Waiter)(nil)
	_ Remote = webDriver{}
)
