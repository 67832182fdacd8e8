package driver_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"
	"github.com/tebeka/selenium/log"
	"github.com/tebeka/selenium/sauce"

	"github.com/wanmail/seleniumexample/driver"
	"github.com/wanmail/seleniumexample/internal/fakebrowser"
)

const baseURL = "http://example.test"

type dialRecorder struct {
	calls   int
	caps    selenium.Capabilities
	addr    string
	browser *fakebrowser.Browser
}

func swapDial(t *testing.T, b *fakebrowser.Browser) *dialRecorder {
	t.Helper()
	r := &dialRecorder{browser: b}
	old := driver.Dial
	driver.Dial = func(caps selenium.Capabilities, addr string) (driver.Remote, error) {
		r.calls++
		r.caps, r.addr = caps, addr
		return r.browser, nil
	}
	t.Cleanup(func() { driver.Dial = old })
	return r
}

func swapStartService(t *testing.T, err error) *int {
	t.Helper()
	var calls int
	restore := driver.SwapStartService(func(driver.Browser, string, int, ...driver.ServiceOption) (*driver.Service, error) {
		calls++
		return nil, err
	})
	t.Cleanup(restore)
	return &calls
}

func TestCreateUnknownBrowser(t *testing.T) {
	for _, name := range []string{"", "safari", "chrome headless", "edge"} {
		t.Run(name, func(t *testing.T) {
			dial := swapDial(t, fakebrowser.New(nil))
			starts := swapStartService(t, nil)

			_, err := driver.Create(driver.Options{Browser: name, BaseURL: baseURL})
			if !errors.Is(err, driver.ErrInvalidArgument) {
				t.Fatalf("Create(%q) = %v, want ErrInvalidArgument", name, err)
			}
			if *starts != 0 || dial.calls != 0 {
				t.Errorf("Create(%q) started %d services and dialed %d times, want none", name, *starts, dial.calls)
			}
		})
	}
}

func TestCreateCapabilities(t *testing.T) {
	tests := []struct {
		name     string
		want     driver.Browser
		headless bool
	}{
		{name: "Chrome", want: driver.Chrome},
		{name: "CHROME-HEADLESS", want: driver.ChromeHeadless, headless: true},
		{name: "chromeheadless", want: driver.ChromeHeadless, headless: true},
		{name: "firefox", want: driver.Firefox},
		{name: "FirefoxHeadless", want: driver.FirefoxHeadless, headless: true},
		{name: "IE", want: driver.InternetExplorer},
	}
	const grid = "http://grid.test:4444/wd/hub"
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dial := swapDial(t, fakebrowser.New(nil))
			starts := swapStartService(t, nil)

			s, err := driver.Create(driver.Options{Browser: tc.name, BaseURL: baseURL + "/", Executor: grid, Wait: 7 * time.Second})
			if err != nil {
				t.Fatalf("Create(%q) returned error: %v", tc.name, err)
			}
			if s.Browser != tc.want {
				t.Errorf("Create(%q).Browser = %q, want %q", tc.name, s.Browser, tc.want)
			}
			if s.BaseURL != baseURL {
				t.Errorf("Create(%q).BaseURL = %q, want %q", tc.name, s.BaseURL, baseURL)
			}
			if *starts != 0 {
				t.Errorf("Create(%q) started %d services with an executor configured", tc.name, *starts)
			}
			if dial.addr != grid {
				t.Errorf("Create(%q) dialed %q, want %q", tc.name, dial.addr, grid)
			}
			if got := s.Browser.Headless(); got != tc.headless {
				t.Errorf("Headless() = %t, want %t", got, tc.headless)
			}
			if got := headlessArg(t, dial.caps); got != tc.headless {
				t.Errorf("capabilities %v request headless = %t, want %t", dial.caps, got, tc.headless)
			}
		})
	}
}

func headlessArg(t *testing.T, caps selenium.Capabilities) bool {
	t.Helper()
	var args []string
	switch caps["browserName"] {
	case "chrome":
		args = caps[chrome.CapabilitiesKey].(chrome.Capabilities).Args
	case "firefox":
		args = caps[firefox.CapabilitiesKey].(firefox.Capabilities).Args
	case "internet explorer":
		return false
	default:
		t.Fatalf("unexpected browserName in %v", caps)
	}
	for _, a := range args {
		if a == "--headless" {
			return true
		}
	}
	return false
}

func TestCreateSauce(t *testing.T) {
	dial := swapDial(t, fakebrowser.New(nil))
	starts := swapStartService(t, nil)

	_, err := driver.Create(driver.Options{
		Browser: "chrome",
		BaseURL: baseURL,
		Sauce: &driver.SauceOptions{
			UserName:  "u",
			AccessKey: "k",
			Capabilities: sauce.Capabilities{
				Platform: "Linux",
				Version:  "120",
			},
		},
	})
	if err != nil {
		t.Fatalf("Create() returned error: %v", err)
	}
	if *starts != 0 {
		t.Errorf("Create() started %d local services for a Sauce session", *starts)
	}
	if got, want := dial.addr, "http://u:k@ondemand.saucelabs.com/wd/hub"; got != want {
		t.Errorf("Create() dialed %q, want %q", got, want)
	}
	for k, want := range map[string]interface{}{
		"browserName": "chrome",
		"platform":    "Linux",
		"version":     "120",
	} {
		if got := dial.caps[k]; got != want {
			t.Errorf("capabilities[%q] = %v, want %v", k, got, want)
		}
	}
}

func TestInternetExplorerCapabilities(t *testing.T) {
	caps := driver.InternetExplorer.Capabilities("", nil)
	opts, ok := caps["se:ieOptions"].(map[string]interface{})
	if !ok {
		t.Fatalf("capabilities %v have no IE options", caps)
	}
	want := map[string]interface{}{
		"ignoreZoomSetting":           true,
		"ignoreProtectedModeSettings": true,
	}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Errorf("IE options diff (-want +got):\n%s", diff)
	}
}

func TestCreateStartsLocalDriver(t *testing.T) {
	swapDial(t, fakebrowser.New(nil))
	errStart := errors.New("no chromedriver here")
	var gotBrowser driver.Browser
	var gotPath string
	var gotPort int
	restore := driver.SwapStartService(func(b driver.Browser, path string, port int, _ ...driver.ServiceOption) (*driver.Service, error) {
		gotBrowser, gotPath, gotPort = b, path, port
		return nil, errStart
	})
	defer restore()

	_, err := driver.Create(driver.Options{Browser: "chrome", DriverPath: "/opt/chromedriver"})
	if !errors.Is(err, errStart) {
		t.Fatalf("Create() = %v, want %v", err, errStart)
	}
	if gotBrowser != driver.Chrome || gotPath != "/opt/chromedriver" || gotPort != 9515 {
		t.Errorf("service started with (%q, %q, %d), want (chrome, /opt/chromedriver, 9515)", gotBrowser, gotPath, gotPort)
	}
}

func TestInitialize(t *testing.T) {
	b := fakebrowser.New(nil)
	b.MaximizeErr = errors.New("unknown error: cannot maximize headless window")
	s := driver.NewSession(b, driver.ChromeHeadless, baseURL, 7*time.Second)

	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if b.ImplicitWait != 7*time.Second {
		t.Errorf("implicit wait = %v, want %v", b.ImplicitWait, 7*time.Second)
	}
	if diff := cmp.Diff([]string{baseURL}, b.Visited); diff != "" {
		t.Errorf("visited diff (-want +got):\n%s", diff)
	}
}

func TestInitializeBrowserVersion(t *testing.T) {
	tests := []struct {
		desc    string
		version string
		wantErr bool
	}{
		{desc: "newer", version: "120.0.6099.109"},
		{desc: "equal", version: "100.0"},
		{desc: "older", version: "99.0.4844.51", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			b := fakebrowser.New(nil)
			b.Caps = selenium.Capabilities{"browserVersion": tc.version}
			swapDial(t, b)

			s, err := driver.Create(driver.Options{Browser: "chrome", Executor: "http://grid.test", MinBrowserVersion: "100"})
			if err != nil {
				t.Fatalf("Create() returned error: %v", err)
			}
			err = s.Initialize()
			if tc.wantErr {
				if !errors.Is(err, driver.ErrInvalidArgument) {
					t.Fatalf("Initialize() = %v, want ErrInvalidArgument", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Initialize() returned error: %v", err)
			}
		})
	}
}

func TestCreateBadMinimumVersion(t *testing.T) {
	dial := swapDial(t, fakebrowser.New(nil))
	_, err := driver.Create(driver.Options{Browser: "firefox", Executor: "http://grid.test", MinBrowserVersion: "latest"})
	if !errors.Is(err, driver.ErrInvalidArgument) {
		t.Fatalf("Create() = %v, want ErrInvalidArgument", err)
	}
	if dial.calls != 0 {
		t.Errorf("Create() dialed %d times, want none", dial.calls)
	}
}

func TestClose(t *testing.T) {
	tests := []struct {
		desc     string
		closeErr error
		quitErr  error
		wantErr  error
	}{
		{desc: "clean"},
		{
			desc:     "window already closed",
			closeErr: errors.New("no such window: target window already closed"),
		},
		{
			desc:    "session already gone",
			quitErr: errors.New("invalid session id: session deleted because of page crash"),
		},
		{
			desc:    "remote failure",
			quitErr: errors.New("unknown error: cannot quit"),
			wantErr: driver.ErrRemoteProtocol,
		},
		{
			desc:     "window close failure",
			closeErr: errors.New("unknown error: cannot close window"),
			wantErr:  driver.ErrRemoteProtocol,
		},
	}
	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			b := fakebrowser.New(nil)
			b.CloseErr, b.QuitErr = tc.closeErr, tc.quitErr
			s := driver.NewSession(b, driver.Chrome, baseURL, time.Second)

			err := s.Close()
			if tc.wantErr == nil && err != nil {
				t.Fatalf("Close() returned error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("Close() = %v, want %v", err, tc.wantErr)
			}
			if !b.Closed || !b.Ended {
				t.Errorf("Close() closed window = %t, quit = %t, want both", b.Closed, b.Ended)
			}
			if err := s.Close(); err != nil {
				t.Errorf("second Close() returned error: %v", err)
			}
			if err := s.KillAll(); err != nil {
				t.Errorf("KillAll() without services returned error: %v", err)
			}
		})
	}
}

func TestNavigateAndRefresh(t *testing.T) {
	b := fakebrowser.New(nil)
	s := driver.NewSession(b, driver.Chrome, baseURL+"/", time.Second)
	if err := s.Navigate("/q"); err != nil {
		t.Fatalf("Navigate(/q) returned error: %v", err)
	}
	if err := s.Refresh(); err != nil {
		t.Fatalf("Refresh() returned error: %v", err)
	}
	if got, _ := b.CurrentURL(); got != baseURL+"/q" {
		t.Errorf("CurrentURL() = %q, want %q", got, baseURL+"/q")
	}
	if b.Refreshes != 1 {
		t.Errorf("Refreshes = %d, want 1", b.Refreshes)
	}
}

func TestSaveScreenshot(t *testing.T) {
	b := fakebrowser.New(nil)
	b.PNG = []byte("\x89PNG")
	s := driver.NewSession(b, driver.Chrome, baseURL, time.Second)

	dir := filepath.Join(t.TempDir(), "artifacts")
	path, err := s.SaveScreenshot(dir, "search/results: empty")
	if err != nil {
		t.Fatalf("SaveScreenshot() returned error: %v", err)
	}
	if base := filepath.Base(path); strings.ContainsAny(base, "/: ") || !strings.HasSuffix(base, ".png") {
		t.Errorf("SaveScreenshot() wrote %q, want a sanitized .png name", base)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "\x89PNG" {
		t.Errorf("screenshot contents = %q, want %q", got, "\x89PNG")
	}
}

func TestSaveBrowserLog(t *testing.T) {
	b := fakebrowser.New(nil)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b.Logs = []log.Message{
		{Timestamp: at, Level: log.Info, Message: "loaded"},
		{Timestamp: at.Add(time.Second), Level: log.Severe, Message: "boom"},
	}
	s := driver.NewSession(b, driver.Chrome, baseURL, time.Second)

	path, err := s.SaveBrowserLog(t.TempDir(), "failed scenario")
	if err != nil {
		t.Fatalf("SaveBrowserLog() returned error: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "2024-05-01T12:00:00Z INFO loaded\n2024-05-01T12:00:01Z SEVERE boom\n"
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("browser log diff (-want +got):\n%s", diff)
	}
	if len(b.Logs) != 0 {
		t.Errorf("SaveBrowserLog() left %d messages on the remote end", len(b.Logs))
	}
}

func TestSaveBrowserLogUnsupported(t *testing.T) {
	b := fakebrowser.New(nil)
	b.LogErr = errors.New("unknown command: HTTP method not allowed")
	s := driver.NewSession(b, driver.Firefox, baseURL, time.Second)
	if _, err := s.SaveBrowserLog(t.TempDir(), "x"); !errors.Is(err, driver.ErrRemoteProtocol) {
		t.Errorf("SaveBrowserLog() = %v, want ErrRemoteProtocol", err)
	}
}

func TestChromeRequestsBrowserLog(t *testing.T) {
	caps := driver.Chrome.Capabilities("", nil)
	prefs, ok := caps[log.CapabilitiesKey].(log.Capabilities)
	if !ok || prefs[log.Browser] == "" {
		t.Errorf("chrome capabilities %v do not request the browser log", caps)
	}
}
