package driver

import (
	"fmt"
	"strings"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"
	"github.com/tebeka/selenium/log"
)

// Browser is one of the supported browser variants.
type Browser string

// The supported browser variants.
const (
	Chrome           Browser = "chrome"
	ChromeHeadless   Browser = "chrome-headless"
	Firefox          Browser = "firefox"
	FirefoxHeadless  Browser = "firefox-headless"
	InternetExplorer Browser = "ie"
)

// Browsers lists every supported variant.
var Browsers = []Browser{Chrome, ChromeHeadless, Firefox, FirefoxHeadless, InternetExplorer}

// ParseBrowser resolves a browser name, ignoring case. The legacy spellings
// "chromeheadless" and "firefoxheadless" are accepted as well.
func ParseBrowser(name string) (Browser, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "chrome":
		return Chrome, nil
	case "chrome-headless", "chromeheadless":
		return ChromeHeadless, nil
	case "firefox":
		return Firefox, nil
	case "firefox-headless", "firefoxheadless":
		return FirefoxHeadless, nil
	case "ie", "internet explorer", "internetexplorer":
		return InternetExplorer, nil
	}
	return "", fmt.Errorf("%w: provide a valid browser name, got %q (want one of %v)", ErrInvalidArgument, name, Browsers)
}

// Headless reports whether the variant runs without a visible window.
func (b Browser) Headless() bool {
	return b == ChromeHeadless || b == FirefoxHeadless
}

// DriverBinary returns the conventional name of the driver executable for b.
func (b Browser) DriverBinary() string {
	switch b {
	case Chrome, ChromeHeadless:
		return "chromedriver"
	case Firefox, FirefoxHeadless:
		return "geckodriver"
	case InternetExplorer:
		return "IEDriverServer"
	}
	return ""
}

// Keys of the Internet Explorer driver options.
const (
	ieCapabilitiesKey       = "se:ieOptions"
	ieIgnoreZoom            = "ignoreZoomSetting"
	ieIgnoreProtectedModes  = "ignoreProtectedModeSettings"
	internetExplorerBrowser = "internet explorer"
)

// Capabilities returns the desired capabilities for a new session of b.
// binary, if set, is the path of the browser executable; args are passed to
// the browser in addition to the variant's own flags.
func (b Browser) Capabilities(binary string, args []string) selenium.Capabilities {
	switch b {
	case Chrome, ChromeHeadless:
		caps := selenium.Capabilities{"browserName": "chrome"}
		co := chrome.Capabilities{
			Path: binary,
			Args: append([]string(nil), args...),
			W3C:  true,
		}
		if b.Headless() {
			co.Args = append(co.Args, "--headless", "--disable-gpu")
		}
		caps.AddChrome(co)
		caps.AddLogging(log.Capabilities{log.Browser: log.Info})
		return caps
	case Firefox, FirefoxHeadless:
		caps := selenium.Capabilities{"browserName": "firefox"}
		fo := firefox.Capabilities{
			Binary: binary,
			Args:   append([]string(nil), args...),
		}
		if b.Headless() {
			fo.Args = append(fo.Args, "--headless")
		}
		caps.AddFirefox(fo)
		return caps
	case InternetExplorer:
		// The legacy driver cannot start under non-default zoom or mixed
		// protected-mode settings unless told to ignore them.
		opts := map[string]interface{}{
			ieIgnoreZoom:           true,
			ieIgnoreProtectedModes: true,
		}
		if len(args) > 0 {
			opts["ie.browserCommandLineSwitches"] = strings.Join(args, " ")
			opts["ie.forceCreateProcessApi"] = true
		}
		caps := selenium.Capabilities{
			"browserName":          internetExplorerBrowser,
			ieCapabilitiesKey:      opts,
			ieIgnoreZoom:           true,
			ieIgnoreProtectedModes: true,
		}
		return caps
	}
	return selenium.Capabilities{}
}
