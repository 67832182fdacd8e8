package main

import (
	"github.com/cucumber/godog"
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/wanmail/seleniumexample/driver"
	"github.com/wanmail/seleniumexample/steps"
)

func newRunCommand() *cobra.Command {
	var (
		format string
		tags   string
	)
	cmd := &cobra.Command{
		Use:   "run [feature paths...]",
		Short: "Run feature files in a browser",
		Long: `Run feature files in a browser.

One browser session is opened for the whole run and shared by every
scenario. After each scenario the browser returns to the search page.
When the run ends the session is closed and every driver process started
for it is terminated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			if err := conf.Validate(); err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{"features"}
			}
			suite := &steps.Suite{
				Open: func() (*driver.Session, error) {
					return driver.Create(conf.DriverOptions())
				},
				Artifacts: conf.Artifacts.String,
			}
			glog.V(1).Infof("running %v in %s against %s", args, conf.Browser.String, conf.BaseURL.String)
			status := suite.Run("webspec", &godog.Options{
				Format: format,
				Tags:   tags,
				Paths:  args,
				Output: cmd.OutOrStdout(),
			})
			if status != 0 {
				return &statusError{status: status}
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.SortFlags = false
	fs.StringP("browser", "b", "chrome", "browser `name`: "+browserNames())
	fs.String("base-url", "", "base `URL` of the application under test")
	fs.Int64("wait", 7, "implicit and element wait in `seconds`")
	fs.String("driver", "", "driver executable `path`, defaults to the browser's driver on PATH")
	fs.Int64("port", 9515, "`port` of the locally started driver")
	fs.String("executor", "", "`URL` of a running WebDriver endpoint; no driver is started")
	fs.Bool("xvfb", false, "run headed browsers in an Xvfb frame buffer")
	fs.String("min-browser-version", "", "fail when the browser is older than `version`")
	fs.String("artifacts", "artifacts", "`directory` for screenshots of failed scenarios")
	fs.StringVarP(&format, "format", "f", "pretty", "godog output `format`")
	fs.StringVarP(&tags, "tags", "t", "", "run only scenarios matching the tag `expression`")
	return cmd
}

func browserNames() string {
	s := ""
	for i, b := range driver.Browsers {
		if i > 0 {
			s += ", "
		}
		s += string(b)
	}
	return s
}
