package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	null "gopkg.in/guregu/null.v3"

	"github.com/wanmail/seleniumexample/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// statusError carries a process exit status out of a command.
type statusError struct {
	status int
}

func (e *statusError) Error() string { return fmt.Sprintf("exit status %d", e.status) }

func exitCode(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	fmt.Fprintln(os.Stderr, "webspec:", err)
	return 1
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "webspec",
		Short:         "Run browser feature files against a web application",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// glog registers -v, -logtostderr and friends on the standard flag set.
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	root.PersistentFlags().StringP("config", "c", os.Getenv("WEBSPEC_CONFIG"), "JSON configuration `file`")

	root.AddCommand(newRunCommand(), newQueryCommand(), newVersionCommand())
	return root
}

// loadConfig reads the configuration file named by --config, then the
// environment, then the changed flags of fs.
func loadConfig(fs *pflag.FlagSet) (config.Config, error) {
	path, err := fs.GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	conf, err := config.Load(path, nil)
	if err != nil {
		return conf, err
	}
	return conf.Apply(flagConfig(fs)), nil
}

func flagConfig(fs *pflag.FlagSet) config.Config {
	return config.Config{
		Browser:           getNullString(fs, "browser"),
		BaseURL:           getNullString(fs, "base-url"),
		WaitSeconds:       getNullInt(fs, "wait"),
		DriverPath:        getNullString(fs, "driver"),
		DriverPort:        getNullInt(fs, "port"),
		Executor:          getNullString(fs, "executor"),
		FrameBuffer:       getNullBool(fs, "xvfb"),
		MinBrowserVersion: getNullString(fs, "min-browser-version"),
		Artifacts:         getNullString(fs, "artifacts"),
		DBDriver:          getNullString(fs, "db-driver"),
		DBDSN:             getNullString(fs, "dsn"),
		DBProcedureStyle:  getNullString(fs, "procedure-style"),
	}
}

// The getNull* helpers return a value that is set only when the flag was
// given on the command line. Flags a command does not define are unset.

func getNullString(fs *pflag.FlagSet, name string) null.String {
	v, err := fs.GetString(name)
	return null.NewString(v, err == nil && fs.Changed(name))
}

func getNullInt(fs *pflag.FlagSet, name string) null.Int {
	v, err := fs.GetInt64(name)
	return null.NewInt(v, err == nil && fs.Changed(name))
}

func getNullBool(fs *pflag.FlagSet, name string) null.Bool {
	v, err := fs.GetBool(name)
	return null.NewBool(v, err == nil && fs.Changed(name))
}
