// Command webspec runs browser feature files and queries test databases.
package main

import (
	"context"
	"os"

	"github.com/golang/glog"
)

func main() {
	root := newRootCommand()
	err := root.ExecuteContext(context.Background())
	glog.Flush()
	if err != nil {
		os.Exit(exitCode(err))
	}
}
