// Command payroute runs the purchase flow from the terminal or over HTTP.
//
//	payroute run "돈 12345 지불해"
//	payroute repl
//	payroute serve --addr :8080
//	payroute tools
//	payroute graph
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
