// Command harvester crawls metadata repositories and exports the records.
package main

import (
	"os"

	"github.com/mkoziy/harvester/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stderr))
}
