// Command aggnav serves and queries the aggregate navigation engine.
package main

import (
	"os"

	"aggnav/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
