// Command hookrunner runs Jest-style JavaScript test files.
package main

import (
	"os"

	"yqhp/hookrunner/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
