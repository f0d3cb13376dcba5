package main

import (
	"os"

	"github.com/CodeMonkeyCybersecurity/pantest/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
