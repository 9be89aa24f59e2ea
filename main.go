package main

import (
	"os"

	"github.com/yumyai/treesplit/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
