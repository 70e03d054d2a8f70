package main

import (
	"os"
	"path/filepath"

	"github.com/arturoeanton/go-sgml/sgml"
)

func main() {
	prog := filepath.Base(os.Args[0])
	os.Exit(sgml.Run(prog, os.Args[1:]))
}
