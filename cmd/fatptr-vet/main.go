// Command fatptr-vet reports zero values of generated fatptr wrappers.
//
// Usage:
//
//	fatptr-vet ./...
//	go vet -vettool=$(which fatptr-vet) ./...
package main

import (
	"github.com/funvibe/fatptr/internal/nozero"
	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(nozero.Analyzer)
}
