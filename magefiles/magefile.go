//go:build mage

// Package main provides build targets for notesync using Mage.
//
// Usage:
//
//	mage build      Compile notesync binary to bin/
//	mage test       Run all tests
//	mage testShort  Run tests with -short
//	mage cover      Run tests with a coverage profile in bin/
//	mage lint       Run go vet and golangci-lint
//	mage clean      Remove build artifacts
//	mage install    Install notesync to GOPATH/bin
//	mage stats      Print Go line counts per package
package main

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "notesync"
	binaryDir  = "bin"
	cmdDir     = "./cmd/notesync"
	coverFile  = "coverage.out"
)

// Build compiles the notesync binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs all tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// TestShort runs the tests with -short.
func TestShort() error {
	return sh.RunV("go", "test", "-short", "./...")
}

// Cover runs the tests with a coverage profile and prints the summary.
func Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := filepath.Join(binaryDir, coverFile)
	if err := sh.RunV("go", "test", "-coverprofile="+profile, "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-func="+profile)
}

// Lint runs go vet and golangci-lint.
func Lint() error {
	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return err
	}
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV("go", "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output("go", "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Stats prints production and test line counts of every Go package.
func Stats() error {
	files, err := doublestar.Glob(os.DirFS("."), "{cmd,internal,pkg}/**/*.go")
	if err != nil {
		return err
	}

	type counts struct{ prod, test int }
	perPkg := map[string]*counts{}
	var total counts
	for _, f := range files {
		n, err := countLines(f)
		if err != nil {
			return err
		}
		dir := path.Dir(f)
		c := perPkg[dir]
		if c == nil {
			c = &counts{}
			perPkg[dir] = c
		}
		if strings.HasSuffix(f, "_test.go") {
			c.test += n
			total.test += n
		} else {
			c.prod += n
			total.prod += n
		}
	}

	dirs := make([]string, 0, len(perPkg))
	for d := range perPkg {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	for _, d := range dirs {
		fmt.Printf("%-24s %6d prod %6d test\n", d, perPkg[d].prod, perPkg[d].test)
	}
	fmt.Printf("%-24s %6d prod %6d test\n", "total", total.prod, total.test)
	return nil
}

func countLines(name string) (int, error) {
	f, err := os.Open(name)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}
