//go:build stave

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/yaklabco/stave/pkg/sh"
	"github.com/yaklabco/stave/pkg/st"
	"github.com/yaklabco/stave/pkg/target"
)

// Default target when running `stave` with no arguments.
var Default = All

// Aliases for common targets.
var Aliases = map[string]interface{}{
	"b": Build,
	"t": Test,
	"l": Lint,
	"c": Clean,
	"s": Smoke,
}

var binaries = []string{"omr-eval", "omr-bench"}

const (
	fixturesDir  = "testdata"
	fixturesTool = "scripts/make-fixtures.go"
)

// Generated by Fixtures and removed by Clean.
var fixtureFiles = []string{
	filepath.Join(fixturesDir, "gt.json"),
	filepath.Join(fixturesDir, "bbox.json"),
}

// All runs the CI pipeline with tidy modules.
func All() error {
	st.Deps(Init)
	st.Deps(Lint, Test)
	st.Deps(Build)
	st.Deps(Smoke)
	return nil
}

// Init ensures the module dependencies are up to date.
func Init() error {
	return sh.Run("go", "mod", "tidy")
}

// Build compiles omr-eval and omr-bench into bin/.
func Build() error {
	st.Deps(Build_Eval, Build_Bench)
	return nil
}

// Build_Eval compiles bin/omr-eval.
func Build_Eval() error {
	st.Deps(Init)
	return buildBinary("omr-eval")
}

// Build_Bench compiles bin/omr-bench.
func Build_Bench() error {
	st.Deps(Init)
	return buildBinary("omr-bench")
}

func buildBinary(name string) error {
	out := filepath.Join("bin", name)
	rebuild, err := target.Glob(out, "**/*.go", "go.mod", "go.sum")
	if err != nil {
		return fmt.Errorf("checking rebuild of %s: %w", name, err)
	}
	if !rebuild {
		if st.Verbose() {
			fmt.Printf("%s is up to date\n", name)
		}
		return nil
	}
	return sh.RunV("go", "build", "-ldflags", buildLdflags(), "-o", out, "./cmd/"+name)
}

// buildLdflags returns ldflags for version injection.
func buildLdflags() string {
	version, _ := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	return "-X main.version=" + strings.TrimSpace(version)
}

// Fixtures writes the synthetic ground truth and predictions to testdata/,
// skipping the work when they are newer than the generator.
func Fixtures() error {
	for _, f := range fixtureFiles {
		stale, err := target.Glob(f, fixturesTool)
		if err != nil {
			return fmt.Errorf("checking %s: %w", f, err)
		}
		if stale {
			return sh.RunV("go", "run", fixturesTool, "-out", fixturesDir)
		}
	}
	return nil
}

// Smoke scores the fixtures with omr-eval.
func Smoke() error {
	st.Deps(Build_Eval, Fixtures)
	return sh.RunV(filepath.Join("bin", "omr-eval"),
		"--truth", fixtureFiles[0],
		"--pred", fixtureFiles[1],
		"--per-image",
	)
}

// Test runs all tests with race detection and coverage.
func Test() error {
	st.Deps(Init)
	return sh.RunV("go", "test", "-race", "-cover", "./...")
}

// TestShort skips the long alignment tests.
func TestShort() error {
	st.Deps(Init)
	return sh.RunV("go", "test", "-short", "-race", "./...")
}

// Lint runs golangci-lint, including the build-tagged stavefile and scripts.
func Lint() error {
	if err := sh.RunV("golangci-lint", "run", "./..."); err != nil {
		return err
	}
	if err := sh.RunV("golangci-lint", "run", "--build-tags", "stave", "stavefile.go"); err != nil {
		return err
	}
	return sh.RunV("golangci-lint", "run", "--build-tags", "ignore", fixturesTool)
}

// Vet runs go vet on all packages.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Clean removes build output and generated fixtures.
func Clean() error {
	artifacts := append([]string{"bin/", "coverage.out", "coverage.html", "omreval.sqlite3"}, fixtureFiles...)
	for _, a := range artifacts {
		if err := sh.Rm(a); err != nil {
			return fmt.Errorf("removing %s: %w", a, err)
		}
	}
	return nil
}

// Install builds and installs the binaries to GOBIN.
func Install() error {
	st.Deps(Build)

	gocmd := st.GoCmd()
	bin, err := sh.Output(gocmd, "env", "GOBIN")
	if err != nil {
		return fmt.Errorf("determining GOBIN: %w", err)
	}
	if bin == "" {
		gopath, err := sh.Output(gocmd, "env", "GOPATH")
		if err != nil {
			return fmt.Errorf("determining GOPATH: %w", err)
		}
		bin = filepath.Join(gopath, "bin")
	}

	for _, name := range binaries {
		dst := filepath.Join(bin, name)
		if runtime.GOOS == "windows" {
			dst += ".exe"
		}
		if err := sh.Copy(dst, filepath.Join("bin", name)); err != nil {
			return fmt.Errorf("installing %s: %w", name, err)
		}
		if st.Verbose() {
			fmt.Printf("Installed %s to %s\n", name, dst)
		}
	}
	return nil
}

// Bench namespace for checkpoint benchmarks.
type Bench st.Namespace

// Run scores every checkpoint listed in the bench config.
// Set OMR_BENCH_CONFIG to use a file other than bench.yaml.
func (Bench) Run() error {
	st.Deps(Build_Bench)
	return sh.RunV(filepath.Join("bin", "omr-bench"), "run", "--config", benchConfig())
}

// Sweep runs a threshold sweep over one checkpoint.
// Requires OMR_DATASET and OMR_CHECKPOINT.
func (Bench) Sweep() error {
	st.Deps(Build_Bench)

	dataset := os.Getenv("OMR_DATASET")
	checkpoint := os.Getenv("OMR_CHECKPOINT")
	if dataset == "" || checkpoint == "" {
		return fmt.Errorf("OMR_DATASET and OMR_CHECKPOINT must be set")
	}

	return sh.RunV(filepath.Join("bin", "omr-bench"), "sweep",
		"--config", benchConfig(),
		"--dataset", dataset,
		"--checkpoint", checkpoint,
	)
}

// History lists the runs stored in the results database.
func (Bench) History() error {
	st.Deps(Build_Bench)
	return sh.RunV(filepath.Join("bin", "omr-bench"), "history", "--config", benchConfig())
}

func benchConfig() string {
	if p := os.Getenv("OMR_BENCH_CONFIG"); p != "" {
		return p
	}
	return "bench.yaml"
}

// CI runs every check in order, ending with the smoke evaluation.
func CI() error {
	st.Deps(Init)
	st.SerialDeps(Lint, Test, Build, Smoke)
	return nil
}

// Check runs quick validation (vet, lint, short tests).
func Check() error {
	st.Deps(Vet, Lint, TestShort)
	return nil
}

// Coverage writes coverage.out and an HTML report.
func Coverage() error {
	st.Deps(Init)
	if err := sh.RunV("go", "test", "-race", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-html=coverage.out", "-o", "coverage.html")
}
