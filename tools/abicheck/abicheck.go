// Command abicheck gates tools/mkimage on a minimum supported syscall ABI
// version recorded in an application manifest, so a manifest written
// against a newer syscall table fails fast with a clear error instead of
// producing a kernel image that silently panics on an unknown syscall ID
// the first time an application actually issues it.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// currentSyscallABI tracks kernel/syscall's dispatch table by hand: it is
// not imported from that package because tools/ is a hosted build and
// kernel/syscall pulls in GOARCH-gated assembly that only links for
// riscv64. Bump this whenever a syscall is added, removed, or its
// semantics change.
const currentSyscallABI = "1.0.0"

type manifest struct {
	MinABI string `yaml:"min_abi"`
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[abicheck] error: %s\n", err.Error())
	os.Exit(1)
}

func run() error {
	manifestPath := flag.String("manifest", "apps.yaml", "path to the application manifest")
	flag.Parse()

	buf, err := os.ReadFile(*manifestPath)
	if err != nil {
		return err
	}

	var m manifest
	if err := yaml.Unmarshal(buf, &m); err != nil {
		return fmt.Errorf("%s: %w", *manifestPath, err)
	}

	required, err := semver.NewVersion(m.MinABI)
	if err != nil {
		return fmt.Errorf("%s: invalid min_abi %q: %w", *manifestPath, m.MinABI, err)
	}

	current, err := semver.NewVersion(currentSyscallABI)
	if err != nil {
		return err
	}

	if required.GreaterThan(current) {
		return fmt.Errorf(
			"manifest requires syscall ABI >= %s, this kernel implements %s",
			required, current,
		)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		exit(err)
	}
}
