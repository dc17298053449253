// Command mkimage reads a manifest of user application ELF binaries and
// produces the assembly fragment the kernel's linker script incorporates
// as the _num_app application table, replacing a hand-maintained offset
// table with a generated one.
package main

import (
	"debug/elf"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"
)

// manifest is the declarative description of which application binaries to
// embed, and in which slot order.
type manifest struct {
	MinABI string        `yaml:"min_abi"`
	Apps   []manifestApp `yaml:"apps"`
}

type manifestApp struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[mkimage] error: %s\n", err.Error())
	os.Exit(1)
}

func loadManifest(path string) (*manifest, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m manifest
	if err := yaml.Unmarshal(buf, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(m.Apps) == 0 {
		return nil, errors.New("manifest declares no applications")
	}

	return &m, nil
}

// validateELF verifies img is a riscv64 executable this kernel's loader can
// run: a 64-bit little-endian RISC-V ELF with at least one PT_LOAD segment.
func validateELF(path string) error {
	f, err := elf.Open(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS64 {
		return fmt.Errorf("%s: not a 64-bit ELF", path)
	}
	if f.Data != elf.ELFDATA2LSB {
		return fmt.Errorf("%s: not a little-endian ELF", path)
	}
	if f.Machine != elf.EM_RISCV {
		return fmt.Errorf("%s: not built for riscv64 (machine=%s)", path, f.Machine)
	}

	for _, p := range f.Progs {
		if p.Type == elf.PT_LOAD {
			return nil
		}
	}
	return fmt.Errorf("%s: no PT_LOAD segments", path)
}

// writeLinkFragment emits an assembly fragment defining _num_app: a word
// count followed by count+1 word application start offsets, then the
// application images themselves concatenated via .incbin, matching the
// linker script's documented _num_app layout.
func writeLinkFragment(w *os.File, apps []manifestApp) error {
	fmt.Fprintln(w, ".align 3")
	fmt.Fprintln(w, ".section .data")
	fmt.Fprintln(w, ".global _num_app")
	fmt.Fprintln(w, "_num_app:")
	fmt.Fprintf(w, "\t.quad %d\n", len(apps))
	for i := range apps {
		fmt.Fprintf(w, "\t.quad app_%d_start\n", i)
	}
	fmt.Fprintf(w, "\t.quad app_%d_end\n", len(apps)-1)

	for i, app := range apps {
		abs, err := filepath.Abs(app.Path)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\napp_%d_start:\n", i)
		fmt.Fprintf(w, "\t.incbin %q\n", abs)
		fmt.Fprintf(w, "app_%d_end:\n", i)
	}

	return nil
}

func run() error {
	manifestPath := flag.String("manifest", "apps.yaml", "path to the application manifest")
	outPath := flag.String("out", "link_app.S", "path to write the generated linker fragment")
	flag.Parse()

	m, err := loadManifest(*manifestPath)
	if err != nil {
		return err
	}

	bar := progressbar.Default(int64(len(m.Apps)), "validating applications")
	for _, app := range m.Apps {
		if err := validateELF(app.Path); err != nil {
			return err
		}
		bar.Add(1)
	}

	out, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	return writeLinkFragment(out, m.Apps)
}

func main() {
	if err := run(); err != nil {
		exit(err)
	}
}
