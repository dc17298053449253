// Command qemurun launches the kernel image under qemu-system-riscv64,
// passing the host terminal through to the emulated SBI console, and
// optionally relaunches it, once QEMU has exited, when a file under a
// watched directory changes. It does not rebuild the kernel image.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"
)

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[qemurun] error: %s\n", err.Error())
	os.Exit(1)
}

// rawTerminal puts fd into raw mode for the duration of a QEMU session, so
// keystrokes reach the emulated SBI console unbuffered and unechoed, and
// returns a function that restores the previous terminal state.
func rawTerminal(fd int) (restore func(), err error) {
	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}

	raw := *saved
	raw.Lflag &^= unix.ICANON | unix.ECHO | unix.ISIG
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return nil, err
	}

	return func() { unix.IoctlSetTermios(fd, unix.TCSETS, saved) }, nil
}

func launch(kernelImage, sbiPath string) *exec.Cmd {
	cmd := exec.Command(
		"qemu-system-riscv64",
		"-M", "virt",
		"-nographic",
		"-bios", sbiPath,
		"-kernel", kernelImage,
	)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

func runOnce(kernelImage, sbiPath string) error {
	restore, err := rawTerminal(int(os.Stdin.Fd()))
	if err != nil {
		// Not every invocation runs against a real tty (e.g. CI);
		// fall back to cooked mode rather than failing the launch.
		restore = func() {}
	}
	defer restore()

	return launch(kernelImage, sbiPath).Run()
}

func watchAndRun(kernelImage, sbiPath, watchDir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := filepath.WalkDir(watchDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	}); err != nil {
		return err
	}

	for {
		if err := runOnce(kernelImage, sbiPath); err != nil {
			log.Printf("qemu exited: %v", err)
		}

		log.Printf("watching %s for changes", watchDir)
		select {
		case ev := <-watcher.Events:
			log.Printf("relaunch triggered by %s", ev.Name)
		case err := <-watcher.Errors:
			return err
		}
	}
}

func run() error {
	kernelImage := flag.String("kernel", "target/riscv64/kernel", "path to the built kernel image")
	sbiPath := flag.String("bios", "default", "path to the SBI firmware image, or \"default\" for QEMU's bundled OpenSBI")
	watch := flag.String("watch", "", "relaunch QEMU after it exits once a file under this directory changes")
	flag.Parse()

	if *watch != "" {
		return watchAndRun(*kernelImage, *sbiPath, *watch)
	}
	return runOnce(*kernelImage, *sbiPath)
}

func main() {
	if err := run(); err != nil {
		exit(err)
	}
}
