package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"pkt.systems/studiosync/internal/version"
)

func main() {
	var outPath string
	var release bool
	flag.StringVar(&outPath, "out", "", "write the version line to this file")
	flag.BoolVar(&release, "release", false, "print the release id reported by /health")
	flag.Parse()

	line := versionLine(release)
	if outPath != "" {
		if err := writeVersionFile(outPath, line); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
	}

	fmt.Fprintln(os.Stdout, line)
}

func versionLine(release bool) string {
	if release {
		return version.Release()
	}
	ver := strings.TrimSpace(version.Current())
	if ver == "" {
		ver = "v0.0.0-unknown"
	}
	return ver
}

// writeVersionFile rewrites path only when its content differs so that
// go generate does not touch the mtime of an unchanged file.
func writeVersionFile(path, line string) error {
	want := line + "\n"
	data, err := os.ReadFile(path)
	if err == nil && string(data) == want {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read version file: %w", err)
	}
	if err := os.WriteFile(path, []byte(want), 0o644); err != nil {
		return fmt.Errorf("write version file: %w", err)
	}
	return nil
}
