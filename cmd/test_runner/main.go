package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

var (
	verbose    = flag.Bool("v", false, "verbose output")
	short      = flag.Bool("short", false, "run only short tests")
	race       = flag.Bool("race", true, "enable the race detector (the session runs fetches on goroutines)")
	coverOut   = flag.String("coverprofile", "", "write a coverage profile to this file")
	timeout    = flag.Duration("timeout", 5*time.Minute, "test timeout")
	testRegexp = flag.String("run", "", "run only tests matching the regular expression")
)

// Usage: go run ./cmd/test_runner [flags] [packages]
// Packages default to ./...
func main() {
	flag.Parse()

	args := []string{"test", "-count=1"}
	if *verbose {
		args = append(args, "-v")
	}
	if *short {
		args = append(args, "-short")
	}
	if *race {
		args = append(args, "-race")
	}
	if *coverOut != "" {
		args = append(args, "-coverprofile="+*coverOut, "-covermode=atomic")
	}
	args = append(args, fmt.Sprintf("-timeout=%s", timeout.String()))
	if *testRegexp != "" {
		args = append(args, fmt.Sprintf("-run=%s", *testRegexp))
	}

	packages := flag.Args()
	if len(packages) == 0 {
		packages = []string{"./..."}
	}
	args = append(args, packages...)

	cmd := exec.Command("go", args...)
	// Exported app settings would override the defaults the config tests expect.
	env := make([]string, 0, len(os.Environ()))
	for _, kv := range os.Environ() {
		if !isAppSetting(kv) {
			env = append(env, kv)
		}
	}
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	fmt.Printf("Running tests with args: %s\n", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		fmt.Printf("Error running tests: %v\n", err)
		os.Exit(1)
	}
}

var appSettings = []string{
	"BINANCE_API_KEY", "BINANCE_API_SECRET", "IS_TESTNET", "MARKET", "SOURCE", "SYMBOL",
	"PAGE_SIZE", "DEFAULT_INTERVAL", "DEFAULT_LOOKBACK_HOURS", "EXPORT_DIR", "ARCHIVE_DB_PATH",
	"LOG_LEVEL", "LOG_FORMAT",
}

func isAppSetting(kv string) bool {
	name, _, _ := strings.Cut(kv, "=")
	for _, s := range appSettings {
		if name == s {
			return true
		}
	}
	return false
}
