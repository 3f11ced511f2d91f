//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"
)

// ExecutableName returns the base name of the running binary.
func ExecutableName() string {
	path, err := os.Executable()
	if err != nil {
		path = os.Args[0]
	}

	return filepath.Base(path)
}

// ExecutableExtension returns ".exe" on Windows and "" elsewhere.
func ExecutableExtension() string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return ".exe"
	}

	return ""
}

// FindProcesses lists the pids of other processes running the named executable.
func FindProcesses(name string) ([]int, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var (
		thisProcessID = os.Getpid()
		result        []int
	)

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != name {
			continue
		}

		result = append(result, process.Pid())
	}

	return result, nil
}

// FindDaemons lists the pids of other processes running the named executable
// as the daemon. Subcommands such as status or publish share the executable
// and are skipped. A process whose arguments cannot be read counts as a daemon.
func FindDaemons(name string) ([]int, error) {
	pids, err := FindProcesses(name)
	if err != nil {
		return nil, err
	}

	result := pids[:0]

	for _, pid := range pids {
		args, ok := processArgs(pid)
		if ok && !IsDaemonInvocation(args) {
			continue
		}

		result = append(result, pid)
	}

	return result, nil
}

// TerminateDaemons kills every other daemon running the named executable
// and returns how many were killed.
func TerminateDaemons(name string) (int, error) {
	pids, err := FindDaemons(name)
	if err != nil {
		return 0, err
	}

	for i, pid := range pids {
		runningProcess, err := os.FindProcess(pid)
		if err != nil {
			return i, err
		}

		if err = runningProcess.Kill(); err != nil {
			return i, fmt.Errorf("kill %d: %w", pid, err)
		}
	}

	return len(pids), nil
}

//nolint:gochecknoglobals // Fixed command line vocabulary.
var (
	// clientCommands share the executable with the daemon but never own relays.
	clientCommands = map[string]struct{}{
		"publish":          {},
		"status":           {},
		"self-update":      {},
		"package":          {},
		"version":          {},
		"help":             {},
		"completion":       {},
		"__complete":       {},
		"__completeNoDesc": {},
	}
	// valueFlags are root flags taking their value as the next argument.
	valueFlags = map[string]struct{}{
		"-c":           {},
		"--config":     {},
		"-n":           {},
		"--name":       {},
		"-p":           {},
		"--gpio-pin":   {},
		"--redis-host": {},
		"--redis-port": {},
	}
)

// IsDaemonInvocation reports whether args, without the program name, start
// the daemon: no positional argument naming a subcommand precedes "--".
func IsDaemonInvocation(args []string) bool {
	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "--":
			return true
		case strings.HasPrefix(arg, "-"):
			if _, ok := valueFlags[arg]; ok {
				i++
			}
		default:
			_, client := clientCommands[arg]

			return !client
		}
	}

	return true
}

// processArgs returns the arguments of pid without the program name.
// Only Linux exposes them; elsewhere ok is false.
func processArgs(pid int) ([]string, bool) {
	raw, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "cmdline"))
	if err != nil || len(raw) == 0 {
		return nil, false
	}

	args := strings.Split(strings.TrimRight(string(raw), "\x00"), "\x00")

	return args[1:], true
}
