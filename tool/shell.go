package tool

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// DefaultShellTimeout bounds command wall-clock time unless the call
// overrides it.
const DefaultShellTimeout = 30 * time.Second

const shellChunkSize = 8 * 1024

// shellOutcome is the raw result of one command, before truncation.
type shellOutcome struct {
	Output   string
	ExitCode int
	TimedOut bool
	Elapsed  time.Duration
}

// sensitiveEnvSuffixes name environment variables withheld from spawned
// commands.
var sensitiveEnvSuffixes = []string{
	"_API_KEY",
	"_SECRET",
	"_TOKEN",
	"_PASSWORD",
	"_CREDENTIAL",
}

// safeEnvVars pass through regardless of suffix matching.
var safeEnvVars = map[string]bool{
	"PATH": true, "HOME": true, "USER": true, "SHELL": true,
	"LANG": true, "TERM": true, "TMPDIR": true,
	"GOPATH": true, "GOROOT": true, "CARGO_HOME": true,
	"XDG_CONFIG_HOME": true, "XDG_DATA_HOME": true, "XDG_CACHE_HOME": true,
}

func filteredEnvironment(overrides map[string]string) []string {
	var env []string
	for _, kv := range os.Environ() {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if safeEnvVars[name] || !sensitiveEnvVar(name) {
			env = append(env, kv)
		}
	}
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}

func sensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	for _, suffix := range sensitiveEnvSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return true
		}
	}
	return false
}

// runShell spawns the command under bash with a filtered environment, a
// process group for clean teardown, and a hard deadline. Output is captured
// incrementally; each chunk is handed to progress as it arrives so the event
// stream can show live output. On timeout the whole process group receives
// SIGKILL and the outcome is marked TimedOut with whatever was captured.
func runShell(ctx context.Context, workDir string, args *ShellExecArgs, timeout time.Duration, progress func(stream, chunk string)) (shellOutcome, error) {
	if args.TimeoutMs > 0 {
		timeout = time.Duration(args.TimeoutMs) * time.Millisecond
	}
	if timeout <= 0 {
		timeout = DefaultShellTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/bash", "-c", args.Command)
	cmd.Dir = workDir
	cmd.Env = filteredEnvironment(args.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return nil
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return shellOutcome{}, fmt.Errorf("shell_exec: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return shellOutcome{}, fmt.Errorf("shell_exec: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return shellOutcome{}, fmt.Errorf("shell_exec: %w", err)
	}

	var (
		mu     sync.Mutex
		output strings.Builder
		wg     sync.WaitGroup
	)
	capture := func(stream string, r io.Reader) {
		defer wg.Done()
		buf := make([]byte, shellChunkSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := string(buf[:n])
				mu.Lock()
				output.WriteString(chunk)
				mu.Unlock()
				if progress != nil {
					progress(stream, chunk)
				}
			}
			if err != nil {
				return
			}
		}
	}
	wg.Add(2)
	go capture("stdout", stdout)
	go capture("stderr", stderr)
	wg.Wait()

	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	outcome := shellOutcome{Output: output.String(), Elapsed: elapsed}
	if ctx.Err() == context.DeadlineExceeded {
		outcome.TimedOut = true
		outcome.ExitCode = -1
		return outcome, nil
	}
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			outcome.ExitCode = exitErr.ExitCode()
			return outcome, nil
		}
		return outcome, fmt.Errorf("shell_exec: %w", waitErr)
	}
	return outcome, nil
}
