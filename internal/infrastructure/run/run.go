// Package run executes external commands for the few operations that
// must go through host tools (git tag -s, gpg), streaming their
// output while collecting it for error reporting.
package run

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// Runner executes a command in a directory and returns its combined
// output.
type Runner func(dir string, args ...string) ([]byte, error)

// Exec runs a command, printing its output to the terminal in real
// time while collecting it for the caller.
func Exec(dir string, args ...string) ([]byte, error) {
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	var output bytes.Buffer
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(2)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Text()
			fmt.Println(line)
			mu.Lock()
			output.WriteString(line + "\n")
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			fmt.Fprintln(os.Stderr, line)
			mu.Lock()
			output.WriteString(line + "\n")
			mu.Unlock()
		}
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return output.Bytes(), fmt.Errorf("%w\n%s", err, output.String())
	}
	return output.Bytes(), nil
}
