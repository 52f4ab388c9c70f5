// internal/fetch/exec_test.go
package fetch

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecRunner_StreamsLines(t *testing.T) {
	proc, err := execRunner{}.Start(context.Background(), "sh", "-c", `printf 'one\ntwo\n'`)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	var lines []string
	for line := range proc.Lines() {
		lines = append(lines, line)
	}
	if err := proc.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Errorf("lines = %v, want [one two]", lines)
	}
}

// A single output line larger than the scanner buffer aborts the scan; the
// pump must keep draining so the child's writes never block and Wait returns.
func TestExecRunner_OversizedLineDoesNotWedgeWait(t *testing.T) {
	proc, err := execRunner{}.Start(context.Background(), "sh", "-c",
		`head -c 2000000 /dev/zero | tr '\0' 'a'; echo done`)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	for range proc.Lines() {
	}

	waited := make(chan error, 1)
	go func() { waited <- proc.Wait() }()

	select {
	case err := <-waited:
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
	case <-time.After(5 * time.Second):
		proc.Terminate(time.Second)
		t.Fatal("Wait did not return after the output stream was drained")
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	_, err := execRunner{}.Start(context.Background(), "definitely-not-a-real-binary-4f2a")
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("Start = %v, want ErrToolNotFound", err)
	}
}
