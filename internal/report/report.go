// Package report renders validation results for the console.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/pendergraft/delegation-deployments/internal/checker"
)

const (
	SuccessMessage = "Successfully validated contract deployments"
	FailureMessage = "Failed to validate contract deployments"
)

const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

// Text writes one line per settled chain and a final verdict. It is safe for
// concurrent use.
type Text struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewText creates a text reporter. Output is colored when w is a terminal.
func NewText(w io.Writer) *Text {
	return &Text{w: w, color: isTerminal(w)}
}

// ChainDone prints the outcome of one chain followed by one indented line per
// failure.
func (t *Text) ChainDone(r checker.ChainResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r.Passed() {
		fmt.Fprintln(t.w, t.paint(ansiGreen, r.Name+" succeeded"))
		return
	}

	fmt.Fprintln(t.w, t.paint(ansiRed, r.Name+" failed"))
	if r.Err != nil {
		fmt.Fprintf(t.w, "  %s: %v\n", r.Name, r.Err)
	}
	for _, ct := range r.FailedContracts() {
		fmt.Fprintf(t.w, "  %s: %v\n", r.Name, ct.Err)
	}
}

// Summary prints the final verdict.
func (t *Text) Summary(rep *checker.Report) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintln(t.w)
	if rep.Passed {
		fmt.Fprintln(t.w, t.paint(ansiGreen, SuccessMessage))
		return
	}
	fmt.Fprintln(t.w, t.paint(ansiRed, FailureMessage))
}

func (t *Text) paint(code, s string) string {
	if !t.color {
		return s
	}
	return code + s + ansiReset
}

// WriteJSON writes the whole report as indented JSON.
func WriteJSON(w io.Writer, rep *checker.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*checker.Report
		Summary checker.Summary `json:"summary"`
	}{rep, rep.Summary()})
}

// ExitCode returns 0 when every chain and contract passed, 1 otherwise.
func ExitCode(rep *checker.Report) int {
	if rep != nil && rep.Passed {
		return 0
	}
	return 1
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
