package main

import (
	"fmt"
	"io"
	"sync"
)

// consoleProgress renders cumulative transfer progress to a writer. It is a
// pubtypes.ProgressTracker.
type consoleProgress struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsoleProgress(out io.Writer) *consoleProgress {
	return &consoleProgress{out: out}
}

// Update implements pubtypes.ProgressTracker.
func (p *consoleProgress) Update(transferred, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if total <= 0 {
		return
	}
	fmt.Fprintf(p.out, "\ruploading chunks: %3d%% (%d/%d bytes)",
		transferred*100/total, transferred, total)
}

// Complete implements pubtypes.ProgressTracker.
func (p *consoleProgress) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, "\n")
}
