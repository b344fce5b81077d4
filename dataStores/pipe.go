package dataStores

import (
	"fmt"
	"os"
)

// Pipe is a data store over a named pipe (FIFO). Pipes are one-shot
// sequential channels: every OpenRead opens the FIFO anew, which is how a
// reset obtains the next pass of the data. Reads block until a writer is
// connected; Abort closes the descriptor, failing any blocked read.
type Pipe struct {
	path string
}

// NewPipe creates a pipe store for the FIFO at path.
func NewPipe(path string) *Pipe {
	return &Pipe{path: path}
}

func (p *Pipe) ID() string {
	return p.path
}

func (p *Pipe) OpenRead() (InputStream, error) {
	f, err := os.OpenFile(p.path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open pipe store %q: %w", p.path, err)
	}
	return newAbortableStream(f), nil
}

func (p *Pipe) String() string {
	return fmt.Sprintf("pipe store %q", p.path)
}
