package lg

import "os"

// stderr resolves os.Stderr on every write so tests that swap it still work.
type stderr struct{}

func (stderr) Write(p []byte) (int, error) { return os.Stderr.Write(p) }
