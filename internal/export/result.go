package export

import "io"

// ProgressFunc receives the completed fraction and a status line.
type ProgressFunc func(fraction float64, status string)

func (p ProgressFunc) report(fraction float64, status string) {
	if p != nil {
		p(fraction, status)
	}
}

// Result summarizes a written artifact.
type Result struct {
	Format    Format
	MimeType  string
	Extension string
	// Frames counts pages or frames that carry a drawn card.
	Frames int
	// Skipped counts sentences left out of the artifact.
	Skipped int
	// Failed counts pages or frames drawn as error placeholders.
	Failed int
	Size   int64
}

// FileName is the artifact name for this result.
func (r Result) FileName() string {
	return FileName(r.Extension)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
