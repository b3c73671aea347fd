package utils

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ProgressBar renders byte progress for a stream of known total size
type ProgressBar struct {
	out         io.Writer
	total       int64
	current     int64
	description string
	startTime   time.Time
	width       int
}

// NewProgressBar creates a new progress bar writing to out
func NewProgressBar(out io.Writer, total int64, description string) *ProgressBar {
	return &ProgressBar{
		out:         out,
		total:       total,
		description: description,
		startTime:   time.Now(),
		width:       40,
	}
}

// Add advances the bar by n bytes
func (pb *ProgressBar) Add(n int64) {
	pb.current += n
	if pb.current > pb.total {
		pb.current = pb.total
	}
	pb.render()
}

// SetDescription updates the description
func (pb *ProgressBar) SetDescription(desc string) {
	pb.description = desc
	pb.render()
}

// Finish completes the progress bar
func (pb *ProgressBar) Finish() {
	pb.current = pb.total
	pb.render()
	fmt.Fprintln(pb.out)
}

// Line returns the current bar without the carriage return.
func (pb *ProgressBar) Line() string {
	if pb.total <= 0 {
		return pb.description
	}

	percentage := float64(pb.current) / float64(pb.total) * 100
	filled := int(float64(pb.width) * float64(pb.current) / float64(pb.total))
	bar := strings.Repeat("#", filled) + strings.Repeat("-", pb.width-filled)

	var eta string
	if elapsed := time.Since(pb.startTime); pb.current > 0 && pb.current < pb.total {
		totalTime := time.Duration(float64(elapsed) * float64(pb.total) / float64(pb.current))
		if remaining := totalTime - elapsed; remaining > time.Second {
			eta = fmt.Sprintf(" ETA: %v", remaining.Round(time.Second))
		}
	}

	return fmt.Sprintf("%s [%s] %.1f%%%s", pb.description, bar, percentage, eta)
}

func (pb *ProgressBar) render() {
	if pb.total <= 0 {
		return
	}
	fmt.Fprintf(pb.out, "\r%s", pb.Line())
}

// CountingReader reports every read to a ProgressBar. It is used to show
// progress against the compressed archive size while entries are inflated.
type CountingReader struct {
	R   io.Reader
	Bar *ProgressBar
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	if n > 0 && c.Bar != nil {
		c.Bar.Add(int64(n))
	}
	return n, err
}

// FormatSize renders a byte count the way status lines print it.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
