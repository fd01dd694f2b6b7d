package gdrive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/visavox/visavox/internal/store"
)

// BuildDigest renders one day of calls as a Markdown document.
func BuildDigest(date string, calls []store.Call) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Visa Consultations %s\n\n", date)

	if len(calls) == 0 {
		b.WriteString("No calls recorded.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%d call(s).\n\n", len(calls))
	for _, c := range calls {
		fmt.Fprintf(&b, "## Call %s\n\n", c.ID)
		fmt.Fprintf(&b, "- Started: %s\n", c.StartedAt.UTC().Format("15:04:05 MST"))
		if c.EndedAt != nil {
			fmt.Fprintf(&b, "- Duration: %s\n", c.EndedAt.Sub(c.StartedAt).Round(time.Second))
		}
		fmt.Fprintf(&b, "- Summary status: %s\n\n", c.SummaryStatus)

		if strings.TrimSpace(c.Summary) != "" {
			b.WriteString(c.Summary)
			b.WriteString("\n\n")
		}
	}

	return b.String()
}

// WriteDigestFile writes the digest for a date under dir and returns the
// file path.
func WriteDigestFile(dir, date string, calls []store.Call) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create digest directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("digest-%s.md", date))
	if err := os.WriteFile(path, []byte(BuildDigest(date, calls)), 0o644); err != nil {
		return "", fmt.Errorf("write digest: %w", err)
	}
	return path, nil
}
