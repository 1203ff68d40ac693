package trail

import (
	"strings"

	"github.com/mssola/useragent"
)

// SummarizeUserAgent reduces a raw User-Agent header to the short
// browser/platform summary stored in access metadata. The raw header is
// noisy and fingerprintable; the chain keeps only the derived summary.
func SummarizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}

	ua := useragent.New(raw)
	name, version := ua.Browser()

	parts := make([]string, 0, 3)
	if name != "" {
		if version != "" {
			// Major version only; full versions churn too fast to be useful.
			if idx := strings.Index(version, "."); idx > 0 {
				version = version[:idx]
			}
			parts = append(parts, name+" "+version)
		} else {
			parts = append(parts, name)
		}
	}
	if os := ua.OSInfo().Name; os != "" {
		parts = append(parts, os)
	}
	if ua.Mobile() {
		parts = append(parts, "mobile")
	}

	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "; ")
}
