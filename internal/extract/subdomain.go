package extract

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// SubdomainExtractor pulls hostnames ending in a target domain out of raw file
// content. It is a pure function over text; deduplication across hits is the
// aggregator's job.
type SubdomainExtractor struct {
	target string
	re     *regexp.Regexp
}

// NewSubdomainExtractor builds an extractor for the given target domain. The
// target must be a syntactically plausible domain (at least two labels);
// anything else fails before any network call is made.
func NewSubdomainExtractor(target string) (*SubdomainExtractor, error) {
	target = strings.ToLower(strings.Trim(strings.TrimSpace(target), "."))
	if err := ValidateTarget(target); err != nil {
		return nil, err
	}

	// One or more labels, then the literal target. Underscores occur in real
	// DNS records (e.g. _dmarc) so the label class allows them.
	re, err := regexp.Compile(`(?i)((?:[a-z0-9_-]+\.)+` + regexp.QuoteMeta(target) + `)`)
	if err != nil {
		return nil, fmt.Errorf("extract: compile pattern: %w", err)
	}

	return &SubdomainExtractor{target: target, re: re}, nil
}

// Target returns the normalized target domain.
func (e *SubdomainExtractor) Target() string {
	return e.target
}

// Extract returns every well-formed subdomain of the target found in raw,
// lowercased, with trailing punctuation stripped, in encounter order and
// deduplicated within this call. Empty or binary content yields nil.
func (e *SubdomainExtractor) Extract(raw string) []string {
	if raw == "" {
		return nil
	}

	var results []string
	seen := make(map[string]struct{})

	for _, match := range e.re.FindAllString(raw, -1) {
		host := strings.ToLower(strings.TrimRight(match, ".,;:'\")]}>"))
		if host == e.target {
			continue
		}
		if !strings.HasSuffix(host, "."+e.target) {
			continue
		}
		if !validHostname(host) {
			continue
		}
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		results = append(results, host)
	}

	return results
}

// ValidateTarget rejects structurally invalid target domains before any
// orchestration starts.
func ValidateTarget(target string) error {
	if target == "" {
		return fmt.Errorf("extract: empty target domain")
	}
	if !strings.Contains(target, ".") {
		return fmt.Errorf("extract: target %q is not a domain", target)
	}
	if !validHostname(target) {
		return fmt.Errorf("extract: target %q is not a valid hostname", target)
	}
	return nil
}

// ParentVariants returns the parent-domain queries extended mode should also
// search, walking label by label from the target toward its registrable
// domain. levels bounds how far up to walk; negative walks the whole way.
// The registrable boundary comes from the public suffix list, so
// "app.svc.example.co.uk" never degenerates into "co.uk".
func ParentVariants(target string, levels int) []string {
	target = strings.ToLower(strings.Trim(target, "."))
	if levels == 0 {
		return nil
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(target)
	if err != nil || registrable == target {
		return nil
	}

	var variants []string
	current := target
	for current != registrable {
		i := strings.Index(current, ".")
		if i < 0 {
			break
		}
		current = current[i+1:]
		if len(current) < len(registrable) {
			break
		}
		variants = append(variants, current)
		if levels > 0 && len(variants) >= levels {
			break
		}
	}
	return variants
}

// validHostname checks DNS hostname grammar: total length, label lengths, and
// the character set the extraction pattern admits.
func validHostname(host string) bool {
	if len(host) == 0 || len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, r := range label {
			switch {
			case r >= 'a' && r <= 'z':
			case r >= '0' && r <= '9':
			case r == '-' || r == '_':
			default:
				return false
			}
		}
	}
	return true
}
