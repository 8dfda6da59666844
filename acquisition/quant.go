package acquisition

import (
	"regexp"
	"strings"
)

// DefaultQuantization is used when a request does not name one.
const DefaultQuantization = "q4_k_m"

// quantPattern compiles requested (e.g. "q4_k_m") into a case-insensitive
// regexp that matches filenames spelling the same quantization with either
// "-" or "_" as the component separator (e.g. "Q4_K_M", "q4-k-m").
func quantPattern(requested string) (*regexp.Regexp, error) {
	parts := strings.FieldsFunc(requested, func(r rune) bool { return r == '-' || r == '_' })
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = regexp.QuoteMeta(p)
	}
	pattern := "(?i)" + strings.Join(escaped, "[-_]")
	return regexp.Compile(pattern)
}

// matchQuantization returns the subset of files whose names match the
// requested quantization pattern.
func matchQuantization(files []RemoteFile, requested string) ([]RemoteFile, error) {
	re, err := quantPattern(requested)
	if err != nil {
		return nil, err
	}
	var out []RemoteFile
	for _, f := range files {
		if re.MatchString(f.Name) {
			out = append(out, f)
		}
	}
	return out, nil
}

func isGGUF(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".gguf")
}

func isSafetensors(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".safetensors")
}
