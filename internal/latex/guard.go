package latex

import (
	"regexp"
	"strings"
)

// maxIncludes bounds \input/\include use to avoid pathological recursion.
const maxIncludes = 32

var (
	forbiddenPrimitives = []struct {
		name string
		re   *regexp.Regexp
	}{
		{`\write18`, regexp.MustCompile(`\\write18`)},
		{`\immediate\write`, regexp.MustCompile(`\\immediate\s*\\write`)},
		{`\openout`, regexp.MustCompile(`\\openout`)},
		{`\openin`, regexp.MustCompile(`\\openin`)},
		{`\read`, regexp.MustCompile(`\\read(?:[^a-z]|$)`)},
		{`\directlua`, regexp.MustCompile(`\\directlua`)},
	}
	forbiddenPackages = []string{"shellesc", "write18", "catchfile", "verbatiminput", "bashful"}
	usepackageRe      = regexp.MustCompile(`\\usepackage\s*(?:\[[^\]]*\])?\s*\{([^}]*)\}`)
	includeRe         = regexp.MustCompile(`\\(?:input|include)\s*\{([^}]*)\}`)
)

// ValidateSource rejects documents that try to run commands or touch files
// outside the build directory. It is applied to untrusted input only.
func ValidateSource(doc string) error {
	if strings.TrimSpace(doc) == "" {
		return &UnsafeSourceError{Construct: "empty input"}
	}
	lower := strings.ToLower(doc)

	for _, p := range forbiddenPrimitives {
		if p.re.MatchString(lower) {
			return &UnsafeSourceError{Construct: p.name}
		}
	}

	for _, m := range usepackageRe.FindAllStringSubmatch(lower, -1) {
		for _, pkg := range strings.Split(m[1], ",") {
			pkg = strings.TrimSpace(pkg)
			for _, bad := range forbiddenPackages {
				if pkg == bad {
					return &UnsafeSourceError{Construct: `\usepackage{` + bad + `}`}
				}
			}
		}
	}

	includes := includeRe.FindAllStringSubmatch(lower, -1)
	for _, m := range includes {
		arg := strings.TrimSpace(m[1])
		if strings.HasPrefix(arg, "/") || strings.Contains(arg, "://") || strings.Contains(arg, "..") || strings.HasPrefix(arg, "~") {
			return &UnsafeSourceError{Construct: `\input{` + arg + `}`}
		}
	}
	if len(includes) > maxIncludes {
		return &UnsafeSourceError{Construct: "too many includes"}
	}
	return nil
}
