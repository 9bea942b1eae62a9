package core

import "strings"

// delimiters enclose names in model output.  They do not nest and
// cannot be escaped.
const delimiters = "`\""

// ExtractDelimitedNames returns the non-empty substrings of txt that
// are enclosed in a pair of backticks or a pair of double quotes,
// without the delimiters, deduplicated in order of first occurrence.
//
// The scan goes left to right.  At an opening delimiter it looks for
// the next delimiter of the same kind; if there is one, the span
// between them is a match and scanning resumes after the closing
// delimiter.  If there is none, the opening delimiter is ignored.
func ExtractDelimitedNames(txt string) (names []string) {
	names = []string{}
	seen := make(map[string]bool)
	for i := 0; i < len(txt); i++ {
		delim := txt[i]
		if strings.IndexByte(delimiters, delim) < 0 {
			continue
		}
		end := strings.IndexByte(txt[i+1:], delim)
		if end < 0 {
			// unpaired
			continue
		}
		name := txt[i+1 : i+1+end]
		i += end + 1
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return
}
