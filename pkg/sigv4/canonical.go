package sigv4

import (
	"net/url"
	"sort"
	"strings"
)

// Names that are always part of the signed-header list, independent of
// any caller-supplied additional headers.
var mandatoryHeaders = []string{"host", "x-amz-content-sha256", "x-amz-date"}

// EncodeQuery percent-encodes parameters into the canonical query
// string: keys sorted lexicographically, one k=v pair per parameter
// joined with '&', spaces encoded as %20. An empty map yields "".
func EncodeQuery(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	// url.Values.Encode sorts by key but emits '+' for space.
	return strings.ReplaceAll(values.Encode(), "+", "%20")
}

// canonicalHeaderBlock renders every header as "name:value\n" with the
// name lower-cased and both sides trimmed, sorted by name. Duplicate
// names cannot occur: the map type makes the last write win, which is
// the documented single-value header limitation.
func canonicalHeaderBlock(headers map[string]string) string {
	names := make([]string, 0, len(headers))
	byName := make(map[string]string, len(headers))
	for k, v := range headers {
		name := strings.ToLower(strings.TrimSpace(k))
		names = append(names, name)
		byName[name] = strings.TrimSpace(v)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(":")
		b.WriteString(byName[name])
		b.WriteString("\n")
	}
	return b.String()
}

// signedHeaderNames returns the sorted signed-header list: the three
// mandatory headers plus every additional header whose lower-cased name
// starts with "x-amz-". Other additional headers are transmitted but
// not cryptographically bound.
func signedHeaderNames(additional map[string]string) []string {
	names := make([]string, 0, len(mandatoryHeaders)+len(additional))
	names = append(names, mandatoryHeaders...)
	for k := range additional {
		name := strings.ToLower(strings.TrimSpace(k))
		if strings.HasPrefix(name, "x-amz-") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// amzHeaders extracts the x-amz-* subset of the additional headers with
// trimmed names, for inclusion in the canonical header block.
func amzHeaders(additional map[string]string) map[string]string {
	out := make(map[string]string)
	for k, v := range additional {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(k)), "x-amz-") {
			out[strings.TrimSpace(k)] = v
		}
	}
	return out
}

// buildCanonicalRequest assembles the normalized request string hashed
// into the string-to-sign. The header block carries its own trailing
// newline, so the extra separator below yields exactly one blank line
// between the header block and the signed-header list.
func buildCanonicalRequest(method, uriPath, query, headerBlock, signedHeaders, payloadHash string) string {
	return method + "\n" +
		uriPath + "\n" +
		query + "\n" +
		headerBlock + "\n" +
		signedHeaders + "\n" +
		payloadHash
}
