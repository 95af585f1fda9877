package sigv4

import (
	"net/url"
	"strings"
	"testing"
)

func TestEncodeQuerySortedAndEscaped(t *testing.T) {
	got := EncodeQuery(map[string]string{
		"prefix":     "my folder/",
		"max-keys":   "10",
		"key-marker": "a&b",
	})
	want := "key-marker=a%26b&max-keys=10&prefix=my%20folder%2F"
	if got != want {
		t.Errorf("EncodeQuery = %q, want %q", got, want)
	}
}

func TestEncodeQueryEmpty(t *testing.T) {
	if got := EncodeQuery(nil); got != "" {
		t.Errorf("EncodeQuery(nil) = %q, want empty", got)
	}
}

func TestEncodeQueryIdempotent(t *testing.T) {
	params := map[string]string{
		"append":   "",
		"position": "92160000",
		"filter":   "a b+c",
	}
	encoded := EncodeQuery(params)
	decoded, err := url.ParseQuery(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	roundTrip := make(map[string]string, len(decoded))
	for k := range decoded {
		roundTrip[k] = decoded.Get(k)
	}
	if again := EncodeQuery(roundTrip); again != encoded {
		t.Errorf("re-encode = %q, want %q", again, encoded)
	}
}

func TestCanonicalHeaderBlockOrdering(t *testing.T) {
	block := canonicalHeaderBlock(map[string]string{
		"X-Amz-Date":           "20230101T000000Z",
		"host":                 "localhost:8000",
		" x-amz-acl ":          " private ",
		"X-Amz-Content-SHA256": UnsignedPayload,
	})
	want := "host:localhost:8000\n" +
		"x-amz-acl:private\n" +
		"x-amz-content-sha256:" + UnsignedPayload + "\n" +
		"x-amz-date:20230101T000000Z\n"
	if block != want {
		t.Errorf("canonical header block:\n%q\nwant:\n%q", block, want)
	}
}

func TestSignedHeaderNames(t *testing.T) {
	names := signedHeaderNames(map[string]string{
		"Content-Type":      "text/plain",
		"X-Amz-Meta-Tag":    "v",
		"x-amz-copy-source": "/b/k",
	})
	want := "host;x-amz-content-sha256;x-amz-copy-source;x-amz-date;x-amz-meta-tag"
	if got := strings.Join(names, ";"); got != want {
		t.Errorf("signed headers = %q, want %q", got, want)
	}
}

func TestCanonicalRequestBlankLine(t *testing.T) {
	block := canonicalHeaderBlock(map[string]string{"host": "h"})
	cr := buildCanonicalRequest("GET", "/", "", block, "host", UnsignedPayload)
	want := "GET\n/\n\nhost:h\n\nhost\n" + UnsignedPayload
	if cr != want {
		t.Errorf("canonical request:\n%q\nwant:\n%q", cr, want)
	}
}
