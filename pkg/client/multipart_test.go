package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mbattey58/s3rest/pkg/s3"
)

func testConfig(t *testing.T, ts *httptest.Server) *s3.Config {
	t.Helper()
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	port, _ := strconv.Atoi(u.Port())
	conf, err := s3.NewConfig("http", u.Hostname(), port, "AKIDEXAMPLE", "test-secret")
	if err != nil {
		t.Fatalf("build test config: %v", err)
	}
	return conf
}

func testClient(t *testing.T, ts *httptest.Server, opts ...Option) *Client {
	t.Helper()
	c, err := New(testConfig(t, ts), 0, opts...)
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	return c
}

// multipartServer fakes the three-step multipart exchange and records
// the completion body.
type multipartServer struct {
	mu           sync.Mutex
	completeBody string
	aborted      bool
}

func (m *multipartServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		switch {
		case r.Method == "POST" && query.Has("uploads"):
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<InitiateMultipartUploadResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Bucket>uv-bucket-1</Bucket><Key>key-3</Key><UploadId>upload-42</UploadId>
</InitiateMultipartUploadResult>`)
		case r.Method == "PUT" && query.Get("partNumber") != "" && r.Header.Get("x-amz-copy-source") != "":
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<CopyPartResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <ETag>"copy-etag-%s"</ETag>
  <LastModified>2023-01-01T00:00:00.000Z</LastModified>
</CopyPartResult>`, query.Get("partNumber"))
		case r.Method == "PUT" && query.Get("partNumber") != "":
			w.Header().Set("ETag", `"etag-`+query.Get("partNumber")+`"`)
			w.WriteHeader(http.StatusOK)
		case r.Method == "POST" && query.Get("uploadId") != "":
			body, _ := io.ReadAll(r.Body)
			m.mu.Lock()
			m.completeBody = string(body)
			m.mu.Unlock()
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<CompleteMultipartUploadResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Location>http://example/uv-bucket-1/key-3</Location>
  <Bucket>uv-bucket-1</Bucket><Key>key-3</Key><ETag>"final-etag"</ETag>
</CompleteMultipartUploadResult>`)
		case r.Method == "DELETE" && query.Get("uploadId") != "":
			m.mu.Lock()
			m.aborted = true
			m.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}
}

func TestMultipartSessionLifecycle(t *testing.T) {
	srv := &multipartServer{}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()
	c := testClient(t, ts)

	session, err := c.InitUpload("uv-bucket-1", "key-3", nil)
	if err != nil {
		t.Fatalf("InitUpload: %v", err)
	}
	if session.UploadID() != "upload-42" {
		t.Errorf("upload id = %q, want upload-42", session.UploadID())
	}

	// parts recorded in arbitrary order
	for _, n := range []int{2, 1, 3} {
		if err := session.UploadPart(n, []byte(strings.Repeat("x", 16))); err != nil {
			t.Fatalf("UploadPart %d: %v", n, err)
		}
	}

	result, err := session.Complete()
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if result.ETag != `"final-etag"` {
		t.Errorf("result etag = %q", result.ETag)
	}

	want := "<CompleteMultipartUpload>" +
		`<Part><ETag>"etag-1"</ETag><PartNumber>1</PartNumber></Part>` +
		`<Part><ETag>"etag-2"</ETag><PartNumber>2</PartNumber></Part>` +
		`<Part><ETag>"etag-3"</ETag><PartNumber>3</PartNumber></Part>` +
		"</CompleteMultipartUpload>"
	srv.mu.Lock()
	got := srv.completeBody
	srv.mu.Unlock()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("completion body mismatch (-want +got):\n%s", diff)
	}

	// a completed session is immutable
	if err := session.AddPart(4, `"etag-4"`); !errors.Is(err, s3.ErrValidation) {
		t.Errorf("AddPart after completion = %v, want ErrValidation", err)
	}
	if _, err := session.Complete(); !errors.Is(err, s3.ErrValidation) {
		t.Errorf("second Complete = %v, want ErrValidation", err)
	}
	if err := session.Abort(); !errors.Is(err, s3.ErrValidation) {
		t.Errorf("Abort after completion = %v, want ErrValidation", err)
	}
}

func TestMultipartFabricatedParts(t *testing.T) {
	srv := &multipartServer{}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()
	c := testClient(t, ts)

	session, err := c.InitUpload("uv-bucket-1", "key-3", nil)
	if err != nil {
		t.Fatalf("InitUpload: %v", err)
	}
	for _, p := range []s3.Part{{PartNumber: 2, ETag: "a"}, {PartNumber: 1, ETag: "b"}, {PartNumber: 3, ETag: "c"}} {
		if err := session.AddPart(p.PartNumber, p.ETag); err != nil {
			t.Fatalf("AddPart %d: %v", p.PartNumber, err)
		}
	}
	if _, err := session.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	srv.mu.Lock()
	body := srv.completeBody
	srv.mu.Unlock()
	if n := strings.Count(body, "<Part>"); n != 3 {
		t.Errorf("completion body has %d parts, want 3:\n%s", n, body)
	}
	for _, pair := range []string{
		"<Part><ETag>b</ETag><PartNumber>1</PartNumber></Part>",
		"<Part><ETag>a</ETag><PartNumber>2</PartNumber></Part>",
		"<Part><ETag>c</ETag><PartNumber>3</PartNumber></Part>",
	} {
		if !strings.Contains(body, pair) {
			t.Errorf("completion body missing %s:\n%s", pair, body)
		}
	}
}

func TestMultipartCopyPart(t *testing.T) {
	srv := &multipartServer{}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()
	c := testClient(t, ts)

	session, err := c.InitUpload("uv-bucket-1", "key-3", nil)
	if err != nil {
		t.Fatalf("InitUpload: %v", err)
	}
	if err := session.CopyPart(1, "/uv-bucket-1/key-1", "bytes=0-1023"); err != nil {
		t.Fatalf("CopyPart: %v", err)
	}
	parts := session.Parts()
	if len(parts) != 1 || parts[0].ETag != `"copy-etag-1"` {
		t.Errorf("parts = %+v, want copy-etag-1 recorded as part 1", parts)
	}
}

func TestMultipartPartValidation(t *testing.T) {
	srv := &multipartServer{}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()
	c := testClient(t, ts)

	session, err := c.InitUpload("uv-bucket-1", "key-3", nil)
	if err != nil {
		t.Fatalf("InitUpload: %v", err)
	}
	if err := session.AddPart(0, "x"); !errors.Is(err, s3.ErrValidation) {
		t.Errorf("part 0 error = %v, want ErrValidation", err)
	}
	if err := session.AddPart(1, "x"); err != nil {
		t.Fatalf("AddPart 1: %v", err)
	}
	if err := session.AddPart(1, "y"); !errors.Is(err, s3.ErrValidation) {
		t.Errorf("duplicate part error = %v, want ErrValidation", err)
	}
}

func TestMultipartAbort(t *testing.T) {
	srv := &multipartServer{}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()
	c := testClient(t, ts)

	session, err := c.InitUpload("uv-bucket-1", "key-3", nil)
	if err != nil {
		t.Fatalf("InitUpload: %v", err)
	}
	if err := session.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	srv.mu.Lock()
	aborted := srv.aborted
	srv.mu.Unlock()
	if !aborted {
		t.Errorf("server did not receive the abort request")
	}
	if err := session.AddPart(1, "x"); !errors.Is(err, s3.ErrValidation) {
		t.Errorf("AddPart after abort = %v, want ErrValidation", err)
	}
}

func TestMultipartAddPartDuringComplete(t *testing.T) {
	completeStarted := make(chan struct{})
	completeRelease := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		switch {
		case r.Method == "POST" && query.Has("uploads"):
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, `<InitiateMultipartUploadResult><Bucket>b</Bucket><Key>k</Key><UploadId>upload-42</UploadId></InitiateMultipartUploadResult>`)
		case r.Method == "POST" && query.Get("uploadId") != "":
			close(completeStarted)
			<-completeRelease
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, `<CompleteMultipartUploadResult><ETag>"final"</ETag></CompleteMultipartUploadResult>`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer ts.Close()
	c := testClient(t, ts)

	session, err := c.InitUpload("b", "k", nil)
	if err != nil {
		t.Fatalf("InitUpload: %v", err)
	}
	if err := session.AddPart(1, "a"); err != nil {
		t.Fatalf("AddPart 1: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, cErr := session.Complete()
		done <- cErr
	}()

	// the completion POST is in flight; the session must already
	// reject new parts
	<-completeStarted
	if err := session.AddPart(2, "b"); !errors.Is(err, s3.ErrValidation) {
		t.Errorf("AddPart during completion = %v, want ErrValidation", err)
	}
	close(completeRelease)
	if err := <-done; err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if parts := session.Parts(); len(parts) != 1 || parts[0].PartNumber != 1 {
		t.Errorf("parts = %+v, want only part 1", parts)
	}
}

func TestInitUploadMissingUploadID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<InitiateMultipartUploadResult><Bucket>b</Bucket><Key>k</Key></InitiateMultipartUploadResult>`)
	}))
	defer ts.Close()
	c := testClient(t, ts)

	if _, err := c.InitUpload("b", "k", nil); !errors.Is(err, s3.ErrProtocol) {
		t.Errorf("InitUpload without UploadId = %v, want ErrProtocol", err)
	}
}
