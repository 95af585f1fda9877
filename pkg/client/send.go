package client

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/mbattey58/s3rest/pkg/internal"
	"github.com/mbattey58/s3rest/pkg/s3"
	"github.com/mbattey58/s3rest/pkg/sigv4"
)

// SendOptions carries everything beyond the method for one exchange.
type SendOptions struct {
	Parameters map[string]string
	Headers    map[string]string

	// Payload is the in-memory request body. PayloadFile, when set,
	// streams the body from disk instead; its size is read from the
	// file at dispatch time and the payload cannot be signed.
	Payload     []byte
	PayloadFile string

	// SignPayload hashes the payload into x-amz-content-sha256 instead
	// of sending the UNSIGNED-PAYLOAD sentinel.
	SignPayload bool

	Bucket string
	Key    string

	// ContentFile, when set, receives the streamed response body
	// instead of buffering it in memory.
	ContentFile string

	// ProxyEndpoint substitutes the transport target while the request
	// stays signed against the configured endpoint.
	ProxyEndpoint string

	// ExitChan aborts the in-flight exchange when it yields true.
	ExitChan <-chan bool
}

// Response is one HTTP exchange result. Body is nil when the response
// was persisted to ContentFile.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Ok reports whether the status code is in the 2xx range. The engine
// never reinterprets a non-2xx response: the caller decides.
func (r *Response) Ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Send signs and dispatches one request. Signing happens exactly once,
// before any bytes are transferred; callers needing resilience re-sign
// and reissue the whole request.
func (c *Client) Send(method string, opt SendOptions) (*Response, error) {
	m, err := sigv4.ParseMethod(method)
	if err != nil {
		return nil, err
	}
	uriPath, err := objectPath(opt.Bucket, opt.Key)
	if err != nil {
		return nil, err
	}

	payloadHash := ""
	if opt.SignPayload {
		if opt.PayloadFile != "" {
			return nil, fmt.Errorf("%w: signing of file content not supported", s3.ErrUnsupportedOperation)
		}
		payloadHash = sigv4.HashSHA256(opt.Payload)
	}
	contentLength := len(opt.Payload)
	var body io.Reader = bytes.NewReader(opt.Payload)
	if opt.PayloadFile != "" {
		fd, oErr := os.Open(opt.PayloadFile)
		if oErr != nil {
			return nil, fmt.Errorf(" Send Open payloadFile: %s Error: %v", opt.PayloadFile, oErr)
		}
		defer fd.Close()
		stat, sErr := fd.Stat()
		if sErr != nil {
			return nil, fmt.Errorf(" Send Stat payloadFile: %s Error: %v", opt.PayloadFile, sErr)
		}
		contentLength = int(stat.Size())
		body = fd
	}

	snap := c.snapshot()
	addr, headers, err := sigv4.Sign(snap.conf, sigv4.Request{
		Method:        m,
		URIPath:       uriPath,
		Parameters:    opt.Parameters,
		Headers:       opt.Headers,
		PayloadHash:   payloadHash,
		PayloadLength: contentLength,
		ProxyEndpoint: opt.ProxyEndpoint,
	}, now())
	if err != nil {
		return nil, err
	}

	if opt.ContentFile != "" {
		return c.sendToFile(addr, string(m), headers, body, opt, snap)
	}

	dst := &bytes.Buffer{}
	header, err := internal.Do(addr, string(m), headers, body, dst, snap.chunkSize, c.log, opt.ExitChan)
	if err != nil {
		return nil, err
	}
	status, _ := strconv.Atoi(header.Get("StatusCode"))
	data := dst.Bytes()
	if c.filter != nil {
		data = c.filter(data, header)
	}
	c.logBody(header, data)
	return &Response{StatusCode: status, Header: header, Body: data}, nil
}

// sendToFile streams the response body straight to disk. On a non-2xx
// status the file holds the service error body instead of content, so
// it is removed and the body returned in memory.
func (c *Client) sendToFile(addr, method string, headers map[string]string, body io.Reader, opt SendOptions, snap *settings) (*Response, error) {
	file, err := os.Create(opt.ContentFile)
	if err != nil {
		return nil, fmt.Errorf(" Send Create contentFile: %s Error: %v", opt.ContentFile, err)
	}
	header, dErr := internal.Do(addr, method, headers, body, file, snap.chunkSize, c.log, opt.ExitChan)
	cErr := file.Close()
	if dErr != nil {
		os.Remove(opt.ContentFile)
		return nil, dErr
	}
	if cErr != nil {
		os.Remove(opt.ContentFile)
		return nil, cErr
	}
	status, _ := strconv.Atoi(header.Get("StatusCode"))
	if status >= 300 {
		data, _ := os.ReadFile(opt.ContentFile)
		os.Remove(opt.ContentFile)
		return &Response{StatusCode: status, Header: header, Body: data}, nil
	}
	return &Response{StatusCode: status, Header: header}, nil
}

// logBody renders the response body for diagnostics according to its
// content type: JSON and plain text as UTF-8, XML and HTML through the
// indenting tree printer, anything else truncated.
func (c *Client) logBody(header http.Header, data []byte) {
	if len(data) == 0 {
		return
	}
	contentType := header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "application/json"),
		strings.Contains(contentType, "text/plain"):
		c.log.Debug(string(data))
	case strings.Contains(contentType, "application/xml"),
		strings.Contains(contentType, "text/html"):
		text, err := XMLToText(data, 0, nil)
		if err != nil {
			c.log.Debug(string(data))
			return
		}
		c.log.Debug(text)
	default:
		if len(data) > 1024 {
			data = data[:1024]
		}
		c.log.Debug(string(data))
	}
}
