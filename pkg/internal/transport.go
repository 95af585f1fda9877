package internal

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultChunkSize is the streamed-response read granularity.
const DefaultChunkSize = 1 << 20

// http client shared by all requests
var httpClient *http.Client

func init() {
	var (
		connectTimeout = 60 * time.Second
		headerTimeout  = 600 * time.Second
		keepAlive      = 60 * time.Second
	)
	httpClient = &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: keepAlive,
			}).DialContext,
			MaxIdleConnsPerHost:   200,
			IdleConnTimeout:       keepAlive,
			ResponseHeaderTimeout: headerTimeout,
		},
	}
}

// Do issues one HTTP exchange. The request is already signed: headers
// carry Authorization and the Host value the signature was computed
// against, which may differ from the host in addr when a proxy is in
// use. The response body is consumed in chunkSize reads regardless of
// the server's transfer encoding and streamed into dst when non-nil.
// Closing exitChan with a true value cancels the in-flight exchange.
// The response status code is echoed into the returned header set
// under the StatusCode key.
func Do(addr, method string, headers map[string]string, body io.Reader, dst io.Writer, chunkSize int, log logrus.FieldLogger, exitChan <-chan bool) (http.Header, error) {
	var readTimeout = 600 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	if exitChan != nil {
		go func() {
			for {
				exit, ok := <-exitChan
				if !ok {
					break
				}
				if exit {
					cancel()
					break
				}
			}
		}()
	}
	req, err := http.NewRequest(method, addr, body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		if strings.EqualFold(k, "host") {
			// The Host header is controlled by req.Host, not the map;
			// it must stay the signing target even behind a proxy.
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}
	cl, _ := strconv.ParseInt(req.Header.Get("Content-Length"), 10, 64)
	if cl > 0 {
		req.ContentLength = cl
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	reqID := uuid.NewString()
	start := time.Now()
	log.WithFields(logrus.Fields{"request_id": reqID, "method": method, "url": addr}).Debug("sending request")

	resp, err := httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	chunked := false
	for _, te := range resp.TransferEncoding {
		if strings.EqualFold(te, "chunked") {
			chunked = true
		}
	}

	var received int64
	if dst != nil {
		buf := make([]byte, chunkSize)
		for {
			n, rErr := resp.Body.Read(buf)
			if n > 0 {
				if _, wErr := dst.Write(buf[:n]); wErr != nil {
					return nil, wErr
				}
				received += int64(n)
			}
			if rErr == io.EOF {
				break
			}
			if rErr != nil {
				return nil, rErr
			}
		}
	}

	log.WithFields(logrus.Fields{
		"request_id": reqID,
		"status":     resp.StatusCode,
		"chunked":    chunked,
		"bytes":      received,
		"elapsed":    time.Since(start).String(),
	}).Debug("request done")

	resp.Header.Set("StatusCode", fmt.Sprintf("%d", resp.StatusCode))
	return resp.Header, nil
}

// Header issues a header-only request, typically HEAD.
func Header(addr, method string, headers map[string]string, log logrus.FieldLogger) (http.Header, error) {
	return Do(addr, method, headers, strings.NewReader(""), nil, 0, log, nil)
}
