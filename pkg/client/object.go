package client

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/mbattey58/s3rest/pkg/internal"
	"github.com/mbattey58/s3rest/pkg/s3"
	"github.com/mbattey58/s3rest/pkg/sigv4"
)

// Put uploads an in-memory object body with the payload hash signed.
func (c *Client) Put(body []byte, bucket, key string, headers map[string]string) (*Response, error) {
	resp, err := c.Send("PUT", SendOptions{
		Payload:     body,
		SignPayload: true,
		Bucket:      bucket,
		Key:         key,
		Headers:     headers,
	})
	if err != nil {
		return nil, fmt.Errorf(" Put Object: %s Error: %v", key, err)
	}
	if !resp.Ok() {
		return nil, serviceError("Put", key, resp)
	}
	return resp, nil
}

// PutFile streams a local file as the object body. The content is not
// hashed: the UNSIGNED-PAYLOAD sentinel is signed instead and the
// length is taken from the file size.
func (c *Client) PutFile(filePath, bucket, key string, headers map[string]string) (*Response, error) {
	if key == "" {
		key = path.Base(filePath)
	}
	resp, err := c.Send("PUT", SendOptions{
		PayloadFile: filePath,
		Bucket:      bucket,
		Key:         key,
		Headers:     headers,
	})
	if err != nil {
		return nil, fmt.Errorf(" PutFile Object: %s Error: %v", key, err)
	}
	if !resp.Ok() {
		return nil, serviceError("PutFile", key, resp)
	}
	return resp, nil
}

// Append writes body at position within a Ceph appendable object and
// returns the position of the next append, which must equal the object
// size. The object is created by the first append at position 0.
func (c *Client) Append(body []byte, bucket, key string, position int64) (int64, error) {
	resp, err := c.Send("PUT", SendOptions{
		Parameters: map[string]string{
			"append":   "",
			"position": strconv.FormatInt(position, 10),
		},
		Payload:     body,
		SignPayload: true,
		Bucket:      bucket,
		Key:         key,
	})
	if err != nil {
		return position, fmt.Errorf(" Append Object: %s Error: %v", key, err)
	}
	if !resp.Ok() {
		return position, serviceError("Append", key, resp)
	}
	return position + int64(len(body)), nil
}

// Head fetches object metadata with a header-only exchange.
func (c *Client) Head(bucket, key string) (http.Header, error) {
	uriPath, err := objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	addr, signed, err := c.BuildRequest("HEAD", nil, sigv4.EmptyStringSHA256, 0, uriPath, nil, "")
	if err != nil {
		return nil, fmt.Errorf(" Head Object: %s Error: %v", key, err)
	}
	header, err := internal.Header(addr, "HEAD", signed, c.log)
	if err != nil {
		return nil, fmt.Errorf(" Head Object: %s Error: %v", key, err)
	}
	status, _ := strconv.Atoi(header.Get("StatusCode"))
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf(" Head Object: %s StatusCode: %d X-Amz-Request-Id: %s",
			key, status, header.Get("X-Amz-Request-Id"))
	}
	return header, nil
}

// Delete removes an object.
func (c *Client) Delete(bucket, key string) (http.Header, error) {
	resp, err := c.Send("DELETE", SendOptions{Bucket: bucket, Key: key, SignPayload: true})
	if err != nil {
		return nil, fmt.Errorf(" Delete Object: %s Error: %v", key, err)
	}
	return resp.Header, nil
}

// Cat streams the object body, or a byte range of it ("bytes=0-1023"),
// into dst. Both 200 and 206 are success.
func (c *Client) Cat(bucket, key, partRange string, dst io.Writer) (http.Header, error) {
	headers := map[string]string{}
	if partRange != "" {
		headers["Range"] = partRange
	}
	uriPath, err := objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	snap := c.snapshot()
	addr, signed, err := c.BuildRequest("GET", nil, "", 0, uriPath, headers, "")
	if err != nil {
		return nil, fmt.Errorf(" Cat Object: %s Error: %v", key, err)
	}
	header, err := internal.Do(addr, "GET", signed, strings.NewReader(""), dst, snap.chunkSize, c.log, nil)
	if err != nil {
		return nil, fmt.Errorf(" Cat Object: %s Error: %v", key, err)
	}
	status, _ := strconv.Atoi(header.Get("StatusCode"))
	if status != 200 && status != 206 {
		return nil, fmt.Errorf(" Cat Object: %s StatusCode: %d X-Amz-Request-Id: %s",
			key, status, header.Get("X-Amz-Request-Id"))
	}
	return header, nil
}

// Get downloads an object to a local file, fetching partSize byte
// ranges with up to threadNum parallel readers. Each range is written
// at its own offset, so parts may complete in any order.
func (c *Client) Get(bucket, key, localFile string, partSize, threadNum int) error {
	head, err := c.Head(bucket, key)
	if err != nil {
		return err
	}
	objectSize, convErr := strconv.Atoi(head.Get("Content-Length"))
	if convErr != nil {
		return fmt.Errorf(" Get Object: %s Error: %w: missing or malformed Content-Length %q",
			key, s3.ErrProtocol, head.Get("Content-Length"))
	}
	if localFile == "" {
		localFile = path.Base(key)
	}
	if partSize <= 0 {
		partSize = c.partMinSize
	}
	if threadNum < c.threadMinNum {
		threadNum = c.threadMinNum
	}
	if threadNum > c.threadMaxNum {
		threadNum = c.threadMaxNum
	}

	localDir := path.Dir(localFile)
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return fmt.Errorf(" Get MkdirAll LocalDir: %s Error: %v", localDir, err)
	}
	file, err := os.Create(localFile)
	if err != nil {
		return fmt.Errorf(" Get OpenFile localFile: %s Error: %v", localFile, err)
	}
	defer file.Close()

	total := (objectSize + partSize - 1) / partSize
	if total < threadNum {
		threadNum = total
	}
	var queueMaxSize = make(chan bool, threadNum)
	defer close(queueMaxSize)
	var mu sync.Mutex
	var partErr error
	var partExit bool
	var wg sync.WaitGroup
	for partNum := 0; partNum < total; partNum++ {
		mu.Lock()
		exit := partExit
		mu.Unlock()
		if exit {
			break
		}
		wg.Add(1)
		queueMaxSize <- true
		go func(partNum int) {
			defer func() {
				wg.Done()
				<-queueMaxSize
			}()
			tmpStart := partNum * partSize
			tmpEnd := (partNum+1)*partSize - 1
			if tmpEnd >= objectSize {
				tmpEnd = objectSize - 1
			}
			partRange := fmt.Sprintf("bytes=%d-%d", tmpStart, tmpEnd)
			var gErr error
			for i := 0; i < c.maxRetryNum; i++ {
				buf := newWriteAtBuffer(file, int64(tmpStart))
				if _, gErr = c.Cat(bucket, key, partRange, buf); gErr != nil {
					continue
				}
				break
			}
			if gErr != nil {
				mu.Lock()
				partErr = gErr
				partExit = true
				mu.Unlock()
			}
		}(partNum)
	}
	wg.Wait()
	return partErr
}

// writeAtBuffer adapts a WriterAt to the io.Writer the streamed read
// loop expects, advancing its own offset.
type writeAtBuffer struct {
	w   io.WriterAt
	off int64
}

func newWriteAtBuffer(w io.WriterAt, off int64) *writeAtBuffer {
	return &writeAtBuffer{w: w, off: off}
}

func (b *writeAtBuffer) Write(p []byte) (int, error) {
	n, err := b.w.WriteAt(p, b.off)
	b.off += int64(n)
	return n, err
}
