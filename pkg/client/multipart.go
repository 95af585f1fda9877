package client

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/mbattey58/s3rest/pkg/s3"
)

type sessionState int

const (
	stateInProgress sessionState = iota
	stateCompleting
	stateCompleted
	stateAborted
)

// MultipartSession tracks one multipart upload transaction. Created by
// InitUpload, fed one (partNumber, etag) pair per successful part PUT
// and consumed by Complete, after which it is immutable. Part uploads
// are not retried here: a failed part is reported and the caller
// decides whether to retry it or abort the session.
type MultipartSession struct {
	c      *Client
	bucket string
	key    string

	mu       sync.Mutex
	uploadID string
	parts    []s3.Part
	state    sessionState
}

// UploadID returns the transaction id assigned by the service.
func (s *MultipartSession) UploadID() string {
	return s.uploadID
}

// Parts returns a copy of the recorded parts.
func (s *MultipartSession) Parts() []s3.Part {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]s3.Part, len(s.parts))
	copy(out, s.parts)
	return out
}

// InitUpload starts a multipart transaction: POST /bucket/key?uploads
// with an empty body. The session transitions to in-progress only on a
// 200 response carrying an UploadId.
func (c *Client) InitUpload(bucket, key string, headers map[string]string) (*MultipartSession, error) {
	resp, err := c.Send("POST", SendOptions{
		Parameters:  map[string]string{"uploads": ""},
		Headers:     headers,
		Bucket:      bucket,
		Key:         key,
		SignPayload: true,
	})
	if err != nil {
		return nil, fmt.Errorf(" InitUpload Object: %s Error: %v", key, err)
	}
	if !resp.Ok() {
		return nil, serviceError("InitUpload", key, resp)
	}
	uploadID, err := ExtractUploadID(resp.Body)
	if err != nil {
		return nil, fmt.Errorf(" InitUpload Object: %s Error: %w", key, err)
	}
	return &MultipartSession{c: c, bucket: bucket, key: key, uploadID: uploadID}, nil
}

// AddPart records the ETag of a part uploaded out of band. Part
// numbers must be unique and >= 1; any order is accepted. Fails once
// the session has been completed or aborted.
func (s *MultipartSession) AddPart(partNumber int, etag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateInProgress {
		return fmt.Errorf("%w: upload %s is no longer in progress", s3.ErrValidation, s.uploadID)
	}
	if partNumber < 1 {
		return fmt.Errorf("%w: part number %d must be >= 1", s3.ErrValidation, partNumber)
	}
	for _, p := range s.parts {
		if p.PartNumber == partNumber {
			return fmt.Errorf("%w: duplicate part number %d", s3.ErrValidation, partNumber)
		}
	}
	s.parts = append(s.parts, s3.Part{PartNumber: partNumber, ETag: etag})
	return nil
}

// UploadPart sends one part body and records its ETag on success.
func (s *MultipartSession) UploadPart(partNumber int, body []byte) error {
	resp, err := s.c.Send("PUT", SendOptions{
		Parameters: map[string]string{
			"partNumber": strconv.Itoa(partNumber),
			"uploadId":   s.uploadID,
		},
		Payload:     body,
		SignPayload: true,
		Bucket:      s.bucket,
		Key:         s.key,
	})
	if err != nil {
		return fmt.Errorf(" UploadPart Object: %s Part: %d Error: %v", s.key, partNumber, err)
	}
	if !resp.Ok() {
		return serviceError("UploadPart", s.key, resp)
	}
	etag, err := ExtractETag(resp.Header)
	if err != nil {
		return fmt.Errorf(" UploadPart Object: %s Part: %d Error: %w", s.key, partNumber, err)
	}
	return s.AddPart(partNumber, etag)
}

// CopyPart copies an existing object, or a byte range of it, in as one
// part. source names it as "/bucket/key"; copyRange is an optional
// "bytes=first-last" selector.
func (s *MultipartSession) CopyPart(partNumber int, source, copyRange string) error {
	headers := map[string]string{"x-amz-copy-source": source}
	if copyRange != "" {
		headers["x-amz-copy-source-range"] = copyRange
	}
	resp, err := s.c.Send("PUT", SendOptions{
		Parameters: map[string]string{
			"partNumber": strconv.Itoa(partNumber),
			"uploadId":   s.uploadID,
		},
		Headers:     headers,
		SignPayload: true,
		Bucket:      s.bucket,
		Key:         s.key,
	})
	if err != nil {
		return fmt.Errorf(" CopyPart Object: %s Part: %d Error: %v", s.key, partNumber, err)
	}
	if !resp.Ok() {
		return serviceError("CopyPart", s.key, resp)
	}
	result := &s3.CopyPartResult{}
	if err := unmarshalXML(resp.Body, result); err != nil {
		return fmt.Errorf(" CopyPart Object: %s Part: %d Error: %w", s.key, partNumber, err)
	}
	if result.ETag == "" {
		return fmt.Errorf(" CopyPart Object: %s Part: %d Error: %w: response has no ETag", s.key, partNumber, s3.ErrProtocol)
	}
	return s.AddPart(partNumber, result.ETag)
}

// Complete finalizes the transaction: POST /bucket/key?uploadId=ID
// with the part list XML. The session stops accepting parts the moment
// the completion POST is prepared, so a concurrent AddPart can never
// slip in behind the serialized body; a failed completion reopens it.
// On success the session becomes immutable and the upload id invalid
// for further part uploads.
func (s *MultipartSession) Complete() (*s3.CompleteUploadResult, error) {
	s.mu.Lock()
	if s.state != stateInProgress {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: upload %s is no longer in progress", s3.ErrValidation, s.uploadID)
	}
	s.state = stateCompleting
	body := s3.BuildCompleteMultipartXML(s.parts)
	s.mu.Unlock()

	resp, err := s.c.Send("POST", SendOptions{
		Parameters:  map[string]string{"uploadId": s.uploadID},
		Payload:     body,
		SignPayload: true,
		Bucket:      s.bucket,
		Key:         s.key,
	})
	if err != nil {
		s.reopen()
		return nil, fmt.Errorf(" CompleteUpload Object: %s Error: %v", s.key, err)
	}
	if !resp.Ok() {
		s.reopen()
		return nil, serviceError("CompleteUpload", s.key, resp)
	}
	result := &s3.CompleteUploadResult{}
	if err := unmarshalXML(resp.Body, result); err != nil {
		s.reopen()
		return nil, fmt.Errorf(" CompleteUpload Object: %s Error: %v", s.key, err)
	}
	s.mu.Lock()
	s.state = stateCompleted
	s.mu.Unlock()
	return result, nil
}

// reopen puts a session whose completion failed back in progress.
func (s *MultipartSession) reopen() {
	s.mu.Lock()
	if s.state == stateCompleting {
		s.state = stateInProgress
	}
	s.mu.Unlock()
}

// Abort cancels the transaction: DELETE /bucket/key?uploadId=ID. The
// service discards any parts already uploaded.
func (s *MultipartSession) Abort() error {
	s.mu.Lock()
	if s.state != stateInProgress {
		s.mu.Unlock()
		return fmt.Errorf("%w: upload %s is no longer in progress", s3.ErrValidation, s.uploadID)
	}
	s.mu.Unlock()

	resp, err := s.c.Send("DELETE", SendOptions{
		Parameters:  map[string]string{"uploadId": s.uploadID},
		SignPayload: true,
		Bucket:      s.bucket,
		Key:         s.key,
	})
	if err != nil {
		return fmt.Errorf(" AbortUpload Object: %s Error: %v", s.key, err)
	}
	if !resp.Ok() && resp.StatusCode != 404 {
		return serviceError("AbortUpload", s.key, resp)
	}
	s.mu.Lock()
	s.state = stateAborted
	s.mu.Unlock()
	return nil
}

// UploadLargeFile uploads a local file in parts, partSize bytes each,
// with up to threadNum concurrent part uploads and per-part retries,
// then completes the session.
func (c *Client) UploadLargeFile(filePath, bucket, key string, partSize, threadNum int) (*s3.CompleteUploadResult, error) {
	fd, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf(" UploadLargeFile Open localFile: %s Error: %v", filePath, err)
	}
	defer fd.Close()
	stat, err := fd.Stat()
	if err != nil {
		return nil, fmt.Errorf(" UploadLargeFile Stat localFile: %s Error: %v", filePath, err)
	}
	if partSize < c.partMinSize {
		partSize = c.partMinSize
	}
	if partSize > c.partMaxSize {
		partSize = c.partMaxSize
	}
	fileSize := int(stat.Size())
	total := (fileSize + partSize - 1) / partSize
	if threadNum < c.threadMinNum {
		threadNum = c.threadMinNum
	}
	if threadNum > c.threadMaxNum {
		threadNum = c.threadMaxNum
	}
	if total < threadNum {
		threadNum = total
	}

	session, err := c.InitUpload(bucket, key, nil)
	if err != nil {
		return nil, err
	}

	var queueMaxSize = make(chan bool, threadNum)
	defer close(queueMaxSize)
	var mu sync.Mutex
	var partErr error
	var uploadExit bool
	var wg sync.WaitGroup
	for partNum := 0; partNum < total; partNum++ {
		mu.Lock()
		exit := uploadExit
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
			offset := partNum * partSize
			num := partSize
			if fileSize-offset < num {
				num = fileSize - offset
			}
			var upErr error
			for i := 0; i < c.maxRetryNum; i++ {
				partReader := io.NewSectionReader(fd, int64(offset), int64(num))
				body := make([]byte, num)
				if _, rErr := io.ReadFull(partReader, body); rErr != nil {
					upErr = rErr
					continue
				}
				if upErr = session.UploadPart(partNum+1, body); upErr != nil {
					continue
				}
				break
			}
			if upErr != nil {
				mu.Lock()
				partErr = upErr
				uploadExit = true
				mu.Unlock()
			}
		}(partNum)
	}
	wg.Wait()
	if partErr != nil {
		return nil, partErr
	}
	return session.Complete()
}
