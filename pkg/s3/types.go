package s3

import (
	"fmt"
	"sort"
)

// Error is the XML error body returned by S3-compatible services.
type Error struct {
	Code      string `xml:"Code"`
	Message   string `xml:"Message"`
	Resource  string `xml:"Resource"`
	RequestID string `xml:"RequestId"`
}

// InitUploadResult is the response to POST /bucket/key?uploads.
type InitUploadResult struct {
	Bucket   string `xml:"Bucket"`
	Key      string `xml:"Key"`
	UploadID string `xml:"UploadId"`
}

// CompleteUploadResult is the response to the finalizing POST of a
// multipart upload.
type CompleteUploadResult struct {
	Location string `xml:"Location"`
	Bucket   string `xml:"Bucket"`
	Key      string `xml:"Key"`
	ETag     string `xml:"ETag"`
}

// CopyPartResult is the response body of an upload-part-copy request.
type CopyPartResult struct {
	ETag         string `xml:"ETag"`
	LastModified string `xml:"LastModified"`
}

// Part is one uploaded part of a multipart session.
type Part struct {
	PartNumber int
	ETag       string
}

// BuildCompleteMultipartXML serializes the recorded parts into the
// CompleteMultipartUpload request body. Parts are emitted sorted by
// part number; the input slice is not modified.
func BuildCompleteMultipartXML(parts []Part) []byte {
	sorted := make([]Part, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	body := "<CompleteMultipartUpload>"
	for _, p := range sorted {
		body += fmt.Sprintf("<Part><ETag>%s</ETag><PartNumber>%d</PartNumber></Part>", p.ETag, p.PartNumber)
	}
	body += "</CompleteMultipartUpload>"
	return []byte(body)
}
