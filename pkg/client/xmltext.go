package client

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/mbattey58/s3rest/pkg/s3"
)

// TagFilter reports whether a tag should appear in XMLToText output.
type TagFilter func(tag string) bool

type xmlNode struct {
	tag      string
	text     string
	children []*xmlNode
}

// parseXMLTree builds a generic element tree. Namespace prefixes are
// already stripped by the decoder: only the local tag name is kept.
func parseXMLTree(doc []byte) (*xmlNode, error) {
	decoder := xml.NewDecoder(bytes.NewReader(doc))
	root := &xmlNode{}
	stack := []*xmlNode{root}
	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := token.(type) {
		case xml.StartElement:
			node := &xmlNode{tag: t.Name.Local}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, node)
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 1 {
				stack[len(stack)-1].text += string(t)
			}
		}
	}
	if len(root.children) == 0 {
		return nil, fmt.Errorf("%w: empty or malformed xml document", s3.ErrProtocol)
	}
	return root.children[0], nil
}

// XMLToText renders an XML document as one indented "tag: text" line
// per element. Traversal uses an explicit worklist, so document depth
// is unbounded. A nil filter prints every tag.
func XMLToText(doc []byte, indentLevel int, filter TagFilter) (string, error) {
	root, err := parseXMLTree(doc)
	if err != nil {
		return "", err
	}
	const blanks = 2
	type item struct {
		node  *xmlNode
		level int
	}
	var b strings.Builder
	stack := []item{{root, indentLevel}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if filter == nil || filter(it.node.tag) {
			b.WriteString(strings.Repeat(" ", it.level*blanks))
			b.WriteString(it.node.tag)
			b.WriteString(": ")
			b.WriteString(strings.TrimSpace(it.node.text))
			b.WriteString("\n")
		}
		// push in reverse so children print in document order
		for i := len(it.node.children) - 1; i >= 0; i-- {
			stack = append(stack, item{it.node.children[i], it.level + 1})
		}
	}
	return b.String(), nil
}

// ExtractUploadID pulls the UploadId element out of an initiate
// multipart upload response. A missing id means the service answered
// without the expected field.
func ExtractUploadID(doc []byte) (string, error) {
	result := &s3.InitUploadResult{}
	if err := xml.Unmarshal(doc, result); err != nil {
		return "", fmt.Errorf("%w: %v", s3.ErrProtocol, err)
	}
	if result.UploadID == "" {
		return "", fmt.Errorf("%w: response has no UploadId", s3.ErrProtocol)
	}
	return result.UploadID, nil
}

// ExtractETag reads the ETag response header of a part upload.
func ExtractETag(header http.Header) (string, error) {
	etag := header.Get("ETag")
	if etag == "" {
		return "", fmt.Errorf("%w: response has no ETag header", s3.ErrProtocol)
	}
	return etag, nil
}

func unmarshalXML(doc []byte, v interface{}) error {
	if err := xml.Unmarshal(doc, v); err != nil {
		return fmt.Errorf("%w: %v", s3.ErrProtocol, err)
	}
	return nil
}

// serviceError formats a non-2xx service response the way every
// operation reports it, decoding the XML error body when present.
func serviceError(op, object string, resp *Response) error {
	errorMsg := &s3.Error{}
	_ = xml.Unmarshal(resp.Body, errorMsg)
	return fmt.Errorf(" %s Object: %s StatusCode: %d X-Amz-Request-Id: %s Code: %s Message: %s",
		op, object, resp.StatusCode, resp.Header.Get("X-Amz-Request-Id"), errorMsg.Code, errorMsg.Message)
}
