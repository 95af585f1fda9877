package sigv4

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/mbattey58/s3rest/pkg/s3"
)

// Method is the closed set of HTTP verbs the engine signs.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPut    Method = "PUT"
	MethodPost   Method = "POST"
	MethodDelete Method = "DELETE"
	MethodHead   Method = "HEAD"
)

// ParseMethod maps a verb string onto the closed Method set,
// case-insensitively. Anything else fails before network I/O.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(s)); m {
	case MethodGet, MethodPut, MethodPost, MethodDelete, MethodHead:
		return m, nil
	default:
		return "", fmt.Errorf("%w: invalid request method %q", s3.ErrUnsupportedOperation, s)
	}
}

// Request is the intent for one signing operation. It is constructed
// fresh per call and never reused: the signature embeds a timestamp.
type Request struct {
	Method     Method
	URIPath    string            // must start with "/"
	Parameters map[string]string // URI query parameters, order irrelevant
	Headers    map[string]string // additional headers; x-amz-* get signed
	// PayloadHash is the hex SHA-256 of the body, or UnsignedPayload.
	// Empty means UnsignedPayload.
	PayloadHash   string
	PayloadLength int
	// ProxyEndpoint, when set, substitutes the transport URL while the
	// signature is still computed against the real endpoint.
	ProxyEndpoint string
}

// Sign builds the canonical request for req, derives the signing key
// and returns the full request URL plus the header set including
// Authorization. Pure apart from the explicit now argument: two calls
// with equal inputs produce identical output.
func Sign(conf *s3.Config, req Request, now time.Time) (string, map[string]string, error) {
	if err := conf.Validate(); err != nil {
		return "", nil, err
	}
	m, err := ParseMethod(string(req.Method))
	if err != nil {
		return "", nil, err
	}
	req.Method = m
	uriPath := req.URIPath
	if uriPath == "" {
		uriPath = "/"
	}
	if !strings.HasPrefix(uriPath, "/") {
		return "", nil, fmt.Errorf("%w: uri path %q must start with /", s3.ErrValidation, req.URIPath)
	}
	payloadHash := req.PayloadHash
	if payloadHash == "" {
		payloadHash = UnsignedPayload
	}
	region := conf.Region
	if region == "" {
		region = DefaultRegion
	}

	utc := now.UTC()
	amzDate := utc.Format(TimeFormat)
	dateStamp := utc.Format(ShortTimeFormat)

	defaultHeaders := map[string]string{
		"host":                 conf.HostHeader(),
		"x-amz-content-sha256": payloadHash,
		"x-amz-date":           amzDate,
	}

	allHeaders := make(map[string]string, len(defaultHeaders)+len(req.Headers))
	for k, v := range defaultHeaders {
		allHeaders[k] = v
	}
	for k, v := range amzHeaders(req.Headers) {
		allHeaders[k] = v
	}

	headerBlock := canonicalHeaderBlock(allHeaders)
	signedHeaders := strings.Join(signedHeaderNames(req.Headers), ";")
	canonicalQuery := EncodeQuery(req.Parameters)

	canonicalRequest := buildCanonicalRequest(
		string(req.Method), uriPath, canonicalQuery,
		headerBlock, signedHeaders, payloadHash)

	credentialScope := dateStamp + "/" + region + "/" + ServiceName + "/" + TerminationString
	stringToSign := SigningAlgorithm + "\n" +
		amzDate + "\n" +
		credentialScope + "\n" +
		HashSHA256([]byte(canonicalRequest))

	signingKey := DeriveSigningKey(conf.SecretKey, dateStamp, region)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	authorization := SigningAlgorithm +
		" Credential=" + conf.AccessKey + "/" + credentialScope +
		", SignedHeaders=" + signedHeaders +
		", Signature=" + signature

	// All caller headers are sent, signed or not.
	headers := make(map[string]string, len(defaultHeaders)+len(req.Headers)+2)
	for k, v := range defaultHeaders {
		headers[k] = v
	}
	for k, v := range req.Headers {
		headers[k] = v
	}
	if req.PayloadLength > 0 {
		headers["Content-Length"] = fmt.Sprintf("%d", req.PayloadLength)
	}
	headers["Authorization"] = authorization

	endpoint := conf.Endpoint()
	if req.ProxyEndpoint != "" {
		endpoint = strings.TrimSuffix(req.ProxyEndpoint, "/")
	}
	requestURL := endpoint + uriPath
	if canonicalQuery != "" {
		requestURL += "?" + canonicalQuery
	}
	return requestURL, headers, nil
}
