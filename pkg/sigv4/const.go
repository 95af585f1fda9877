package sigv4

// Signature Version 4 protocol constants.
const (
	// SigningAlgorithm identifies the SigV4 signing scheme.
	SigningAlgorithm = "AWS4-HMAC-SHA256"

	// UnsignedPayload marks a request whose body hash is not computed
	// up front. The sentinel participates verbatim in the canonical
	// request and string-to-sign.
	UnsignedPayload = "UNSIGNED-PAYLOAD"

	// EmptyStringSHA256 is the hex SHA-256 of the empty string, used as
	// x-amz-content-sha256 for requests with no body.
	EmptyStringSHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	// ServiceName is fixed: this engine only signs S3-compatible calls.
	ServiceName = "s3"

	// DefaultRegion works with Ceph RGW and most S3-compatible stores.
	DefaultRegion = "us-east-1"

	// TerminationString closes every credential scope.
	TerminationString = "aws4_request"

	// TimeFormat is the x-amz-date timestamp layout (ISO8601 basic).
	TimeFormat = "20060102T150405Z"

	// ShortTimeFormat is the credential-scope date layout.
	ShortTimeFormat = "20060102"
)

// Pre-signed URL query parameter names.
const (
	AmzAlgorithmKey     = "X-Amz-Algorithm"
	AmzCredentialKey    = "X-Amz-Credential"
	AmzDateKey          = "X-Amz-Date"
	AmzExpiresKey       = "X-Amz-Expires"
	AmzSignedHeadersKey = "X-Amz-SignedHeaders"
	AmzSignatureKey     = "X-Amz-Signature"
)
