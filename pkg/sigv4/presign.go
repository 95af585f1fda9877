package sigv4

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/mbattey58/s3rest/pkg/s3"
)

// Expiry is the validity window of a pre-signed URL.
type Expiry struct {
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// TotalSeconds converts the window into the decimal seconds value
// carried by X-Amz-Expires.
func (e Expiry) TotalSeconds() int {
	return e.Days*86400 + e.Hours*3600 + e.Minutes*60 + e.Seconds
}

// PresignURL generates a time-limited URL carrying its own signature in
// the query string. The signing material lives entirely in query
// parameters, only the host header is signed and the payload hash is
// always the UNSIGNED-PAYLOAD sentinel. Caller parameters are merged
// flat with the signing parameters and encoded together. The URL is
// everything an unauthenticated client must present, verbatim, before
// expiry.
func PresignURL(conf *s3.Config, method Method, bucket, key string, expiry Expiry, params map[string]string, now time.Time) (string, error) {
	if err := conf.Validate(); err != nil {
		return "", err
	}
	m, err := ParseMethod(string(method))
	if err != nil {
		return "", err
	}
	method = m
	if key != "" && bucket == "" {
		return "", fmt.Errorf("%w: key without bucket not supported", s3.ErrValidation)
	}
	region := conf.Region
	if region == "" {
		region = DefaultRegion
	}

	utc := now.UTC()
	amzDate := utc.Format(TimeFormat)
	dateStamp := utc.Format(ShortTimeFormat)
	credentialScope := dateStamp + "/" + region + "/" + ServiceName + "/" + TerminationString

	resource := "/"
	if bucket != "" {
		resource += bucket
		if key != "" {
			resource += "/" + key
		}
	}

	// Signing parameters and caller parameters share one flat map and
	// are sorted and encoded together.
	parameters := map[string]string{
		AmzAlgorithmKey:     SigningAlgorithm,
		AmzCredentialKey:    conf.AccessKey + "/" + credentialScope,
		AmzDateKey:          amzDate,
		AmzExpiresKey:       strconv.Itoa(expiry.TotalSeconds()),
		AmzSignedHeadersKey: "host",
	}
	for k, v := range params {
		parameters[k] = v
	}
	canonicalQuery := EncodeQuery(parameters)

	headerBlock := "host:" + conf.HostHeader() + "\n"
	canonicalRequest := buildCanonicalRequest(
		string(method), resource, canonicalQuery,
		headerBlock, "host", UnsignedPayload)

	stringToSign := SigningAlgorithm + "\n" +
		amzDate + "\n" +
		credentialScope + "\n" +
		HashSHA256([]byte(canonicalRequest))

	signingKey := DeriveSigningKey(conf.SecretKey, dateStamp, region)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	return conf.Endpoint() + resource +
		"?" + canonicalQuery +
		"&" + AmzSignatureKey + "=" + signature, nil
}
