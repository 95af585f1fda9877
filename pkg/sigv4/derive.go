package sigv4

// DeriveSigningKey derives the per-request signing key from the account
// secret through the four chained HMAC stages mandated by SigV4:
//
//	kDate    = HMAC("AWS4"+secret, dateStamp)
//	kRegion  = HMAC(kDate, region)
//	kService = HMAC(kRegion, "s3")
//	kSigning = HMAC(kService, "aws4_request")
//
// dateStamp must be in ShortTimeFormat (YYYYMMDD). The stage order is
// mandatory; the result is valid for one date/region pair.
func DeriveSigningKey(secretKey, dateStamp, region string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, ServiceName)
	return hmacSHA256(kService, TerminationString)
}
