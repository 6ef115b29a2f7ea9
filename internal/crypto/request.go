package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Request authentication headers.
const (
	HeaderAddress   = "X-Curve-Address"
	HeaderTimestamp = "X-Curve-Timestamp"
	HeaderSignature = "X-Curve-Signature"
)

// RequestMessage is the text a caller signs for one API request:
// timestamp + method + path + hex(sha256(body)).
func RequestMessage(timestamp, method, path string, body []byte) []byte {
	sum := sha256.Sum256(body)
	return []byte(timestamp + method + path + hex.EncodeToString(sum[:]))
}

// RequestHeaders signs a request at the current time.
func (s *Signer) RequestHeaders(method, path string, body []byte) (map[string]string, error) {
	return s.RequestHeadersAt(method, path, body, time.Now().Unix())
}

// RequestHeadersAt is like RequestHeaders but lets the caller supply the
// Unix timestamp.
func (s *Signer) RequestHeadersAt(method, path string, body []byte, unixTS int64) (map[string]string, error) {
	ts := strconv.FormatInt(unixTS, 10)
	sig, err := s.SignMessage(RequestMessage(ts, method, path, body))
	if err != nil {
		return nil, err
	}
	return map[string]string{
		HeaderAddress:   s.address.Hex(),
		HeaderTimestamp: ts,
		HeaderSignature: sig,
	}, nil
}
