package vapid

import (
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// SignatureSize is the JOSE (r||s) size of an ES256 signature.
const SignatureSize = 2 * coordinateSize

// NormalizeSignature converts an ECDSA P-256 signature into the fixed 64 byte
// r||s form required by JWS. A 64 byte input is assumed to already be r||s and
// is returned as a copy; anything else must be an ASN.1 DER
// SEQUENCE { INTEGER r, INTEGER s }.
func NormalizeSignature(sig []byte) ([]byte, error) {
	if len(sig) == SignatureSize {
		out := make([]byte, SignatureSize)
		copy(out, sig)
		return out, nil
	}

	input := cryptobyte.String(sig)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, asn1.SEQUENCE) {
		return nil, &SignatureFormatError{Reason: "expected DER SEQUENCE", Length: len(sig)}
	}
	if !input.Empty() {
		return nil, &SignatureFormatError{Reason: "trailing bytes after SEQUENCE", Length: len(sig)}
	}

	var r, s cryptobyte.String
	if !seq.ReadASN1(&r, asn1.INTEGER) {
		return nil, &SignatureFormatError{Reason: "expected INTEGER r", Length: len(sig)}
	}
	if !seq.ReadASN1(&s, asn1.INTEGER) {
		return nil, &SignatureFormatError{Reason: "expected INTEGER s", Length: len(sig)}
	}
	if !seq.Empty() {
		return nil, &SignatureFormatError{Reason: "trailing bytes inside SEQUENCE", Length: len(sig)}
	}

	out := make([]byte, SignatureSize)
	if !putScalar(out[:coordinateSize], r) {
		return nil, &SignatureFormatError{Reason: "r does not fit in 32 bytes", Length: len(sig)}
	}
	if !putScalar(out[coordinateSize:], s) {
		return nil, &SignatureFormatError{Reason: "s does not fit in 32 bytes", Length: len(sig)}
	}
	return out, nil
}

// putScalar strips the DER sign padding and right-aligns v into dst.
func putScalar(dst []byte, v []byte) bool {
	for len(v) > 0 && v[0] == 0x00 {
		v = v[1:]
	}
	if len(v) > len(dst) {
		return false
	}
	copy(dst[len(dst)-len(v):], v)
	return true
}
