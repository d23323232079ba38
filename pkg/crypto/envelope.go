package crypto

import (
	"encoding/base64"

	"github.com/pkg/errors"
)

// gcmTagSize is the authentication tag length carried in GCM envelopes.
const gcmTagSize = 16

// Envelope is the decoded form of an encrypted value. The text form is
//
//	base64(IV || ciphertext)         CBC ciphers
//	base64(IV || tag || ciphertext)  authenticated ciphers
//
// IV and tag are fixed length for the algorithm; the ciphertext takes the remainder.
type Envelope struct {
	Algorithm  CipherAlgorithm
	IV         []byte
	Tag        []byte
	Ciphertext []byte
}

// Bytes lays the envelope fields out in wire order
func (e Envelope) Bytes() []byte {
	out := make([]byte, 0, len(e.IV)+len(e.Tag)+len(e.Ciphertext))
	out = append(out, e.IV...)
	if e.Algorithm.Authenticated() {
		out = append(out, e.Tag...)
	}
	return append(out, e.Ciphertext...)
}

// Encode returns the base64 text form of the envelope
func (e Envelope) Encode() string {
	return base64.StdEncoding.EncodeToString(e.Bytes())
}

// ParseEnvelope decodes the text form produced by Encode for alg
func ParseEnvelope(s string, alg CipherAlgorithm) (Envelope, error) {
	spec, err := alg.spec()
	if err != nil {
		return Envelope{}, err
	}

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Envelope{}, errors.Wrap(ErrMalformedEnvelope, "invalid base64")
	}

	header := spec.ivSize
	if spec.authenticated {
		header += gcmTagSize
	}
	if len(raw) < header {
		return Envelope{}, errors.Wrapf(ErrMalformedEnvelope, "%d bytes is shorter than the %d byte header", len(raw), header)
	}

	env := Envelope{
		Algorithm:  alg,
		IV:         raw[:spec.ivSize],
		Ciphertext: raw[header:],
	}
	if spec.authenticated {
		env.Tag = raw[spec.ivSize:header]
	}
	return env, nil
}
