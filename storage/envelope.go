package storage

import (
	"encoding/json"
	"fmt"

	"github.com/jmcleod/adventkey/internal/util"
)

const (
	envelopeVersion = 1

	SchemeAESGCM    = "aes256gcm"
	SchemePlainJSON = "plain-json"
)

// Envelope is a stored record. Sealed envelopes carry AES-256-GCM ciphertext;
// plain-json envelopes carry the JSON document in Ciphertext as-is.
type Envelope struct {
	Ver        int    `json:"ver"`
	Scheme     string `json:"scheme"`
	Nonce      []byte `json:"nonce,omitempty"`
	Ciphertext []byte `json:"ciphertext"`
}

// SealRecord encrypts plaintext into an Envelope using the given record key and AAD.
func SealRecord(recordKey, plaintext, aad []byte) (*Envelope, error) {
	nonce, ciphertext, err := util.Seal(recordKey, plaintext, aad)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Ver:        envelopeVersion,
		Scheme:     SchemeAESGCM,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}

// OpenRecord decrypts an Envelope using the given record key and AAD.
func OpenRecord(recordKey []byte, envelope *Envelope, aad []byte) ([]byte, error) {
	if err := checkEnvelope(envelope, SchemeAESGCM); err != nil {
		return nil, err
	}
	return util.Open(recordKey, envelope.Nonce, envelope.Ciphertext, aad)
}

// MarshalPlain wraps v as a plain-json envelope.
func MarshalPlain(v any) (*Envelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Ver:        envelopeVersion,
		Scheme:     SchemePlainJSON,
		Ciphertext: data,
	}, nil
}

// UnmarshalPlain decodes a plain-json envelope into v.
func UnmarshalPlain(envelope *Envelope, v any) error {
	if err := checkEnvelope(envelope, SchemePlainJSON); err != nil {
		return err
	}
	return json.Unmarshal(envelope.Ciphertext, v)
}

func checkEnvelope(envelope *Envelope, scheme string) error {
	if envelope == nil {
		return fmt.Errorf("nil envelope")
	}
	if envelope.Ver != envelopeVersion {
		return fmt.Errorf("unsupported envelope version: %d", envelope.Ver)
	}
	if envelope.Scheme != scheme {
		return fmt.Errorf("unsupported envelope scheme: %s", envelope.Scheme)
	}
	return nil
}
