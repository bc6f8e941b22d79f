// Package crypto implements the hashing, key generation, signing and
// verification primitives the rest of the core builds on. Addresses are
// derived from public keys, and every record hashed for proof-of-work or
// on-disk storage goes through Hash.
//
// The original system signs with RSA (a fixed 256-byte modulus and a
// 3-byte public exponent e travel alongside every transaction) and hashes
// with SHA-256; we keep both choices rather than substituting a
// secp256k1/ECDSA stack, since that would silently change what a
// signature over a transaction actually proves.
package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"math/big"

	"github.com/pkg/errors"

	"github.com/daglabs/ledgerd/ledgererr"
)

const (
	// HashSize is the length in bytes of the hash used throughout the
	// core: addresses, block hashes, and transaction header hashes.
	HashSize = 32

	// PublicKeySize is the length in bytes of a serialized RSA modulus
	// (2048 bits).
	PublicKeySize = 256

	// ExponentSize is the length in bytes the public exponent e is
	// serialized to alongside a signature.
	ExponentSize = 3

	// SignatureSize is the length in bytes of a signature, equal to the
	// modulus size for RSASSA-PKCS1-v1_5 over a 2048 bit key.
	SignatureSize = PublicKeySize

	rsaBits = PublicKeySize * 8
)

// Hash is a 32-byte opaque digest.
type Hash [HashSize]byte

// PublicKey is the raw big-endian modulus bytes of an RSA public key.
type PublicKey [PublicKeySize]byte

// Exponent is the raw big-endian bytes of an RSA public exponent.
type Exponent [ExponentSize]byte

// Signature is a raw RSASSA-PKCS1-v1_5 signature.
type Signature [SignatureSize]byte

// PrivateKey wraps an RSA private key. The serialized forms of its public
// half are derived from it on each call to PublicKey or Exponent.
type PrivateKey struct {
	key *rsa.PrivateKey
}

// Sum returns the canonical 32-byte hash of data.
func Sum(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// Keygen generates a fresh RSA keypair and returns the private key plus
// the serialized public key and exponent that travel with every signed
// transaction.
func Keygen() (*PrivateKey, PublicKey, Exponent, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaBits)
	if err != nil {
		return nil, PublicKey{}, Exponent{}, errors.Wrap(err, "generating rsa key")
	}
	pub, err := publicKeyBytes(&key.PublicKey)
	if err != nil {
		return nil, PublicKey{}, Exponent{}, err
	}
	exp, err := exponentBytes(&key.PublicKey)
	if err != nil {
		return nil, PublicKey{}, Exponent{}, err
	}
	return &PrivateKey{key: key}, pub, exp, nil
}

func publicKeyBytes(pub *rsa.PublicKey) (PublicKey, error) {
	var out PublicKey
	n := pub.N.Bytes()
	if len(n) > PublicKeySize {
		return out, ledgererr.New(ledgererr.KindBadKey, "rsa modulus too large")
	}
	copy(out[PublicKeySize-len(n):], n)
	return out, nil
}

func exponentBytes(pub *rsa.PublicKey) (Exponent, error) {
	var out Exponent
	e := big.NewInt(int64(pub.E)).Bytes()
	if len(e) > ExponentSize {
		return out, ledgererr.New(ledgererr.KindBadKey, "rsa exponent too large")
	}
	copy(out[ExponentSize-len(e):], e)
	return out, nil
}

// PublicKey returns the serialized public key matching priv.
func (priv *PrivateKey) PublicKey() (PublicKey, error) {
	return publicKeyBytes(&priv.key.PublicKey)
}

// Exponent returns the serialized public exponent matching priv.
func (priv *PrivateKey) Exponent() (Exponent, error) {
	return exponentBytes(&priv.key.PublicKey)
}

// Sign signs the hash of a record. The hash, not the raw record, is what
// verifiers check against.
func Sign(priv *PrivateKey, hash Hash) (Signature, error) {
	var sig Signature
	raw, err := rsa.SignPKCS1v15(rand.Reader, priv.key, 0, hash[:])
	if err != nil {
		return sig, errors.Wrap(err, "signing hash")
	}
	if len(raw) != SignatureSize {
		return sig, ledgererr.New(ledgererr.KindBadSignature, "unexpected signature length")
	}
	copy(sig[:], raw)
	return sig, nil
}

// VerifyResult is the outcome of Verify.
type VerifyResult int

const (
	VerifyOk VerifyResult = iota
	VerifyBadKey
	VerifyBadSignature
)

// Verify checks that sig is a valid signature over hash by the key
// described by (pub, e). Reconstructing an *rsa.PublicKey from pub/e is
// itself fallible (e.g. a zero exponent), which is reported as
// VerifyBadKey rather than an error, so callers can treat a malformed
// key and a failed signature as two distinct rejection reasons.
func Verify(pub PublicKey, e Exponent, hash Hash, sig Signature) (VerifyResult, error) {
	rsaPub := &rsa.PublicKey{
		N: new(big.Int).SetBytes(pub[:]),
		E: int(new(big.Int).SetBytes(e[:]).Int64()),
	}
	if rsaPub.E <= 0 || rsaPub.N.Sign() <= 0 {
		return VerifyBadKey, nil
	}

	err := rsa.VerifyPKCS1v15(rsaPub, 0, hash[:], sig[:])
	if err != nil {
		return VerifyBadSignature, nil
	}
	return VerifyOk, nil
}

// Address derives the fixed-length address of a public key: the hash of
// its serialized bytes.
func Address(pub PublicKey) Hash {
	return Sum(pub[:])
}

// Equal reports whether two hashes are the same, in constant time.
func (h Hash) Equal(other Hash) bool {
	return subtle.ConstantTimeCompare(h[:], other[:]) == 1
}

func (h Hash) String() string {
	return encodeHex(h[:])
}

func (pub PublicKey) String() string {
	return encodeHex(pub[:8]) + "..."
}

const hextable = "0123456789abcdef"

func encodeHex(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}
