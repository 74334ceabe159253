package sec

import "golang.org/x/crypto/blake2b"

// DigestSize is the width of a stored credential digest.
const DigestSize = 32

// Digest is the one-way hash stored in place of a user's secret.
type Digest [DigestSize]byte

// HashCredential derives the digest for a username/secret pair by hashing
// the username bytes followed by the secret bytes. Mixing the username in
// first means equal secrets under different usernames produce distinct
// digests; it also means a username change invalidates the digest unless it
// is recomputed from the new name.
func HashCredential(username, secret string) Digest {
	h, _ := blake2b.New256(nil) // keyless New256 cannot fail
	h.Write([]byte(username))
	h.Write([]byte(secret))

	var d Digest
	h.Sum(d[:0])
	return d
}

// Matches reports whether stored equals the digest exactly. The comparison
// is plain byte equality, not constant-time.
func (d Digest) Matches(stored []byte) bool {
	return len(stored) == DigestSize && d == Digest(stored)
}
