package domain

import "strings"

// ContentKeyLength is how many normalized characters of content take part in a fingerprint.
const ContentKeyLength = 40

// Fingerprint is the surrogate identity of a rendered comment: who wrote it and
// what it starts with. It is lossy: two comments by the same author whose first
// 40 normalized characters agree share a fingerprint and cannot be told apart.
type Fingerprint struct {
	AuthorKey  string
	ContentKey string
}

// NewFingerprint derives the fingerprint of (author, content). It is total and pure.
func NewFingerprint(author, content string) Fingerprint {
	return Fingerprint{
		AuthorKey:  strings.ToLower(author),
		ContentKey: NormalizeContent(content),
	}
}

// Key is the serialized "{authorKey}:{contentKey}" form used as a map key.
func (f Fingerprint) Key() string {
	return f.AuthorKey + ":" + f.ContentKey
}

// NormalizeContent lowercases s, drops everything outside [a-z0-9] and keeps at
// most ContentKeyLength characters. Whitespace and markup differences between the
// rendered page and the API JSON disappear under this normalization.
func NormalizeContent(s string) string {
	lower := strings.ToLower(s)
	var b strings.Builder
	b.Grow(min(len(lower), ContentKeyLength))
	n := 0
	for i := 0; i < len(lower) && n < ContentKeyLength; i++ {
		c := lower[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
			n++
		}
	}
	return b.String()
}

// BuildKey is shorthand for NewFingerprint(author, content).Key().
func BuildKey(author, content string) string {
	return NewFingerprint(author, content).Key()
}

// KeyBuilder turns an (author, content) pair into a lookup key. Callers depend on
// this interface so the lossy scheme can be replaced by a stronger one later.
type KeyBuilder interface {
	Key(author, content string) string
}

// LossyKeyBuilder is the default KeyBuilder: BuildKey.
type LossyKeyBuilder struct{}

func (LossyKeyBuilder) Key(author, content string) string { return BuildKey(author, content) }
