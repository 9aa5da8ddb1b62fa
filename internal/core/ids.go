package core

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// ContentId identifies a file's bytes by their xxh3-128 digest. Two files with
// identical content share a ContentId regardless of name or revision.
type ContentId [16]byte

// ContentIdOf hashes content into a ContentId.
func ContentIdOf(content string) ContentId {
	return ContentId(sum128(xxh3.HashString128(content)))
}

func (c ContentId) String() string {
	return hex.EncodeToString(c[:])
}

// Bytes returns the digest as a slice, suitable for BLOB columns.
func (c ContentId) Bytes() []byte {
	return c[:]
}

// ContentIdFromBytes converts a stored digest back to a ContentId.
func ContentIdFromBytes(b []byte) (ContentId, error) {
	var c ContentId
	if len(b) != len(c) {
		return c, fmt.Errorf("content id: want %d bytes, got %d", len(c), len(b))
	}
	copy(c[:], b)
	return c, nil
}

// ParseContentId parses the hex form produced by String.
func ParseContentId(s string) (ContentId, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ContentId{}, fmt.Errorf("content id: %w", err)
	}
	return ContentIdFromBytes(b)
}

// FileKey uniquely identifies one cached build: a filename plus the identity
// of its content.
type FileKey struct {
	Filename  string
	ContentId ContentId
}

// FileKeyOf computes the FileKey for a file's name and content.
func FileKeyOf(filename, content string) FileKey {
	return FileKey{Filename: filename, ContentId: ContentIdOf(content)}
}

func (k FileKey) String() string {
	return k.Filename + "@" + k.ContentId.String()[:12]
}

// EntityId is an opaque identifier for an Entity, stable within one run.
type EntityId [16]byte

// NewEntityId derives an EntityId from its parts. The same parts always give
// the same id.
func NewEntityId(parts ...string) EntityId {
	return EntityId(sum128(xxh3.HashString128(strings.Join(parts, "\x00"))))
}

func (e EntityId) String() string {
	return hex.EncodeToString(e[:])
}

// Bytes returns the id as a slice, suitable for BLOB columns.
func (e EntityId) Bytes() []byte {
	return e[:]
}

// EntityIdFromBytes converts a stored id back to an EntityId.
func EntityIdFromBytes(b []byte) (EntityId, error) {
	var e EntityId
	if len(b) != len(e) {
		return e, fmt.Errorf("entity id: want %d bytes, got %d", len(e), len(b))
	}
	copy(e[:], b)
	return e, nil
}

// ParseEntityId parses the hex form produced by String.
func ParseEntityId(s string) (EntityId, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return EntityId{}, fmt.Errorf("entity id: %w", err)
	}
	return EntityIdFromBytes(b)
}

func sum128(u xxh3.Uint128) [16]byte {
	var out [16]byte
	binary.BigEndian.PutUint64(out[:8], u.Hi)
	binary.BigEndian.PutUint64(out[8:], u.Lo)
	return out
}
