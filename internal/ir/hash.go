package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows a future algorithm migration.
const (
	DomainSnapshot = "policygraph/snapshot/v1"
	DomainPass     = "policygraph/pass/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHash computes the content-addressed identity of a graph.
// Two graphs with the same nodes, ports, data and connections hash equal
// regardless of control display values.
func SnapshotHash(g *Graph) (string, error) {
	canonical, err := MarshalCanonical(g.CanonicalMap())
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// PassID computes the identity of one evaluation pass.
func PassID(token, snapshotHash string, seq int64) string {
	canonical, err := MarshalCanonical(map[string]any{
		"token":    token,
		"snapshot": snapshotHash,
		"seq":      seq,
	})
	if err != nil {
		// Only strings and ints above; marshaling cannot fail.
		panic(err)
	}
	return hashWithDomain(DomainPass, canonical)
}

// MustSnapshotHash is like SnapshotHash but panics on error.
// Use only in tests or when the graph is known to be valid.
func MustSnapshotHash(g *Graph) string {
	h, err := SnapshotHash(g)
	if err != nil {
		panic(err)
	}
	return h
}
