package wire

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests. The version suffix leaves room for
// algorithm migration.
const (
	DomainSnapshot = "flowcanvas/snapshot/v1"
	DomainBatch    = "flowcanvas/batch/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest returns the content digest of a snapshot document. Two documents
// with equal JSON content have equal digests regardless of key order.
func Digest(doc []byte) (string, error) {
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// BatchDigest returns the content digest of a patch batch.
func BatchDigest(ops []PatchOperation) (string, error) {
	canonical, err := MarshalCanonical(ops)
	if err != nil {
		return "", fmt.Errorf("batch digest: %w", err)
	}
	return hashWithDomain(DomainBatch, canonical), nil
}
