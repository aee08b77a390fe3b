package item

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint is the identity/content pair used to detect recurrence and
// change. StableID identifies the logical item across runs; ContentHash
// changes only when the item's substance changes.
type Fingerprint struct {
	StableID    string `json:"stable_id"`
	ContentHash string `json:"content_hash"`
}

// NewFingerprint derives a Fingerprint for an item. It is pure and
// deterministic: equal inputs always produce equal output.
//
// StableID is "<module>:<source id>" with both parts lowercased and
// whitespace-trimmed, so minor formatting differences in source ids do not
// spawn new identities.
//
// ContentHash covers only fields whose change is user-relevant, per type:
//
//	message: title, body, from
//	event:   title, body, due
//	task:    title, body, due, signals
//	post:    title, body
//
// Volatile fields (engagement counters, audience size) are never hashed.
func NewFingerprint(it NormalizedItem) (Fingerprint, error) {
	module := normalizeID(it.Module)
	sourceID := normalizeID(it.SourceID)
	if module == "" {
		return Fingerprint{}, &MalformedItemError{Module: it.Module, Reason: "empty module id"}
	}
	if sourceID == "" {
		return Fingerprint{}, &MalformedItemError{Module: it.Module, Reason: "empty source id"}
	}

	return Fingerprint{
		StableID:    module + ":" + sourceID,
		ContentHash: contentHash(it),
	}, nil
}

func normalizeID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func contentHash(it NormalizedItem) string {
	fields := []string{string(it.Type), it.Title, it.Body}

	switch it.Type {
	case TypeMessage:
		fields = append(fields, it.From)
	case TypeEvent:
		fields = append(fields, dueString(it))
	case TypeTask:
		fields = append(fields, dueString(it))
		fields = append(fields, it.Signals...)
	}

	h := sha256.New()
	for _, f := range fields {
		h.Write([]byte(f))
		h.Write([]byte{0}) // field separator, keeps "ab"+"c" distinct from "a"+"bc"
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func dueString(it NormalizedItem) string {
	if it.Due == nil {
		return ""
	}
	return it.Due.UTC().Format("2006-01-02T15:04:05Z")
}
