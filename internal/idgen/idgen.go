// Package idgen generates the two opaque id formats TempleDB hands out:
// work item ids ("tdb-xxxxx") and commit hashes (16-char uppercase hex).
//
// Work item ids are derived from SHA-256 over identifying content plus
// a nonce, the same scheme the teacher repo uses for its hash-based issue
// ids (internal/storage/sqlite/ids.go: generateHashID/GenerateIssueID),
// adapted here with terrors.Unavailable on exhaustion instead of
// silently returning a possibly-colliding id (see DESIGN.md's Open
// Question resolution). Commit hashes are SHA-256 over identifying
// content alone, with no nonce and no collision check.
package idgen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/templedb/templedb/internal/terrors"
)

const (
	base36Alphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
	workItemPrefix  = "tdb-"
	workItemIDLen   = 5
	maxNoncesPerLen = 10
	maxIDLen        = 8
)

// hashToBase36 maps a SHA-256 digest onto a base36 string of the given
// length by treating the whole digest as a big base-256 number and
// repeatedly reducing mod 36.
func hashToBase36(sum []byte, length int) string {
	// Work on a copy since we destructively reduce it.
	buf := make([]byte, len(sum))
	copy(buf, sum)

	out := make([]byte, length)
	for i := 0; i < length; i++ {
		var rem int
		for j := 0; j < len(buf); j++ {
			cur := rem*256 + int(buf[j])
			buf[j] = byte(cur / 36)
			rem = cur % 36
		}
		out[length-1-i] = base36Alphabet[rem]
	}
	return string(out)
}

// GenerateWorkItemID produces a "tdb-xxxxx" id derived from the item's
// title/description/creator/timestamp plus a nonce, retrying on
// collision via the exists callback. Widens the id beyond 5 chars if
// the fixed-width space is exhausted, and escalates to
// terrors.Unavailable rather than returning a collision, per spec §4.9
// and §9's "widen the id space... or escalate" guidance.
func GenerateWorkItemID(title, description, creator string, ts time.Time, exists func(id string) (bool, error)) (string, error) {
	for length := workItemIDLen; length <= maxIDLen; length++ {
		for nonce := 0; nonce < maxNoncesPerLen; nonce++ {
			candidate := workItemPrefix + generateBody(title, description, creator, ts, length, nonce)
			found, err := exists(candidate)
			if err != nil {
				return "", fmt.Errorf("check work item id collision: %w", err)
			}
			if !found {
				return candidate, nil
			}
		}
	}
	return "", terrors.New(terrors.Unavailable, fmt.Sprintf(
		"failed to generate unique work item id after lengths %d-%d with %d nonces each",
		workItemIDLen, maxIDLen, maxNoncesPerLen))
}

func generateBody(title, description, creator string, ts time.Time, length, nonce int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%d", title, description, creator, ts.UnixNano(), nonce)
	sum := h.Sum(nil)
	return hashToBase36(sum, length)
}

// GenerateCommitHash produces the opaque, non-verifiable 16-char
// uppercase hex commit identifier specified in spec §4.5/§6:
// sha256(project_slug || branch_name || message || wall_time),
// truncated to the first 16 hex characters, upper-cased.
func GenerateCommitHash(projectSlug, branchName, message string, wallTime time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s%s%s%d", projectSlug, branchName, message, wallTime.UnixNano())
	sum := h.Sum(nil)
	hexStr := hex.EncodeToString(sum)
	return toUpper16(hexStr)
}

func toUpper16(s string) string {
	if len(s) > 16 {
		s = s[:16]
	}
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// SHA256Hex returns the hex-encoded SHA-256 digest of b, used by the
// content store (C1) to key ContentBlob rows.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
