package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/jobradar/vacancy-scraper/internal/scraper"
)

// Field and list separators for canonical serialization; both are
// control characters that never survive extraction normalization.
const (
	fieldSep = "\x1f"
	listSep  = "\x1e"
)

// IdentityKey derives the stable lookup key for a record: the external
// id when the source exposes one, otherwise a fingerprint of the
// normalized (title, company, location) triple. The prefixes keep the
// two namespaces from colliding.
func IdentityKey(record scraper.VacancyRecord) string {
	if record.ExternalID != "" {
		return "ext:" + record.ExternalID
	}
	return "fp:" + digest(strings.Join([]string{
		canonical(record.Title),
		canonical(record.Company),
		canonical(record.Location),
	}, fieldSep))
}

// ContentHash digests the extracted content fields. Internal identity,
// timestamps and the confidence score are excluded so that re-extracting
// identical content always hashes identically.
func ContentHash(record scraper.VacancyRecord) string {
	parts := []string{
		canonical(record.Title),
		canonical(record.Company),
		canonical(record.Location),
		canonical(record.WorkModel),
		strconv.Itoa(record.SalaryMin),
		strconv.Itoa(record.SalaryMax),
		record.Currency,
		strings.Join(record.Technologies, listSep),
		strings.Join(record.Responsibilities, listSep),
		strings.Join(record.Requirements, listSep),
		strings.Join(record.Benefits, listSep),
	}
	return digest(strings.Join(parts, fieldSep))
}

// canonical lower-cases and collapses whitespace so cosmetic markup
// changes do not move a record between identities.
func canonical(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
