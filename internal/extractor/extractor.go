// Package extractor turns raw listing-page HTML into structured vacancy
// candidates using per-field selector cascades.
//
// Every target field is configured as an ordered cascade of rules; the
// first rule yielding a non-empty normalized value wins and is recorded
// for diagnostics. Listing discovery follows the same pattern: the
// primary container selector is tried first and fallbacks are consulted
// only when it matches zero elements.
package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jobradar/vacancy-scraper/internal/scraper"
)

// Field names used in diagnostics and missing-field reporting.
const (
	FieldTitle            = "title"
	FieldCompany          = "company"
	FieldLocation         = "location"
	FieldWorkModel        = "work_model"
	FieldSalary           = "salary"
	FieldTechnologies     = "technologies"
	FieldResponsibilities = "responsibilities"
	FieldRequirements     = "requirements"
	FieldBenefits         = "benefits"
)

// Result is one extracted listing candidate.
type Result struct {
	Record           scraper.VacancyRecord
	Confidence       int
	MissingFields    []string
	MandatoryMissing bool
	// MatchedRules maps field name to the winning selector, for
	// diagnosing cascade drift when a board changes its markup.
	MatchedRules map[string]string
}

// PageResult aggregates extraction over one listing page.
type PageResult struct {
	Listings []Result
	// PrimaryContainer is false when a fallback container selector had
	// to be used; confidence is docked accordingly.
	PrimaryContainer bool
	// SkippedNodes counts malformed fragments dropped at the node level.
	SkippedNodes int
}

// Extractor evaluates selector profiles against HTML documents.
type Extractor struct {
	logger *zap.Logger
}

// New constructs an Extractor.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// ExtractPage parses the page and extracts every listing the profile's
// container cascade discovers. A document-level parse failure is the
// only fatal outcome; individual malformed fragments are skipped.
func (e *Extractor) ExtractPage(
	sourceID string,
	html []byte,
	profile scraper.SelectorProfile,
) (PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return PageResult{}, fmt.Errorf("parse html: %w", err)
	}

	containers, primary := selectContainers(doc, profile.Listing)
	result := PageResult{PrimaryContainer: primary}
	if containers == nil {
		return result, nil
	}

	containers.Each(func(i int, node *goquery.Selection) {
		listing, ok := e.extractListing(sourceID, node, profile, primary)
		if !ok {
			result.SkippedNodes++
			e.logger.Debug("skipped malformed listing node",
				zap.String("source_id", sourceID),
				zap.Int("index", i),
			)
			return
		}
		result.Listings = append(result.Listings, listing)
	})
	return result, nil
}

// selectContainers walks the container cascade and returns the first
// selector with a non-zero match count, plus whether it was the primary.
func selectContainers(doc *goquery.Document, cascade []string) (*goquery.Selection, bool) {
	for i, selector := range cascade {
		sel := doc.Find(selector)
		if sel.Length() > 0 {
			return sel, i == 0
		}
	}
	return nil, false
}

func (e *Extractor) extractListing(
	sourceID string,
	node *goquery.Selection,
	profile scraper.SelectorProfile,
	primaryContainer bool,
) (Result, bool) {
	matched := make(map[string]string)
	resolved := make(map[string]bool)

	record := scraper.VacancyRecord{SourceID: sourceID}

	record.Title = resolveInto(node, profile.Title, FieldTitle, matched, resolved)
	record.Company = resolveInto(node, profile.Company, FieldCompany, matched, resolved)
	record.Location = resolveInto(node, profile.Location, FieldLocation, matched, resolved)
	record.WorkModel = resolveInto(node, profile.WorkModel, FieldWorkModel, matched, resolved)

	if raw, winner := resolveValue(node, profile.Salary); raw != "" {
		if min, max, currency, ok := parseSalary(raw); ok {
			record.SalaryMin = min
			record.SalaryMax = max
			record.Currency = currency
			matched[FieldSalary] = winner
			resolved[FieldSalary] = true
		}
	}

	if id, _ := resolveValue(node, profile.ExternalID); id != "" {
		record.ExternalID = id
	}

	record.Technologies = resolveListInto(node, profile.Technologies, FieldTechnologies, matched, resolved)
	record.Responsibilities = resolveListInto(node, profile.Responsibilities, FieldResponsibilities, matched, resolved)
	record.Requirements = resolveListInto(node, profile.Requirements, FieldRequirements, matched, resolved)
	record.Benefits = resolveListInto(node, profile.Benefits, FieldBenefits, matched, resolved)

	// A node where nothing at all resolved is markup noise, not a listing.
	if len(resolved) == 0 {
		return Result{}, false
	}

	missing := missingFields(resolved)
	res := Result{
		Record:           record,
		Confidence:       score(resolved, primaryContainer),
		MissingFields:    missing,
		MandatoryMissing: !resolved[FieldTitle] || !resolved[FieldCompany],
		MatchedRules:     matched,
	}
	res.Record.Confidence = res.Confidence
	return res, true
}

func resolveInto(
	node *goquery.Selection,
	cascade scraper.Cascade,
	field string,
	matched map[string]string,
	resolved map[string]bool,
) string {
	value, winner := resolveValue(node, cascade)
	if value == "" {
		return ""
	}
	matched[field] = winner
	resolved[field] = true
	return value
}

// resolveValue evaluates a cascade and returns the first non-empty
// normalized value and the winning selector.
func resolveValue(node *goquery.Selection, cascade scraper.Cascade) (string, string) {
	for _, rule := range cascade {
		sel := node.Find(rule.Selector).First()
		if sel.Length() == 0 {
			continue
		}
		if value := ruleValue(sel, rule); value != "" {
			return value, rule.Selector
		}
	}
	return "", ""
}

func resolveListInto(
	node *goquery.Selection,
	cascade scraper.Cascade,
	field string,
	matched map[string]string,
	resolved map[string]bool,
) []string {
	values, winner := resolveList(node, cascade)
	if len(values) == 0 {
		return nil
	}
	matched[field] = winner
	resolved[field] = true
	return values
}

// resolveList evaluates a cascade collecting every match of the winning
// rule, preserving document order and dropping duplicates. Attribute
// rules let technology tags come from image title/alt metadata when no
// text node carries them.
func resolveList(node *goquery.Selection, cascade scraper.Cascade) ([]string, string) {
	for _, rule := range cascade {
		sel := node.Find(rule.Selector)
		if sel.Length() == 0 {
			continue
		}
		seen := make(map[string]struct{})
		var values []string
		sel.Each(func(_ int, s *goquery.Selection) {
			value := ruleValue(s, rule)
			if value == "" {
				return
			}
			if _, dup := seen[value]; dup {
				return
			}
			seen[value] = struct{}{}
			values = append(values, value)
		})
		if len(values) > 0 {
			return values, rule.Selector
		}
	}
	return nil, ""
}

func ruleValue(sel *goquery.Selection, rule scraper.SelectorRule) string {
	if rule.Attr != "" {
		attr, ok := sel.Attr(rule.Attr)
		if !ok {
			return ""
		}
		return normalize(attr)
	}
	return normalize(sel.Text())
}

// normalize trims and collapses internal whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func missingFields(resolved map[string]bool) []string {
	var missing []string
	for _, f := range scoredFields {
		if !resolved[f.name] {
			missing = append(missing, f.name)
		}
	}
	return missing
}
