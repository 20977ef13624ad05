// Package grouping reassembles multi-page invoices from a batch of uploaded
// file names using filename-shape heuristics.
package grouping

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Page is one uploaded file inside a logical document.
type Page struct {
	FileRef string `json:"fileRef"`
	Number  int    `json:"pageNumber"`
	// DeclaredTotal is the total-page count some filename shapes declare
	// ("_2_de_3"). It is advisory only and never authoritative.
	DeclaredTotal int `json:"declaredTotalPages,omitempty"`
}

// PageGroup is one logical multi-page document. Pages are sorted ascending by
// page number.
type PageGroup struct {
	BaseName string `json:"baseName"`
	// MatchedRule names the filename rule that claimed the pages, for
	// diagnostics.
	MatchedRule string `json:"matchedRule"`
	Pages       []Page `json:"pages"`
}

// ID is the stable identifier used downstream for the group.
func (g *PageGroup) ID() string { return g.BaseName }

// match is the outcome of one filename rule.
type match struct {
	base          string
	page          int
	declaredTotal int
}

// rule pairs a filename pattern with its handler. Rules live in an explicit
// ordered list so new shapes can be added without touching existing ones;
// more specific shapes come first because the first match wins.
type rule struct {
	name    string
	pattern *regexp.Regexp
	handler func(m []string) match
}

var rules = []rule{
	{
		// factura_1_de_3.pdf / invoice_1_of_3.pdf
		name:    "counted",
		pattern: regexp.MustCompile(`^(.+?)[_-](\d{1,4})[_-](?:de|of)[_-](\d{1,4})\.([a-z0-9]+)$`),
		handler: func(m []string) match {
			return match{base: m[1], page: atoi(m[2]), declaredTotal: atoi(m[3])}
		},
	},
	{
		// foo_1.pdf / foo-2.jpg
		name:    "separator",
		pattern: regexp.MustCompile(`^(.+?)[_-](\d{1,4})\.([a-z0-9]+)$`),
		handler: func(m []string) match {
			return match{base: m[1], page: atoi(m[2])}
		},
	},
	{
		// acme_pag1.jpg / doc-page2.png / scan_p3.pdf / f_folio_4.tif
		name:    "page-keyword",
		pattern: regexp.MustCompile(`^(.+?)[_-]?(?:pagina|pag|page|pg|p|folio|f)[_-]?(\d{1,4})\.([a-z0-9]+)$`),
		handler: func(m []string) match {
			return match{base: m[1], page: atoi(m[2])}
		},
	},
	{
		// scan(2).jpg
		name:    "parenthesized",
		pattern: regexp.MustCompile(`^(.+?)\((\d{1,4})\)\.([a-z0-9]+)$`),
		handler: func(m []string) match {
			return match{base: m[1], page: atoi(m[2])}
		},
	},
}

// Grouper groups a batch of file names into logical multi-page documents.
type Grouper struct {
	log zerolog.Logger
}

// NewGrouper creates a page grouper that logs heuristic warnings through the
// given logger.
func NewGrouper(log zerolog.Logger) *Grouper {
	return &Grouper{log: log.With().Str("component", "grouping").Logger()}
}

// Group applies the filename rules to each file, in input order. Files that
// match no rule become their own single-page group keyed by their stem.
// Unrelated files that normalize to the same base are merged; that is an
// accepted limitation of the heuristic.
func (g *Grouper) Group(filenames []string) []PageGroup {
	byBase := make(map[string]*PageGroup)
	var order []string

	for _, original := range filenames {
		lower := strings.ToLower(original)
		ruleName, m := applyRules(lower)

		var base string
		page := Page{FileRef: original, Number: 1}
		if m != nil {
			base = normalizeBase(m.base)
			page.Number = m.page
			page.DeclaredTotal = m.declaredTotal
		} else {
			base = normalizeBase(strings.TrimSuffix(lower, filepath.Ext(lower)))
			ruleName = "single"
		}

		group, ok := byBase[base]
		if !ok {
			group = &PageGroup{BaseName: base, MatchedRule: ruleName}
			byBase[base] = group
			order = append(order, base)
		}
		group.Pages = append(group.Pages, page)
	}

	groups := make([]PageGroup, 0, len(order))
	for _, base := range order {
		group := byBase[base]
		sort.SliceStable(group.Pages, func(i, j int) bool {
			return group.Pages[i].Number < group.Pages[j].Number
		})
		g.warnDeclaredMismatch(group)
		groups = append(groups, *group)
	}
	return groups
}

// warnDeclaredMismatch logs when a filename declared a total-page count that
// disagrees with the number of files actually found. The declared count is
// advisory, so this never fails the group.
func (g *Grouper) warnDeclaredMismatch(group *PageGroup) {
	for _, p := range group.Pages {
		if p.DeclaredTotal > 0 && p.DeclaredTotal != len(group.Pages) {
			g.log.Warn().
				Str("group", group.BaseName).
				Int("declaredPages", p.DeclaredTotal).
				Int("foundPages", len(group.Pages)).
				Msg("declared page count does not match files found")
			return
		}
	}
}

func applyRules(lower string) (string, *match) {
	for _, r := range rules {
		if m := r.pattern.FindStringSubmatch(lower); m != nil {
			result := r.handler(m)
			return r.name, &result
		}
	}
	return "", nil
}

// normalizeBase trims trailing separators and replaces the remaining
// separators with spaces so "acme_pag1.jpg" and "acme-pag2.jpg" share a base.
func normalizeBase(base string) string {
	base = strings.TrimRight(base, "_- ")
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, "-", " ")
	return strings.TrimSpace(base)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
