// Package taxon reduces free-text species names from sample metadata to
// canonical Linnaean binomials and trinomials, moving specimen codes and
// other decorations to a separate suffix.
package taxon

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Name is a cleaned species name. Binomial is empty when the input does
// not name a valid species; the whole input is then in Suffix.
type Name struct {
	Binomial  string // "Genus epithet"
	Trinomial string // "Genus epithet subspecies", or empty
	Suffix    string // specimen codes and other trailing text
}

// Valid reports whether a binomial was found.
func (n Name) Valid() bool { return n.Binomial != "" }

var (
	spBare      = regexp.MustCompile(`(?i)^sp\.?$`)
	spCode      = regexp.MustCompile(`(?i)^sp[._]`)
	epithetHead = regexp.MustCompile(`^[a-z]+`)
	subspecies  = regexp.MustCompile(`^[a-z]+$`)
)

// Clean cleans one species value. genus, when known, is used for names
// that omit it and to drop a doubled genus ("Onthophagus Onthophagus
// incensus").
//
//	"Onthophagus incensus"         -> Onthophagus incensus
//	"Onthophagus incensusASolis02" -> Onthophagus incensus + "ASolis02"
//	"Onthophagus sp._13YB"         -> invalid, suffix "Onthophagus sp._13YB"
//	"Onthophagus incensus auratus" -> trinomial Onthophagus incensus auratus
func Clean(species, genus string) Name {
	s := strings.TrimSpace(species)
	genus = strings.TrimSpace(genus)
	if s == "" {
		return Name{}
	}

	if genus != "" {
		g := regexp.QuoteMeta(genus)
		if regexp.MustCompile(`^` + g + `\s+` + g + `\s+`).MatchString(s) {
			s = regexp.MustCompile(`^`+g+`\s+`).ReplaceAllString(s, "")
		}
	}

	parts := strings.Fields(s)
	if len(parts) == 0 {
		return Name{}
	}

	var genusPart string
	rest := parts
	first, _ := utf8.DecodeRuneInString(parts[0])
	switch {
	case unicode.IsUpper(first):
		genusPart, rest = parts[0], parts[1:]
	case genus != "":
		genusPart = genus
	default:
		return Name{Suffix: s}
	}
	if len(rest) == 0 {
		return Name{Suffix: s}
	}

	epithet := rest[0]
	if spBare.MatchString(epithet) || spCode.MatchString(epithet) {
		return Name{Suffix: s}
	}
	if low := strings.ToLower(epithet); low == "aff." || low == "cf." {
		return Name{Suffix: s}
	}
	canonical := epithetHead.FindString(epithet)
	if canonical == "" {
		return Name{Suffix: s}
	}
	glued := epithet[len(canonical):]

	n := Name{Binomial: genusPart + " " + canonical}
	var tail []string
	if glued != "" {
		tail = append(tail, glued)
	}
	switch {
	case len(rest) > 1 && subspecies.MatchString(rest[1]):
		n.Trinomial = n.Binomial + " " + rest[1]
		tail = append(tail, rest[2:]...)
	case len(rest) > 1:
		tail = append(tail, rest[1:]...)
	}
	n.Suffix = strings.Join(tail, " ")
	return n
}
