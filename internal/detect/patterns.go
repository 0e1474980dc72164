package detect

import "regexp"

// pattern pairs a compiled expression with the kind it detects.
type pattern struct {
	kind Kind
	re   *regexp.Regexp
}

// patternConfidence is assigned to every pattern-layer match.
const patternConfidence = 0.95

// patternLibrary is the fixed, ordered set of lexical patterns for locally
// formatted identifiers. Order matters: more specific composites (card
// numbers) run before the bare-digit fallbacks of CPF/CNPJ/phone, so an
// earlier match claims the span first and later candidates contained in it
// are discarded.
//
// The expressions are RE2; word boundaries stand in for the lookarounds a
// PCRE version would use.
var patternLibrary = []pattern{
	// Payment card: four groups of four digits with separators.
	{KindCartaoCredito, regexp.MustCompile(`(?i)\b\d{4}[\s.-]\d{4}[\s.-]\d{4}[\s.-]\d{4}\b`)},
	// CPF: 123.456.789-00, or a bare 11-digit run.
	{KindCPF, regexp.MustCompile(`(?i)\b\d{3}\.\d{3}\.\d{3}-\d{2}\b|\b\d{11}\b`)},
	// CNPJ: 12.345.678/0001-99, or a bare 14-digit run.
	{KindCNPJ, regexp.MustCompile(`(?i)\b\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}\b|\b\d{14}\b`)},
	{KindEmail, regexp.MustCompile(`(?i)\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)},
	// Phone: +55/DDD forms, 8-9 digits with separator, or a bare 10-11 digit run.
	{KindTelefone, regexp.MustCompile(`(?i)(?:\+55\s?)?\(?\d{2}\)?[\s.-]?\d{4,5}[\s.-]?\d{4}\b|\b\d{4,5}[\s.-]\d{4}\b|\b\d{10,11}\b`)},
	// RG: only the formatted XX.XXX.XXX-X form, to avoid bare-digit collisions.
	{KindRG, regexp.MustCompile(`(?i)\b\d{1,2}\.\d{3}\.\d{3}-[\dxX]\b`)},
	// CEP: hyphen required so five-digit runs alone do not match.
	{KindCEP, regexp.MustCompile(`(?i)\b\d{5}-\d{3}\b`)},
	{KindDataNasc, regexp.MustCompile(`(?i)\b\d{2}[/-]\d{2}[/-]\d{4}\b`)},
	// PIS/PASEP: 123.45678.90-1.
	{KindPISPasep, regexp.MustCompile(`(?i)\b\d{3}\.\d{5}\.\d{2}-\d\b`)},
	// Voter registration: twelve digits in three space-separated groups.
	{KindTituloEleitor, regexp.MustCompile(`(?i)\b\d{4}\s\d{4}\s\d{4}\b`)},
	// Vehicle plate: ABC-1234 or Mercosul ABC1D23.
	{KindPlacaVeiculo, regexp.MustCompile(`(?i)\b[A-Z]{3}-?\d[A-Z\d]\d{2}\b`)},
}

// patternLayer scans the text with every library pattern in order, emitting a
// candidate for each match not already claimed by an accepted span.
func patternLayer(text string, accepted []Entity) []Entity {
	var out []Entity
	for _, p := range patternLibrary {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			cand := Entity{
				Kind:       p.kind,
				Value:      text[loc[0]:loc[1]],
				Start:      loc[0],
				End:        loc[1],
				Confidence: patternConfidence,
				Method:     MethodPattern,
			}
			if overlapsAny(cand, accepted) || overlapsAny(cand, out) {
				continue
			}
			out = append(out, cand)
		}
	}
	return out
}

// overlapsAny reports whether cand shares at least one byte with any entity
// in set. Full containment is a special case of overlap; the final accepted
// set must be strictly non-overlapping for the placeholder splice to be
// offset-safe.
func overlapsAny(cand Entity, set []Entity) bool {
	for _, e := range set {
		if cand.Start < e.End && e.Start < cand.End {
			return true
		}
	}
	return false
}
