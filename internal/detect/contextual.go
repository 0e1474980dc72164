package detect

import (
	"regexp"
	"unicode/utf8"
)

// Contextual layer confidences, per heuristic family.
const (
	nameConfidence    = 0.85
	addressConfidence = 0.80
	phoneConfidence   = 0.90
)

// minNameLen rejects captures that are too short to be a plausible name.
const minNameLen = 3

// Trigger-phrase heuristics for names. The trigger is matched
// case-insensitively; the capture itself is not, so only a run of
// capitalized words immediately after the trigger is taken.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i:meu\s+nome\s+[eé]\s*|me\s+chamo\s*|sou\s+o?\s*)([A-ZÀ-Ú][a-zà-ú]+(?:\s+[A-ZÀ-Ú][a-zà-ú]+)*)`),
	regexp.MustCompile(`(?i:nome\s*[:=]\s*)([A-ZÀ-Ú][a-zà-ú]+(?:\s+[A-ZÀ-Ú][a-zà-ú]+)*)`),
	regexp.MustCompile(`(?i:(?:requerente|solicitante|cidadão|cidadã|servidor|servidora)\s*[:=]?\s*)([A-ZÀ-Ú][a-zà-ú]+(?:\s+[A-ZÀ-Ú][a-zà-ú]+)*)`),
	regexp.MustCompile(`(?i:(?:sr\.?a?|sra\.?|senhor|senhora)\s+)([A-ZÀ-Ú][a-zà-ú]+(?:\s+[A-ZÀ-Ú][a-zà-ú]+)*)`),
	regexp.MustCompile(`(?i:(?:assinado\s+por|assinatura\s+de)\s+)([A-ZÀ-Ú][a-zà-ú]+(?:\s+[A-ZÀ-Ú][a-zà-ú]+)*)`),
}

// Street-type keywords and "endereço:" phrases. The whole match is the entity.
var addressPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:rua|av\.?|avenida|alameda|travessa|praça)\s+[A-ZÀ-Úa-zà-ú\s]+,?\s*(?:n[ºo°]?\s*\d+)?`),
	regexp.MustCompile(`(?i)(?:endereço|endereco|resid[êe]ncia)\s*[:=]\s*[A-ZÀ-Úa-zà-ú0-9\s,.-]+`),
	regexp.MustCompile(`(?i)(?:mora\s+em|residente\s+em|reside\s+em)\s+[A-ZÀ-Úa-zà-ú\s]+`),
}

// Phone keyword followed by an 8-11 digit run; only the digits are captured.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:telefone|tel\.?|fone|celular|whatsapp?|zap)\s*[:=]?\s*(\d{8,11})\b`),
	regexp.MustCompile(`(?i)(?:n[úu]mero|n[ºo])\s*[:=]?\s*(\d{8,11})\b`),
}

// nameLayer captures capitalized-word runs following name trigger phrases.
func nameLayer(text string, accepted []Entity) []Entity {
	var out []Entity
	for _, re := range namePatterns {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[2], loc[3]
			if start < 0 {
				continue
			}
			name := text[start:end]
			if utf8.RuneCountInString(name) < minNameLen {
				continue
			}
			cand := Entity{
				Kind:       KindPessoa,
				Value:      name,
				Start:      start,
				End:        end,
				Confidence: nameConfidence,
				Method:     MethodContextual,
			}
			if overlapsAny(cand, accepted) || overlapsAny(cand, out) {
				continue
			}
			out = append(out, cand)
		}
	}
	return out
}

// addressLayer captures street-type and "endereço:" phrases whole.
func addressLayer(text string, accepted []Entity) []Entity {
	var out []Entity
	for _, re := range addressPatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			start, end := trimSpan(text, loc[0], loc[1])
			if start >= end {
				continue
			}
			cand := Entity{
				Kind:       KindEndereco,
				Value:      text[start:end],
				Start:      start,
				End:        end,
				Confidence: addressConfidence,
				Method:     MethodContextual,
			}
			if overlapsAny(cand, accepted) || overlapsAny(cand, out) {
				continue
			}
			out = append(out, cand)
		}
	}
	return out
}

// phoneLayer captures digit runs after phone keywords.
func phoneLayer(text string, accepted []Entity) []Entity {
	var out []Entity
	for _, re := range phonePatterns {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[2], loc[3]
			if start < 0 {
				continue
			}
			cand := Entity{
				Kind:       KindTelefone,
				Value:      text[start:end],
				Start:      start,
				End:        end,
				Confidence: phoneConfidence,
				Method:     MethodContextual,
			}
			if overlapsAny(cand, accepted) || overlapsAny(cand, out) {
				continue
			}
			out = append(out, cand)
		}
	}
	return out
}

// trimSpan shrinks [start,end) so the entity value carries no surrounding
// whitespace; the placeholder then replaces exactly the sensitive run.
func trimSpan(text string, start, end int) (int, int) {
	for start < end && isSpace(text[start]) {
		start++
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	return start, end
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
