package strategy

import (
	"strings"
	"sync"
)

// Resolver empareja códigos de equipo del exchange con abreviaturas del
// score provider. Los dos vocabularios no coinciden (p.ej. RAD vs RADF),
// así que se aplica una cadena de heurísticas en orden fijo:
//
//  1. match exacto
//  2. prefijo (uno es prefijo del otro, largo >= 3)
//  3. esqueleto de consonantes (se eliminan vocales salvo la inicial)
//  4. nombres compuestos (split por separadores/mayúsculas internas, subset)
//  5. prefijo institucional "U" (UXXX <-> XXX)
//
// Gana la primera que aplique. Un no-match no es fatal: el mercado queda
// fuera del threshold map.
type Resolver struct {
	mu    sync.Mutex
	cache map[string]bool
}

// NewResolver crea un Resolver con cache de pares vacía.
func NewResolver() *Resolver {
	return &Resolver{cache: make(map[string]bool)}
}

// Match devuelve true si los dos códigos plausiblemente nombran al mismo
// equipo. Función pura de sus inputs; la memoización es transparente.
func (r *Resolver) Match(exchangeCode, providerCode string) bool {
	key := exchangeCode + "|" + providerCode
	r.mu.Lock()
	if v, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return v
	}
	r.mu.Unlock()

	v := matchCodes(exchangeCode, providerCode)

	r.mu.Lock()
	r.cache[key] = v
	r.mu.Unlock()
	return v
}

// SplitTeamRun elige el punto de corte de un run concatenado AWAYHOME tal que
// ambas mitades resuelvan contra los códigos conocidos del partido. Empates se
// rompen por el prefijo común más largo acumulado.
func (r *Resolver) SplitTeamRun(run, awayCode, homeCode string) (away, home string, ok bool) {
	bestScore := -1
	for i := 1; i < len(run); i++ {
		a, h := run[:i], run[i:]
		if !r.Match(a, awayCode) || !r.Match(h, homeCode) {
			continue
		}
		score := commonPrefixLen(normalizeCode(a), normalizeCode(awayCode)) +
			commonPrefixLen(normalizeCode(h), normalizeCode(homeCode))
		if score > bestScore {
			bestScore = score
			away, home = a, h
		}
	}
	return away, home, bestScore >= 0
}

func matchCodes(a, b string) bool {
	na, nb := normalizeCode(a), normalizeCode(b)
	if na == "" || nb == "" {
		return false
	}

	// 1. exacto
	if na == nb {
		return true
	}

	// 2. prefijo, largo mínimo 3
	if isPrefixMatch(na, nb) {
		return true
	}

	// 3. esqueleto de consonantes
	if sa, sb := skeleton(na), skeleton(nb); sa == sb || isPrefixMatch(sa, sb) {
		return true
	}

	// 4. nombres compuestos: las partes de uno contenidas en las del otro
	if pa, pb := compoundParts(a), compoundParts(b); len(pa) > 1 || len(pb) > 1 {
		if partsSubset(pa, pb) || partsSubset(pb, pa) {
			return true
		}
	}

	// 5. prefijo institucional U: UCONN <-> CONN
	if ua, ub := stripLeadingU(na), stripLeadingU(nb); ua != na || ub != nb {
		if ua == ub || isPrefixMatch(ua, ub) {
			return true
		}
	}

	return false
}

// normalizeCode deja solo letras en mayúsculas.
func normalizeCode(s string) string {
	var b strings.Builder
	for _, c := range strings.ToUpper(s) {
		if c >= 'A' && c <= 'Z' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func isPrefixMatch(a, b string) bool {
	if len(a) < 3 || len(b) < 3 {
		return false
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	return strings.HasPrefix(b, a)
}

// skeleton elimina vocales salvo una vocal inicial: LIBERTY -> LBRTY.
func skeleton(s string) string {
	var b strings.Builder
	for i, c := range s {
		if i > 0 && strings.ContainsRune("AEIOU", c) {
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// compoundParts separa un código crudo por separadores conocidos y por
// mayúsculas internas (GardnerWebb -> [GARDNER, WEBB]).
func compoundParts(s string) []string {
	var parts []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, strings.ToUpper(cur.String()))
			cur.Reset()
		}
	}
	prevLower := false
	for _, c := range s {
		switch {
		case c == '-' || c == '.' || c == ' ' || c == '&' || c == '/':
			flush()
		case c >= 'A' && c <= 'Z' && prevLower:
			flush()
			cur.WriteRune(c)
		default:
			cur.WriteRune(c)
		}
		prevLower = c >= 'a' && c <= 'z'
	}
	flush()
	return parts
}

// partsSubset devuelve true si cada parte de sub matchea alguna de super.
func partsSubset(sub, super []string) bool {
	if len(sub) == 0 {
		return false
	}
	for _, p := range sub {
		found := false
		for _, q := range super {
			if partMatch(p, q) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// partMatch compara dos partes: exacto, prefijo, o con el prefijo
// institucional U descartado (UMASS <-> MASS).
func partMatch(p, q string) bool {
	if p == q || isPrefixMatch(p, q) {
		return true
	}
	sp, sq := stripLeadingU(p), stripLeadingU(q)
	return sp == sq || isPrefixMatch(sp, sq)
}

func stripLeadingU(s string) string {
	if len(s) > 3 && s[0] == 'U' && !strings.ContainsRune("AEIOU", rune(s[1])) {
		return s[1:]
	}
	return s
}

func commonPrefixLen(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
