package strategy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Formato real de ticker de total alternativo (observado en el exchange):
//
//	KXNCAAMBTOTAL-26FEB19WEBBRAD-177
//
//	KXNCAAMBTOTAL = serie (prefijo declarado en markets.yaml)
//	26FEB19       = fecha (%y%b%d en mayúsculas)
//	WEBBRAD       = códigos de equipo away+home concatenados
//	177           = línea: el mercado resuelve YES si total >= 177

var dateCodeRe = regexp.MustCompile(`^(\d{2}[A-Z]{3}\d{2})([0-9A-Z]+)$`)

// ParsedTicker es el resultado de descomponer un ticker de total alternativo.
type ParsedTicker struct {
	Series   string
	DateCode string
	TeamRun  string // códigos away+home concatenados, sin separador
	Line     int    // umbral entero al final del ticker
}

// ParseTicker descompone un ticker con la gramática SERIES-DATECODE+TEAMS-LINE.
// La serie debe coincidir con seriesPrefix. La ambigüedad del split away/home
// dentro de TeamRun se resuelve después contra los códigos del score provider
// (ver SplitTeamRun).
func ParseTicker(ticker, seriesPrefix string) (ParsedTicker, error) {
	rest, ok := strings.CutPrefix(ticker, seriesPrefix+"-")
	if !ok {
		return ParsedTicker{}, fmt.Errorf("strategy.ParseTicker: %q no pertenece a la serie %q", ticker, seriesPrefix)
	}

	mid, lineStr, ok := cutLast(rest, "-")
	if !ok {
		return ParsedTicker{}, fmt.Errorf("strategy.ParseTicker: %q sin umbral final", ticker)
	}
	line, err := strconv.Atoi(lineStr)
	if err != nil {
		return ParsedTicker{}, fmt.Errorf("strategy.ParseTicker: umbral %q no numérico: %w", lineStr, err)
	}

	m := dateCodeRe.FindStringSubmatch(mid)
	if m == nil {
		return ParsedTicker{}, fmt.Errorf("strategy.ParseTicker: %q sin date code %%y%%b%%d", ticker)
	}

	return ParsedTicker{
		Series:   seriesPrefix,
		DateCode: m[1],
		TeamRun:  m[2],
		Line:     line,
	}, nil
}

// cutLast corta s por la última aparición de sep.
func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}
