package theme

import (
	"os"
	"strings"
)

// SymbolSet holds all UI symbols, allowing runtime switching between
// Unicode and ASCII fallback sets.
type SymbolSet struct {
	Success  string
	Error    string
	Cursor   string
	Bullet   string
	Ellipsis string
	Versus   string
	Fire     string
	Star     string
}

var unicodeSymbols = SymbolSet{
	Success:  "\u2713",     // ✓
	Error:    "\u2717",     // ✗
	Cursor:   "\u258C",     // ▌
	Bullet:   "\u2022",     // •
	Ellipsis: "\u2026",     // …
	Versus:   "\u2694",     // ⚔
	Fire:     "\U0001F525", // 🔥
	Star:     "\u2605",     // ★
}

var asciiSymbols = SymbolSet{
	Success:  "[OK]",
	Error:    "[ERR]",
	Cursor:   "_",
	Bullet:   "*",
	Ellipsis: "...",
	Versus:   "vs",
	Fire:     "(!)",
	Star:     "*",
}

// DetectUnicodeSupport checks whether the terminal likely supports Unicode.
// GITDUEL_ASCII_SYMBOLS overrides locale detection.
func DetectUnicodeSupport() bool {
	if v := os.Getenv("GITDUEL_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return false
	}

	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		val := strings.ToLower(os.Getenv(key))
		if strings.Contains(val, "utf-8") || strings.Contains(val, "utf8") {
			return true
		}
	}

	// Most modern terminals support Unicode.
	return true
}

// InitSymbols sets the package-level Symbol* variables based on terminal
// capabilities. Called by init(), and again by tests that change the
// environment.
func InitSymbols() {
	set := unicodeSymbols
	if !DetectUnicodeSupport() {
		set = asciiSymbols
	}

	SymbolSuccess = set.Success
	SymbolError = set.Error
	SymbolCursor = set.Cursor
	SymbolBullet = set.Bullet
	SymbolEllipsis = set.Ellipsis
	SymbolVersus = set.Versus
	SymbolFire = set.Fire
	SymbolStar = set.Star
}

func init() {
	InitSymbols()
}
