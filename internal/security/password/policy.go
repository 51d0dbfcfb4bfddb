package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Symbols aceptados por RequireSymbol.
const Symbols = "!@#$%^&*()_+-=[]{}|;:,.<>?`~"

type Policy struct {
	MinLength     int
	MaxLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// Registration es la política de alta de cuentas con contraseña.
var Registration = Policy{
	MinLength:     8,
	MaxLength:     32,
	RequireUpper:  true,
	RequireLower:  true,
	RequireDigit:  true,
	RequireSymbol: true,
}

func (p Policy) Validate(s string) (ok bool, reasons []string) {
	n := utf8.RuneCountInString(s)
	if n < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		reasons = append(reasons, "too_long")
	}
	var hasU, hasL, hasD, hasS bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		case strings.ContainsRune(Symbols, r):
			hasS = true
		}
	}
	if p.RequireUpper && !hasU {
		reasons = append(reasons, "missing_upper")
	}
	if p.RequireLower && !hasL {
		reasons = append(reasons, "missing_lower")
	}
	if p.RequireDigit && !hasD {
		reasons = append(reasons, "missing_digit")
	}
	if p.RequireSymbol && !hasS {
		reasons = append(reasons, "missing_symbol")
	}
	return len(reasons) == 0, reasons
}

// ValidUsername: 3..20 caracteres, alfanuméricos o '_'.
func ValidUsername(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < 3 || n > 20 {
		return false
	}
	for _, r := range s {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
