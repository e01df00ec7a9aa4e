// Package card holds pure payment card helpers: number masking, the Luhn
// checksum and issuer brand detection. Nothing here touches storage, so the
// checkout path and the validation worker share the same rules.
package card

import "strings"

// MaskGlyph replaces hidden card number characters.
const MaskGlyph = '*'

// visibleDigits is the number of trailing characters left readable by Mask.
const visibleDigits = 4

// Brand identifies a card issuer network.
type Brand string

// Known brands. BrandUnknown is returned for numbers matching no prefix rule.
const (
	BrandVisa       Brand = "Visa"
	BrandMastercard Brand = "Mastercard"
	BrandAmex       Brand = "AmericanExpress"
	BrandDiscover   Brand = "Discover"
	BrandJCB        Brand = "JCB"
	BrandDiners     Brand = "DinersClub"
	BrandUnionPay   Brand = "UnionPay"
	BrandMaestro    Brand = "Maestro"
	BrandUnknown    Brand = "Unknown"
)

// Result is the outcome of Check.
type Result struct {
	Brand Brand
	// Valid reports whether the number passes the Luhn checksum.
	Valid bool
	// Digits is the number of digits after normalization.
	Digits int
}

// Mask replaces every character except the trailing four with MaskGlyph.
// Inputs of four characters or fewer carry nothing worth hiding and are
// returned unchanged.
func Mask(number string) string {
	runes := []rune(number)
	if len(runes) <= visibleDigits {
		return number
	}
	var b strings.Builder
	b.Grow(len(runes))
	for range len(runes) - visibleDigits {
		b.WriteRune(MaskGlyph)
	}
	b.WriteString(string(runes[len(runes)-visibleDigits:]))
	return b.String()
}

// Normalize strips spaces and dashes. It returns ok=false when anything other
// than digits remains.
func Normalize(number string) (digits string, ok bool) {
	var b strings.Builder
	b.Grow(len(number))
	for _, r := range number {
		switch {
		case r == ' ' || r == '-':
			continue
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			return "", false
		}
	}
	return b.String(), b.Len() > 0
}

// Luhn reports whether digits passes the mod-10 checksum: starting from the
// rightmost digit, every second digit is doubled (minus 9 when the doubled
// value exceeds 9) and the total must be divisible by 10. Any non-digit
// input fails.
func Luhn(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// prefixRule matches numbers whose leading digits fall in [lo, hi].
type prefixRule struct {
	width  int
	lo, hi int
	brand  Brand
}

// Longer prefixes first so that, e.g., 6011 wins over 60.
var prefixRules = []prefixRule{
	{width: 4, lo: 2221, hi: 2720, brand: BrandMastercard},
	{width: 4, lo: 3528, hi: 3589, brand: BrandJCB},
	{width: 4, lo: 6011, hi: 6011, brand: BrandDiscover},
	{width: 4, lo: 6304, hi: 6304, brand: BrandMaestro},
	{width: 4, lo: 6759, hi: 6759, brand: BrandMaestro},
	{width: 4, lo: 6761, hi: 6763, brand: BrandMaestro},
	{width: 3, lo: 300, hi: 305, brand: BrandDiners},
	{width: 3, lo: 644, hi: 649, brand: BrandDiscover},
	{width: 2, lo: 34, hi: 34, brand: BrandAmex},
	{width: 2, lo: 37, hi: 37, brand: BrandAmex},
	{width: 2, lo: 36, hi: 36, brand: BrandDiners},
	{width: 2, lo: 38, hi: 39, brand: BrandDiners},
	{width: 2, lo: 51, hi: 55, brand: BrandMastercard},
	{width: 2, lo: 50, hi: 50, brand: BrandMaestro},
	{width: 2, lo: 56, hi: 58, brand: BrandMaestro},
	{width: 2, lo: 62, hi: 62, brand: BrandUnionPay},
	{width: 2, lo: 65, hi: 65, brand: BrandDiscover},
	{width: 1, lo: 4, hi: 4, brand: BrandVisa},
}

// DetectBrand classifies digits by issuer prefix.
func DetectBrand(digits string) Brand {
	for _, rule := range prefixRules {
		if len(digits) < rule.width {
			continue
		}
		p := 0
		for i := range rule.width {
			c := digits[i]
			if c < '0' || c > '9' {
				return BrandUnknown
			}
			p = p*10 + int(c-'0')
		}
		if p >= rule.lo && p <= rule.hi {
			return rule.brand
		}
	}
	return BrandUnknown
}

// Check normalizes number and runs both the checksum and brand detection.
func Check(number string) Result {
	digits, ok := Normalize(number)
	if !ok {
		return Result{Brand: BrandUnknown}
	}
	return Result{
		Brand:  DetectBrand(digits),
		Valid:  Luhn(digits),
		Digits: len(digits),
	}
}
