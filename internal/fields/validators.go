package fields

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	rfcPattern        = regexp.MustCompile(`^[A-ZÑ&]{4}\d{6}[A-Z0-9]{3}$`)
	curpPattern       = regexp.MustCompile(`^[A-Z]{4}\d{6}[HMX][A-Z]{5}[A-Z0-9]\d$`)
	nssPattern        = regexp.MustCompile(`^\d{11}$`)
	clabePattern      = regexp.MustCompile(`^\d{18}$`)
	cardPattern       = regexp.MustCompile(`^\d{13,19}$`)
	postalCodePattern = regexp.MustCompile(`^\d{5}$`)
	cie10Pattern      = regexp.MustCompile(`^[A-Z]\d{2}(\.\d{1,2})?$`)
	licensePattern    = regexp.MustCompile(`^\d{7,8}$`)
	emailPattern      = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	phonePattern      = regexp.MustCompile(`^(\+52)?\d{10}$`)
	currencyPattern   = regexp.MustCompile(`^\$\s?(\d{1,3}(,\d{3})+|\d+)(\.\d{2})?$|^\d+\.\d{2}$`)
	numberPattern     = regexp.MustCompile(`^-?\d+([.,]\d+)?$`)
)

// DateLayouts are the accepted date formats, tried in order
var DateLayouts = []string{"2/1/2006", "2006-01-02", "2-1-2006"}

// compact upper-cases and drops the separators people type inside identifiers
func compact(value string) string {
	return strings.ToUpper(strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "").Replace(strings.TrimSpace(value)))
}

// IsRFC reports whether value looks like an RFC (4 letters, 6 digits, 3 alphanumerics)
func IsRFC(value string) bool {
	return rfcPattern.MatchString(strings.ToUpper(strings.TrimSpace(value)))
}

// IsCURP reports whether value looks like a CURP
func IsCURP(value string) bool {
	return curpPattern.MatchString(strings.ToUpper(strings.TrimSpace(value)))
}

// IsNSS reports whether value is an 11 digit social security number
func IsNSS(value string) bool {
	return nssPattern.MatchString(compact(value))
}

// IsCLABE reports whether value is an 18 digit interbank account number
func IsCLABE(value string) bool {
	return clabePattern.MatchString(compact(value))
}

// CLABEChecksumValid verifies the CLABE control digit (weights 3, 7, 1)
func CLABEChecksumValid(value string) bool {
	digits := compact(value)
	if !clabePattern.MatchString(digits) {
		return false
	}

	weights := [3]int{3, 7, 1}
	sum := 0
	for i := 0; i < 17; i++ {
		sum += (int(digits[i]-'0') * weights[i%3]) % 10
	}
	control := (10 - sum%10) % 10
	return control == int(digits[17]-'0')
}

// IsCreditCard reports whether value is a 13-19 digit number passing the Luhn check
func IsCreditCard(value string) bool {
	digits := compact(value)
	if !cardPattern.MatchString(digits) {
		return false
	}
	return luhnValid(digits)
}

func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
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

// IsUUID reports whether value is a canonical hyphenated UUID
func IsUUID(value string) bool {
	v := strings.TrimSpace(value)
	if len(v) != 36 {
		return false
	}
	_, err := uuid.Parse(v)
	return err == nil
}

// IsPostalCode reports whether value is a 5 digit Mexican postal code
func IsPostalCode(value string) bool {
	return postalCodePattern.MatchString(strings.TrimSpace(value))
}

// IsCIE10 reports whether value looks like a CIE-10 diagnosis code
func IsCIE10(value string) bool {
	return cie10Pattern.MatchString(strings.ToUpper(strings.TrimSpace(value)))
}

// IsProfessionalLicense reports whether value is a 7 or 8 digit license number
func IsProfessionalLicense(value string) bool {
	return licensePattern.MatchString(compact(value))
}

// ParseDate parses value with the first matching layout in DateLayouts
func ParseDate(value string) (time.Time, bool) {
	v := strings.TrimSpace(value)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsDate reports whether value parses with one of the accepted layouts
func IsDate(value string) bool {
	_, ok := ParseDate(value)
	return ok
}

// IsEmail reports whether value looks like an email address
func IsEmail(value string) bool {
	return emailPattern.MatchString(strings.TrimSpace(value))
}

// IsPhone reports whether value is a 10 digit number, optionally +52 prefixed
func IsPhone(value string) bool {
	return phonePattern.MatchString(compact(value))
}

// IsCurrency reports whether value looks like an amount ($1,234.56 or 1234.56)
func IsCurrency(value string) bool {
	return currencyPattern.MatchString(strings.TrimSpace(value))
}

// IsNumber reports whether value is a plain integer or decimal number
func IsNumber(value string) bool {
	return numberPattern.MatchString(strings.TrimSpace(value))
}
