package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/a3tai/mcp-form-pipeline/internal/fields"
)

var issstePattern = regexp.MustCompile(`^\d{8,11}$`)

// DefaultRegistry returns the built-in format rules. now supplies the reference
// date for range checks.
func DefaultRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}

	r := NewRegistry()

	r.Register(fields.FieldTypeRFC, Rule{
		Name:     "rfc_format",
		Severity: SeverityError,
		Validate: check(fields.IsRFC,
			"RFC must be 4 letters, 6 digits and 3 alphanumeric characters",
			"Check the RFC against the taxpayer certificate, e.g. ABCD850101XY1"),
	})

	r.Register(fields.FieldTypeCURP, Rule{
		Name:     "curp_format",
		Severity: SeverityError,
		Validate: check(fields.IsCURP,
			"CURP must be 18 characters: 4 letters, 6 digits, sex, 5 letters, 1 alphanumeric and 1 digit",
			"Copy the CURP exactly as printed on the official document"),
	})

	nss := Rule{
		Name:     "nss_format",
		Severity: SeverityError,
		Validate: check(fields.IsNSS,
			"NSS must be exactly 11 digits",
			"Verify the social security number on the IMSS card"),
	}
	r.Register(fields.FieldTypeNSS, nss)
	r.Register(fields.FieldTypeIMSS, nss)

	r.Register(fields.FieldTypeISSSTE, Rule{
		Name:     "issste_format",
		Severity: SeverityWarning,
		Validate: func(value string) Outcome {
			v := strings.ToUpper(strings.Join(strings.Fields(value), ""))
			if issstePattern.MatchString(v) || fields.IsRFC(v) {
				return pass()
			}
			return fail("ISSSTE number should be 8-11 digits or an RFC-style key",
				"Verify the ISSSTE affiliation number")
		},
	})

	r.Register(fields.FieldTypeCLABE, Rule{
		Name:     "clabe_format",
		Severity: SeverityError,
		Validate: check(fields.IsCLABE,
			"CLABE must be exactly 18 digits",
			"Copy the CLABE from the bank statement"),
	})
	r.Register(fields.FieldTypeCLABE, Rule{
		Name:     "clabe_checksum",
		Severity: SeverityWarning,
		Validate: func(value string) Outcome {
			// Malformed values are reported by clabe_format.
			if !fields.IsCLABE(value) || fields.CLABEChecksumValid(value) {
				return pass()
			}
			return fail("CLABE control digit does not match", "Re-check the last digit of the CLABE")
		},
	})

	r.Register(fields.FieldTypeCreditCard, Rule{
		Name:     "credit_card_luhn",
		Severity: SeverityError,
		Validate: check(fields.IsCreditCard,
			"Card number must be 13-19 digits and pass the Luhn check",
			"Re-check the card number for transposed digits"),
	})

	r.Register(fields.FieldTypePostalCode, Rule{
		Name:     "postal_code_format",
		Severity: SeverityError,
		Validate: check(fields.IsPostalCode,
			"Postal code must be exactly 5 digits",
			"Use the 5 digit código postal, keeping leading zeros"),
	})

	r.Register(fields.FieldTypeDiagnosis, Rule{
		Name:     "cie10_format",
		Severity: SeverityError,
		Validate: check(fields.IsCIE10,
			"Diagnosis must be a CIE-10 code such as J18.9",
			"Record the CIE-10 code next to the diagnosis"),
	})

	r.Register(fields.FieldTypeProfessionalLicense, Rule{
		Name:     "professional_license_format",
		Severity: SeverityError,
		Validate: check(fields.IsProfessionalLicense,
			"Professional license must be 7 or 8 digits",
			"Verify the cédula profesional number"),
	})

	dateFormat := Rule{
		Name:     "date_format",
		Severity: SeverityError,
		Validate: check(fields.IsDate,
			"Date must be DD/MM/YYYY, YYYY-MM-DD or DD-MM-YYYY",
			"Write dates as DD/MM/YYYY"),
	}
	dateRange := Rule{
		Name:     "date_range",
		Severity: SeverityWarning,
		Validate: dateRangeCheck(now),
	}
	for _, ft := range []fields.FieldType{fields.FieldTypeDate, fields.FieldTypeBirthDate} {
		r.Register(ft, dateFormat)
		r.Register(ft, dateRange)
	}

	r.Register(fields.FieldTypeEmail, Rule{
		Name:     "email_format",
		Severity: SeverityError,
		Validate: check(fields.IsEmail,
			"Email address is malformed",
			"Check the email for missing @ or domain"),
	})

	r.Register(fields.FieldTypePhone, Rule{
		Name:     "phone_format",
		Severity: SeverityError,
		Validate: check(fields.IsPhone,
			"Phone must be 10 digits, optionally prefixed with +52",
			"Include the full 10 digit number with area code"),
	})

	r.Register(fields.FieldTypeCurrency, Rule{
		Name:     "currency_format",
		Severity: SeverityError,
		Validate: check(fields.IsCurrency,
			"Amount must look like $1,234.56 or 1234.56",
			"Write amounts with two decimals"),
	})

	return r
}

// dateRangeCheck flags parsable dates before 1900 or after today
func dateRangeCheck(now func() time.Time) func(string) Outcome {
	return func(value string) Outcome {
		t, ok := fields.ParseDate(value)
		if !ok {
			// Unparsable values are reported by date_format.
			return pass()
		}

		today := now()
		switch {
		case t.Year() < 1900:
			return fail(
				fmt.Sprintf("Date %s is before 1900", t.Format("2006-01-02")),
				"Confirm the year of the date")
		case t.After(today):
			return fail(
				fmt.Sprintf("Date %s is in the future", t.Format("2006-01-02")),
				"Confirm the date is not in the future")
		}
		return pass()
	}
}
