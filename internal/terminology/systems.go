// Package terminology resolves (code, coding system) pairs into display text.
//
// Resolution consults a catalog of concepts keyed by code and system OID,
// degrades to a code-only match when the system is unknown to the catalog,
// and finally synthesizes a label from a fixed table of well-known system
// names so that the result is never empty.
package terminology

// Well-known coding system OIDs.
const (
	SystemSNOMEDCT    = "2.16.840.1.113883.6.96"
	SystemLOINC       = "2.16.840.1.113883.6.1"
	SystemICD10       = "2.16.840.1.113883.6.3"
	SystemICD10CM     = "2.16.840.1.113883.6.90"
	SystemICD10PCS    = "2.16.840.1.113883.6.4"
	SystemRxNorm      = "2.16.840.1.113883.6.88"
	SystemATC         = "2.16.840.1.113883.6.73"
	SystemCVX         = "2.16.840.1.113883.12.292"
	SystemCPT4        = "2.16.840.1.113883.6.12"
	SystemEDQM        = "0.4.0.127.0.16.1.1.2.1"
	SystemUCUM        = "2.16.840.1.113883.6.8"
	SystemAdminGender = "2.16.840.1.113883.5.1"
)

// systemNames maps well-known coding system OIDs to human-readable names
// used in synthesized fallback labels.
var systemNames = map[string]string{
	SystemSNOMEDCT:    "SNOMED CT",
	SystemLOINC:       "LOINC",
	SystemICD10:       "ICD-10",
	SystemICD10CM:     "ICD-10-CM",
	SystemICD10PCS:    "ICD-10-PCS",
	SystemRxNorm:      "RxNorm",
	SystemATC:         "ATC",
	SystemCVX:         "CVX",
	SystemCPT4:        "CPT-4",
	SystemEDQM:        "EDQM",
	SystemUCUM:        "UCUM",
	SystemAdminGender: "HL7 AdministrativeGender",
}

// SystemName returns the human-readable name for a coding system OID, or the
// raw OID when the system is not in the table.
func SystemName(system string) string {
	if name, ok := systemNames[system]; ok {
		return name
	}
	return system
}
