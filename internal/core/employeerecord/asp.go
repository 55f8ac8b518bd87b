package employeerecord

import "github.com/gip-inclusion/employee-records/internal/core/jobapplication"

// ASP reference code mappings. Codes come from the ASP reference files
// (ref_type_employeur_v3, ref_orienteur_v5) and are not expected to change.

// MeasureForKind maps a company kind to the ASP "mesure" code.
func MeasureForKind(kind jobapplication.CompanyKind) string {
	switch kind {
	case jobapplication.KindAI:
		return "AI_DC"
	case jobapplication.KindACI:
		return "ACI_DC"
	case jobapplication.KindEI:
		return "EI_DC"
	case jobapplication.KindETTI:
		return "ETTI_DC"
	case jobapplication.KindEITI:
		return "EITI_DC"
	default:
		return ""
	}
}

// EmployerTypeForKind maps a company kind to the ASP employer type code.
// Only meaningful when the job seeker is currently employed.
func EmployerTypeForKind(kind jobapplication.CompanyKind) string {
	switch kind {
	case jobapplication.KindEI:
		return "01"
	case jobapplication.KindETTI:
		return "02"
	case jobapplication.KindAI:
		return "03"
	case jobapplication.KindACI:
		return "04"
	case jobapplication.KindEA:
		return "06"
	default:
		return "07"
	}
}

const (
	prescriberSpontaneous = "07"
	prescriberUnknown     = "99"
)

// prescriberTypes maps itou prescriber organization kinds to ASP
// "orienteur" codes.
var prescriberTypes = map[string]string{
	"ML":                           "01",
	"CAP_EMPLOI":                   "02",
	"PE":                           "03",
	"PLIE":                         "04",
	"DEPT":                         "05",
	"OTHER_AUTHORIZED_PRESCRIBERS": "06",
	"SPIP":                         "09",
	"PJJ":                          "10",
	"CCAS":                         "11",
	"CHRS":                         "12",
	"CIDFF":                        "13",
	"AFPA":                         "15",
	"CAF":                          "17",
	"CADA":                         "18",
	"ASE":                          "19",
	"CAVA":                         "20",
	"CPH":                          "21",
	"CHU":                          "22",
	"OACAS":                        "23",
}

// PrescriberTypeFor maps the application sender to the ASP "orienteur" code.
// Direct applications from the job seeker, and hirings initiated by the
// company itself, are both reported as spontaneous: ASP does not accept the
// unknown code for employer-initiated hirings.
func PrescriberTypeFor(ja *jobapplication.JobApplication) string {
	switch ja.SenderKind {
	case jobapplication.SenderJobSeeker, jobapplication.SenderEmployer:
		return prescriberSpontaneous
	}
	if code, ok := prescriberTypes[ja.SenderPrescriberKind]; ok {
		return code
	}
	return prescriberUnknown
}
