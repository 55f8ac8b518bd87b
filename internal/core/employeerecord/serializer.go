package employeerecord

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/gip-inclusion/employee-records/internal/core/jobapplication"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ASP wire format. Field names are French and fixed by the ASP interchange
// contract: a record serialized twice from the same inputs must be byte
// identical, because the SENT state pins a line number inside a named file
// and replay/debugging depend on reproducing it.

const aspDateLayout = "02/01/2006"

// departmentCodeForeignBorn is required by ASP when the employee was not
// born in France (error 3411 otherwise).
const departmentCodeForeignBorn = "099"

// CodeComInsee is the nested birth commune block; ASP names the child field
// like its parent.
type CodeComInsee struct {
	CodeComInsee *string `json:"codeComInsee"`
	CodeDpt      string  `json:"codeDpt"`
}

// Person is the "personnePhysique" block.
type Person struct {
	PassIAE        string       `json:"passIae"`
	IDItou         string       `json:"idItou"`
	Civilite       string       `json:"civilite"`
	NomUsage       string       `json:"nomUsage"`
	NomNaissance   *string      `json:"nomNaissance"`
	Prenom         string       `json:"prenom"`
	DateNaissance  string       `json:"dateNaissance"`
	CodeComInsee   CodeComInsee `json:"codeComInsee"`
	CodeInseePays  string       `json:"codeInseePays"`
	CodeGroupePays string       `json:"codeGroupePays"`
	PassDateDeb    string       `json:"passDateDeb"`
	PassDateFin    string       `json:"passDateFin"`
}

// Address is the "adresse" block, built from the HEXA normalized address.
type Address struct {
	AdrTelephone        *string `json:"adrTelephone"`
	AdrMail             *string `json:"adrMail"`
	AdrNumeroVoie       *string `json:"adrNumeroVoie"`
	CodeExtensionVoie   *string `json:"codeextensionvoie"`
	CodeTypeVoie        string  `json:"codetypevoie"`
	AdrLibelleVoie      string  `json:"adrLibelleVoie"`
	AdrCpltDistribution *string `json:"adrCpltDistribution"`
	CodeInseeCom        string  `json:"codeinseecom"`
	CodePostalCedex     string  `json:"codepostalcedex"`
}

// Situation is the "situationSalarie" block. The trailing EITI fields are
// transmitted as null for every other company kind.
type Situation struct {
	Orienteur               string  `json:"orienteur"`
	NiveauFormation         *string `json:"niveauFormation"`
	SalarieEnEmploi         bool    `json:"salarieEnEmploi"`
	SalarieTypeEmployeur    *string `json:"salarieTypeEmployeur"`
	SalarieSansEmploiDepuis *string `json:"salarieSansEmploiDepuis"`
	SalarieSansRessource    bool    `json:"salarieSansRessource"`
	InscritPoleEmploi       bool    `json:"inscritPoleEmploi"`
	InscritPoleEmploiDepuis *string `json:"inscritPoleEmploiDepuis"`
	NumeroIDE               *string `json:"numeroIDE"`
	SalarieRQTH             bool    `json:"salarieRQTH"`
	SalarieOETH             bool    `json:"salarieOETH"`
	SalarieAideSociale      bool    `json:"salarieAideSociale"`
	SalarieBenefRSA         string  `json:"salarieBenefRSA"`
	SalarieBenefRSADepuis   *string `json:"salarieBenefRSADepuis"`
	SalarieBenefASS         bool    `json:"salarieBenefASS"`
	SalarieBenefASSDepuis   *string `json:"salarieBenefASSDepuis"`
	SalarieBenefAAH         bool    `json:"salarieBenefAAH"`
	SalarieBenefAAHDepuis   *string `json:"salarieBenefAAHDepuis"`
	SalarieBenefATA         bool    `json:"salarieBenefATA"`
	SalarieBenefATADepuis   *string `json:"salarieBenefATADepuis"`
	SalarieBenefARE         *bool   `json:"salarieBenefARE"`
	SalarieBenefAREDepuis   *string `json:"salarieBenefAREDepuis"`
}

// Record is one line of an upload file.
type Record struct {
	NumLigne          int       `json:"numLigne"`
	TypeMouvement     string    `json:"typeMouvement"`
	Siret             string    `json:"siret"`
	Mesure            string    `json:"mesure"`
	PersonnePhysique  Person    `json:"personnePhysique"`
	Adresse           Address   `json:"adresse"`
	SituationSalarie  Situation `json:"situationSalarie"`
	CodeTraitement    *string   `json:"codeTraitement"`
	LibelleTraitement *string   `json:"libelleTraitement"`
}

// BatchFile is the top-level upload document.
type BatchFile struct {
	MsgInformatif        *string  `json:"msgInformatif"`
	TelID                *string  `json:"telId"`
	LignesTelechargement []Record `json:"lignesTelechargement"`
}

var (
	stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	// ASP rule T030_c026_rg002: the extended address line is dropped rather
	// than degraded when it does not fit the accepted character set.
	additionalAddressPattern = regexp.MustCompile(`^[a-zA-Z0-9@ ]{0,32}$`)
)

// asciiUpper removes diacritics and upper-cases, the way ASP expects names
// and lane labels.
func asciiUpper(s string) string {
	out, _, err := transform.String(stripDiacritics, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(out)
}

// BuildRecord serializes one employee record into the ASP wire structure.
// It is a pure function of the record and its job application snapshot, and
// fails with the profile validation error when a required field is missing.
func BuildRecord(er *EmployeeRecord) (*Record, error) {
	if er.JobApplication == nil {
		return nil, ErrMissingJobApplication
	}
	if err := er.JobApplication.ValidateForEmployeeRecord(); err != nil {
		return nil, err
	}

	ja := er.JobApplication
	seeker := ja.JobSeeker
	profile := seeker.Profile

	lineNumber := 1
	if er.ASPBatchLineNumber != nil {
		lineNumber = *er.ASPBatchLineNumber
	}

	return &Record{
		NumLigne:          lineNumber,
		TypeMouvement:     MovementTypeCreate,
		Siret:             er.SIRET,
		Mesure:            MeasureForKind(ja.Company.Kind),
		PersonnePhysique:  buildPerson(er),
		Adresse:           buildAddress(profile),
		SituationSalarie:  buildSituation(er),
		CodeTraitement:    er.ASPProcessingCode,
		LibelleTraitement: er.ASPProcessingLabel,
	}, nil
}

func buildPerson(er *EmployeeRecord) Person {
	ja := er.JobApplication
	seeker := ja.JobSeeker
	profile := seeker.Profile

	person := Person{
		PassIAE:      er.ApprovalNumber,
		IDItou:       profile.ASPUID,
		Civilite:     civility(seeker),
		NomUsage:     asciiUpper(seeker.LastName),
		NomNaissance: nil,
		Prenom:       firstNames(seeker.FirstName),
		CodeComInsee: birthCommune(profile),
		PassDateDeb:  ja.Approval.StartAt.Format(aspDateLayout),
		PassDateFin:  ja.Approval.EndAt.Format(aspDateLayout),
	}
	if profile.BirthDate != nil {
		person.DateNaissance = profile.BirthDate.Format(aspDateLayout)
	}
	if profile.BirthCountry != nil {
		person.CodeInseePays = profile.BirthCountry.Code
		person.CodeGroupePays = profile.BirthCountry.Group
	}
	return person
}

// civility falls back on the NIR first digit when the title was never filled.
func civility(seeker *jobapplication.JobSeeker) string {
	if seeker.Title != "" {
		return string(seeker.Title)
	}
	if strings.HasPrefix(seeker.NIR, "1") {
		return string(jobapplication.TitleM)
	}
	if strings.HasPrefix(seeker.NIR, "2") {
		return string(jobapplication.TitleMME)
	}
	return ""
}

// firstNames upper-cases and truncates to the 30 characters ASP accepts,
// cutting on a word boundary.
func firstNames(raw string) string {
	names := asciiUpper(raw)
	if len(names) <= 30 {
		return names
	}
	truncated := names[:30]
	if idx := strings.LastIndex(truncated, " "); idx > 0 {
		return truncated[:idx]
	}
	return truncated
}

func birthCommune(profile *jobapplication.Profile) CodeComInsee {
	if profile.BirthPlace != nil {
		code := profile.BirthPlace.Code
		return CodeComInsee{CodeComInsee: &code, CodeDpt: profile.BirthPlace.DepartmentCode}
	}
	return CodeComInsee{CodeComInsee: nil, CodeDpt: departmentCodeForeignBorn}
}

func buildAddress(profile *jobapplication.Profile) Address {
	return Address{
		AdrNumeroVoie:       nullIfEmpty(profile.HexaLaneNumber),
		CodeExtensionVoie:   nullIfEmpty(profile.HexaStdExtension),
		CodeTypeVoie:        profile.HexaLaneType,
		AdrLibelleVoie:      laneLabel(profile.HexaLaneName),
		AdrCpltDistribution: additionalAddress(profile.HexaAdditionalAddress),
		CodeInseeCom:        profile.HexaCommune.Code,
		CodePostalCedex:     profile.HexaPostCode,
	}
}

// laneLabel strips diacritics and parentheses (ASP error 3330).
func laneLabel(lane string) string {
	return asciiUpper(strings.NewReplacer("(", "", ")", "").Replace(lane))
}

func additionalAddress(raw string) *string {
	if raw == "" || !additionalAddressPattern.MatchString(raw) {
		return nil
	}
	return &raw
}

func buildSituation(er *EmployeeRecord) Situation {
	ja := er.JobApplication
	profile := ja.JobSeeker.Profile

	var employerType *string
	if profile.IsEmployed {
		code := EmployerTypeForKind(ja.Company.Kind)
		employerType = &code
	}

	registered := profile.PoleEmploiID != ""
	var registeredSince, poleEmploiID *string
	if registered {
		registeredSince = nullIfEmpty(profile.PoleEmploiSince)
		poleEmploiID = nullIfEmpty(profile.PoleEmploiID)
	}

	return Situation{
		Orienteur:               PrescriberTypeFor(ja),
		NiveauFormation:         nullIfEmpty(profile.EducationLevel),
		SalarieEnEmploi:         profile.IsEmployed,
		SalarieTypeEmployeur:    employerType,
		SalarieSansEmploiDepuis: nullIfEmpty(profile.UnemployedSince),
		SalarieSansRessource:    profile.Resourceless,
		InscritPoleEmploi:       registered,
		InscritPoleEmploiDepuis: registeredSince,
		NumeroIDE:               poleEmploiID,
		SalarieRQTH:             profile.RQTHEmployee,
		SalarieOETH:             profile.OETHEmployee,
		SalarieAideSociale:      profile.SocialAllowance,
		SalarieBenefRSA:         profile.RSAAllocation,
		SalarieBenefRSADepuis:   nullIfEmpty(profile.RSASince),
		SalarieBenefASS:         profile.ASSAllocation,
		SalarieBenefASSDepuis:   nullIfEmpty(profile.ASSSince),
		SalarieBenefAAH:         profile.AAHAllocation,
		SalarieBenefAAHDepuis:   nullIfEmpty(profile.AAHSince),
	}
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Serialize renders the whole batch as the ASP upload document and enforces
// the file size cap.
func (b *Batch) Serialize() ([]byte, error) {
	lines := make([]Record, 0, len(b.Records))
	for _, er := range b.Records {
		record, err := BuildRecord(er)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", er.ID, err)
		}
		lines = append(lines, *record)
	}

	payload, err := json.Marshal(BatchFile{LignesTelechargement: lines})
	if err != nil {
		return nil, fmt.Errorf("marshal batch %s: %w", b.Filename, err)
	}
	if len(payload) > MaxBatchSizeBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrBatchFileTooLarge, len(payload))
	}
	return payload, nil
}
