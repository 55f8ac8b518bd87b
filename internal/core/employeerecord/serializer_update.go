package employeerecord

import (
	"time"
)

// Update notifications reuse the creation wire format with movement type
// "M". Some integrated records predate the address and birth country
// requirements, so missing blocks fall back to neutral values ASP accepts
// for an update: the period change is the only payload that matters.
const (
	fallbackLaneNumber   = "3"
	fallbackLaneType     = "AV"
	fallbackLaneName     = "DE BLIDA"
	fallbackCommuneCode  = "57463"
	fallbackPostCode     = "57000"
	fallbackCountryCode  = "102"
	fallbackCountryGroup = "3"
)

// BuildUpdateRecord serializes an approval period change for an integrated
// record. startAt and endAt override the snapshot approval period.
func BuildUpdateRecord(er *EmployeeRecord, startAt, endAt time.Time, lineNumber int) (*Record, error) {
	if er.JobApplication == nil {
		return nil, ErrMissingJobApplication
	}
	ja := er.JobApplication
	if ja.JobSeeker == nil || ja.JobSeeker.Profile == nil {
		return nil, ErrMissingJobApplication
	}
	profile := ja.JobSeeker.Profile

	person := buildPerson(er)
	person.PassDateDeb = startAt.Format(aspDateLayout)
	person.PassDateFin = endAt.Format(aspDateLayout)
	if profile.BirthCountry == nil {
		person.CodeInseePays = fallbackCountryCode
		person.CodeGroupePays = fallbackCountryGroup
		person.CodeComInsee = CodeComInsee{CodeDpt: departmentCodeForeignBorn}
	}

	var address Address
	if profile.HexaAddressFilled() {
		address = buildAddress(profile)
	} else {
		lane := fallbackLaneNumber
		address = Address{
			AdrNumeroVoie:   &lane,
			CodeTypeVoie:    fallbackLaneType,
			AdrLibelleVoie:  fallbackLaneName,
			CodeInseeCom:    fallbackCommuneCode,
			CodePostalCedex: fallbackPostCode,
		}
	}

	return &Record{
		NumLigne:         lineNumber,
		TypeMouvement:    MovementTypeUpdate,
		Siret:            er.SIRET,
		Mesure:           MeasureForKind(ja.Company.Kind),
		PersonnePhysique: person,
		Adresse:          address,
		SituationSalarie: buildSituation(er),
	}, nil
}
