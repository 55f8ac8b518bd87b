package jobapplication

// ValidateForEmployeeRecord checks that the snapshot carries every field the
// ASP record format requires. It gates both the READY transition and
// serialization, so a record that reached READY always serializes.
//
// All missing fields are collected, not only the first one, so the operator
// can fix the profile in a single pass.
func (ja *JobApplication) ValidateForEmployeeRecord() error {
	if ja.State != StateAccepted {
		return ErrMustBeAccepted
	}
	if ja.Approval == nil {
		return ErrMissingApproval
	}
	if ja.JobSeeker == nil || ja.JobSeeker.Profile == nil {
		return ErrMissingProfile
	}

	var missing []string
	profile := ja.JobSeeker.Profile

	if ja.JobSeeker.Title == "" {
		missing = append(missing, "title")
	}
	if ja.JobSeeker.LastName == "" {
		missing = append(missing, "last_name")
	}
	if ja.JobSeeker.FirstName == "" {
		missing = append(missing, "first_name")
	}
	if profile.BirthDate == nil {
		missing = append(missing, "birth_date")
	}
	if profile.BirthCountry == nil {
		missing = append(missing, "birth_country")
	} else if profile.BirthCountry.Code == FranceCountryCode && profile.BirthPlace == nil {
		// ASP rejects a French birth country without its INSEE commune.
		missing = append(missing, "birth_place")
	}
	if profile.HexaLaneType == "" {
		missing = append(missing, "hexa_lane_type")
	}
	if profile.HexaLaneName == "" {
		missing = append(missing, "hexa_lane_name")
	}
	if profile.HexaPostCode == "" {
		missing = append(missing, "hexa_post_code")
	}
	if profile.HexaCommune == nil {
		missing = append(missing, "hexa_commune")
	}

	if len(missing) > 0 {
		return &IncompleteProfileError{Missing: missing}
	}
	return nil
}
