package transfer

import (
	"errors"
	"testing"

	"github.com/gip-inclusion/employee-records/internal/core/employeerecord"
)

func TestParseFeedback(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"msgInformatif": "Fichier traité",
		"lignesTelechargement": [
			{"numLigne": 1, "typeMouvement": "C", "siret": "33055039301440", "codeTraitement": "0000", "libelleTraitement": "OK"},
			{"numLigne": 2, "typeMouvement": "M", "codeTraitement": null}
		]
	}`)

	lines, err := ParseFeedback(payload)
	if err != nil {
		t.Fatalf("ParseFeedback: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0].NumLigne != 1 || lines[0].CodeTraitement == nil || *lines[0].CodeTraitement != "0000" {
		t.Fatalf("first line = %+v", lines[0])
	}
	if lines[1].TypeMouvement != "M" || lines[1].CodeTraitement != nil {
		t.Fatalf("second line = %+v", lines[1])
	}
}

func TestParseFeedback_Malformed(t *testing.T) {
	t.Parallel()

	if _, err := ParseFeedback([]byte("not json")); err == nil {
		t.Fatal("malformed payload accepted")
	}
}

func TestUploadFilenameFromFeedback(t *testing.T) {
	t.Parallel()

	got, err := UploadFilenameFromFeedback("RIAE_FS_20230602140509_FichierRetour.json")
	if err != nil {
		t.Fatalf("UploadFilenameFromFeedback: %v", err)
	}
	if want := "RIAE_FS_20230602140509.json"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	_, err = UploadFilenameFromFeedback("notes.txt")
	if !errors.Is(err, employeerecord.ErrBadFeedbackFilename) {
		t.Fatalf("err = %v, want ErrBadFeedbackFilename", err)
	}
}
