package leads

import (
	"strings"
	"testing"
)

func TestCaptureRequest_Validate(t *testing.T) {
	cases := []struct {
		name    string
		req     CaptureRequest
		wantErr []string
	}{
		{"phone only", CaptureRequest{Phone: "+55 (11) 98888-7777"}, nil},
		{"email only", CaptureRequest{Email: "ana@example.com"}, nil},
		{"no contact", CaptureRequest{Name: "Ana"}, []string{"phone", "email"}},
		{"bad email", CaptureRequest{Email: "ana@"}, []string{"email"}},
		{"bad phone", CaptureRequest{Phone: "call me"}, []string{"phone"}},
		{"bad source", CaptureRequest{Phone: "11988887777", Source: "billboard"}, []string{"source"}},
		{"long ref", CaptureRequest{Phone: "11988887777", PropertyRef: strings.Repeat("x", 65)}, []string{"property_ref"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Normalize().Validate()
			if len(tc.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected errors on %v", tc.wantErr)
			}
			fields := fieldErrors(err)
			for _, f := range tc.wantErr {
				if _, ok := fields[f]; !ok {
					t.Fatalf("expected error on %q, got %v", f, fields)
				}
			}
		})
	}
}

func TestCaptureRequest_Normalize(t *testing.T) {
	got := CaptureRequest{
		Name:    "  <Ana> Paula ",
		Email:   " ANA@Example.com ",
		Message: strings.Repeat("m", 1200),
	}.Normalize()

	if got.Name != "Ana Paula" {
		t.Fatalf("name = %q", got.Name)
	}
	if got.Email != "ana@example.com" {
		t.Fatalf("email = %q", got.Email)
	}
	if len(got.Message) != maxMessageChars {
		t.Fatalf("message not truncated: %d", len(got.Message))
	}
	if got.Source != SourceContactForm {
		t.Fatalf("source default = %q", got.Source)
	}
}
