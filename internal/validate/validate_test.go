package validate_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/xfer/internal/validate"
)

type target struct {
	URL     string `json:"url" validate:"required,xferurl"`
	Retries int    `json:"retries" validate:"gte=0,lte=10"`
	Skip    string `json:"-" validate:"omitempty,oneof=a b"`
}

func TestCheck(t *testing.T) {
	testCases := map[string]struct {
		in  target
		exp map[string]string
	}{
		"valid http":  {in: target{URL: "http://example.com/a"}},
		"valid file":  {in: target{URL: "file:///tmp/a"}},
		"valid ftps":  {in: target{URL: "ftps://example.com/a", Retries: 10}},
		"missing url": {in: target{}, exp: map[string]string{"url": "This field is required"}},
		"bad scheme": {
			in:  target{URL: "gopher://example.com"},
			exp: map[string]string{"url": "must be an absolute http, https, ftp, ftps, file URL"},
		},
		"relative": {
			in:  target{URL: "/just/a/path"},
			exp: map[string]string{"url": "must be an absolute http, https, ftp, ftps, file URL"},
		},
		"retries": {
			in:  target{URL: "https://example.com", Retries: 11},
			exp: map[string]string{"retries": "retries must be 10 or less"},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			err := validate.Check(&tc.in)
			if tc.exp == nil {
				if err != nil {
					t.Fatalf("expected no error, got: %v", err)
				}
				return
			}

			if diff := cmp.Diff(tc.exp, validate.Fields(err)); diff != "" {
				t.Errorf("unexpected field errors (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFieldErrors_Error(t *testing.T) {
	fe := validate.FieldErrors{
		{Field: "a", Err: "bad"},
		{Field: "b", Err: "worse"},
	}
	if got := fe.Error(); got != "a: bad; b: worse" {
		t.Errorf("Error() = %q", got)
	}
	if validate.Fields(nil) != nil {
		t.Error("expected nil fields for nil error")
	}
}
