package apierr

import "testing"

func TestConstructorsFormatMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"not found", NotFound("agent %q not found", "agent-1"), `agent "agent-1" not found`},
		{"validation", Validation("missing field %s", "name"), "missing field name"},
		{"unauthorized", Unauthorized("invalid token"), "invalid token"},
		{"forbidden", Forbidden("role %s denied", "viewer"), "role viewer denied"},
		{"conflict", Conflict("execution already running"), "execution already running"},
		{"unavailable", Unavailable("retries exhausted"), "retries exhausted"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Errorf("Error() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestErrorTypesAreDistinct(t *testing.T) {
	var err error = NotFound("x")
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected NotFound to produce *NotFoundError")
	}
	if _, ok := err.(*ValidationError); ok {
		t.Fatalf("expected NotFoundError to not also satisfy *ValidationError")
	}
}
