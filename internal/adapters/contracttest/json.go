package contracttest

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cercia-labs/cercia-core/internal/platform/jsonx"
)

// jsonEqual compares documents structurally: jsonb and some drivers re-serialize
// with different key order or spacing.
func jsonEqual(t *testing.T, a, b []byte) bool {
	t.Helper()
	var va, vb any
	if err := jsonx.Unmarshal(a, &va); err != nil {
		t.Fatalf("decode %s: %v", a, err)
	}
	if err := jsonx.Unmarshal(b, &vb); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	return cmp.Equal(va, vb)
}
