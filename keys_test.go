package symmem_test

import (
	"testing"

	"github.com/symmem/symmem"
)

func TestHeapRefKeyInfo(t *testing.T) {
	t.Run("Region", func(t *testing.T) {
		if got := symmem.HeapRefKeyInfo.Region(Ref(3)); !got.Contains(3) || got.Contains(4) {
			t.Fatalf("unexpected region: %s", got)
		}
		if got := symmem.HeapRefKeyInfo.Region(RefVar("p")); !got.Contains(-5) {
			t.Fatalf("unexpected region: %s", got)
		}
	})

	t.Run("Unordered", func(t *testing.T) {
		defer func() {
			if r := recover(); r != "assert: heap references are not ordered" {
				t.Fatalf("unexpected panic: %v", r)
			}
		}()
		symmem.HeapRefKeyInfo.CmpConcretely(Ref(1), Ref(2))
	})
}
