package version

import "testing"

func TestGet(t *testing.T) {
	if got := Get(); got != "0.1.0" {
		t.Errorf("Get() = %q, want 0.1.0", got)
	}
}

func TestGet_Blank(t *testing.T) {
	saved := versionContent
	t.Cleanup(func() { versionContent = saved })

	versionContent = "  \n"
	if got := Get(); got != "dev" {
		t.Errorf("Get() = %q, want dev", got)
	}
}
