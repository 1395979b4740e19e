package semverx

import "testing"

func TestSameMajor(t *testing.T) {
	v1 := MustParseVersion("1.2.3")
	v2 := MustParseVersion("1.9.0")
	v3 := MustParseVersion("2.0.0")

	if !v1.SameMajor(v2) {
		t.Errorf("1.2.3 and 1.9.0 should share a major line")
	}
	if v1.SameMajor(v3) {
		t.Errorf("1.2.3 and 2.0.0 should not share a major line")
	}
}

func TestSortAscending(t *testing.T) {
	vs := []Version{
		MustParseVersion("2.0.0"),
		MustParseVersion("1.0.0"),
		MustParseVersion("1.5.0"),
	}
	SortAscending(vs)

	want := []string{"1.0.0", "1.5.0", "2.0.0"}
	for i, w := range want {
		if vs[i].String() != w {
			t.Errorf("position %d: want %s, got %s", i, w, vs[i].String())
		}
	}
}

func TestCaretRequirementMatchesOwnVersion(t *testing.T) {
	v := MustParseVersion("1.4.2")
	req := Caret(v)

	if !req.Matches(v) {
		t.Errorf("caret requirement %q should match its own version", req.String())
	}
	if !req.Matches(MustParseVersion("1.9.0")) {
		t.Errorf("caret requirement %q should match a later minor within the same major", req.String())
	}
	if req.Matches(MustParseVersion("2.0.0")) {
		t.Errorf("caret requirement %q should not match the next major", req.String())
	}
}

func TestRequirementMatches(t *testing.T) {
	req := MustParseRequirement(">=1.0.0, <2.0.0")
	if !req.Matches(MustParseVersion("1.5.0")) {
		t.Errorf("expected 1.5.0 to satisfy %q", req.String())
	}
	if req.Matches(MustParseVersion("2.0.0")) {
		t.Errorf("expected 2.0.0 to not satisfy %q", req.String())
	}
}
