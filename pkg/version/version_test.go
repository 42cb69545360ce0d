package version

import "testing"

func TestCompareOrdering(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.2", "1.2.1", -1},
		{"1.0.0", "1.0.0-rc1", 1},
		{"2.0.0", "1.9.9", 1},
		{"6.5-20250809", "6.5.0", 1}, // documented open question: total order, not distro policy
		{"1.0.0a", "1.0.0b", -1},
	}
	for _, c := range cases {
		got := Compare(c.a, c.b)
		norm := func(x int) int {
			switch {
			case x < 0:
				return -1
			case x > 0:
				return 1
			default:
				return 0
			}
		}
		if norm(got) != c.want {
			t.Errorf("Compare(%q,%q) = %d, want sign %d", c.a, c.b, got, c.want)
		}
	}
}

func TestCompareReflexive(t *testing.T) {
	versions := []string{"1.0.0", "2024.09.01", "1.2.3-rc.4", "0.1"}
	for _, v := range versions {
		if !Equal(v, v) {
			t.Errorf("Equal(%q,%q) = false, want true", v, v)
		}
	}
}

func TestConstraintSatisfies(t *testing.T) {
	c := &Constraint{Operator: OpGTE, Version: "1.2.0"}
	if !c.Satisfies("1.2.0") {
		t.Error("expected 1.2.0 >= 1.2.0")
	}
	if !c.Satisfies("1.3.0") {
		t.Error("expected 1.3.0 >= 1.2.0")
	}
	if c.Satisfies("1.1.0") {
		t.Error("expected 1.1.0 not >= 1.2.0")
	}
}

func TestNilConstraintAlwaysSatisfies(t *testing.T) {
	var c *Constraint
	if !c.Satisfies("anything") {
		t.Error("nil constraint must always be satisfied")
	}
}

func TestParseOperator(t *testing.T) {
	for _, s := range []string{">=", "<=", ">", "<", "="} {
		if _, ok := ParseOperator(s); !ok {
			t.Errorf("expected %q to parse", s)
		}
	}
	if _, ok := ParseOperator("~>"); ok {
		t.Error("expected ~> to be rejected")
	}
}
