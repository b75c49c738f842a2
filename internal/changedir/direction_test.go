package changedir

import "testing"

func TestCombine(t *testing.T) {
	cases := []struct {
		a, b Direction
		want Direction
		err  bool
	}{
		{NoChange, NoChange, NoChange, false},
		{NoChange, Relaxed, Relaxed, false},
		{Relaxed, NoChange, Relaxed, false},
		{NoChange, Constrained, Constrained, false},
		{Relaxed, Relaxed, Relaxed, false},
		{Constrained, Constrained, Constrained, false},
		{Relaxed, Constrained, 0, true},
		{Constrained, Relaxed, 0, true},
	}
	for _, c := range cases {
		got, err := Combine(c.a, c.b)
		if c.err {
			if err == nil {
				t.Errorf("Combine(%v, %v): expected error, got %v", c.a, c.b, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Combine(%v, %v): unexpected error %v", c.a, c.b, err)
		}
		if got != c.want {
			t.Errorf("Combine(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestNot(t *testing.T) {
	if Not(Relaxed) != Constrained {
		t.Errorf("Not(Relaxed) should be Constrained")
	}
	if Not(Constrained) != Relaxed {
		t.Errorf("Not(Constrained) should be Relaxed")
	}
	if Not(NoChange) != NoChange {
		t.Errorf("Not(NoChange) should be NoChange")
	}
}

func TestOrAnd(t *testing.T) {
	if d, ok := Or(Relaxed, Constrained); !ok || d != Relaxed {
		t.Errorf("Or(Relaxed, Constrained) = %v, %v, want Relaxed, true", d, ok)
	}
	if d, ok := Or(Constrained, Constrained); !ok || d != Constrained {
		t.Errorf("Or(Constrained, Constrained) = %v, %v, want Constrained, true", d, ok)
	}
	if d, ok := And(Relaxed, Constrained); !ok || d != Constrained {
		t.Errorf("And(Relaxed, Constrained) = %v, %v, want Constrained, true", d, ok)
	}
	if d, ok := And(Relaxed, Relaxed); !ok || d != Relaxed {
		t.Errorf("And(Relaxed, Relaxed) = %v, %v, want Relaxed, true", d, ok)
	}
	if d, ok := Or(NoChange, NoChange); !ok || d != NoChange {
		t.Errorf("Or(NoChange, NoChange) = %v, %v, want NoChange, true", d, ok)
	}
	if d, ok := And(NoChange, NoChange); !ok || d != NoChange {
		t.Errorf("And(NoChange, NoChange) = %v, %v, want NoChange, true", d, ok)
	}
}
