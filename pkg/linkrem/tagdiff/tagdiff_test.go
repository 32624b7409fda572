package tagdiff

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	got := Normalize([]string{" work", "news ", "", "work", "  ", "Work"})
	want := []string{"work", "news", "Work"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		field string
		want  []string
	}{
		{"empty", "", []string{}},
		{"blank", "   ", []string{}},
		{"single", "go", []string{"go"}},
		{"trims and dedupes", " go, rust ,go,,", []string{"go", "rust"}},
		{"case sensitive", "Go,go", []string{"Go", "go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.field)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDiff(t *testing.T) {
	p := Diff([]string{"work", "news"}, []string{"news", "urgent"})

	if !reflect.DeepEqual(p.Attach, []string{"urgent"}) {
		t.Errorf("Expected attach [urgent], got %v", p.Attach)
	}
	if !reflect.DeepEqual(p.Detach, []string{"work"}) {
		t.Errorf("Expected detach [work], got %v", p.Detach)
	}
}

func TestDiffEmptyDesiredClearsAll(t *testing.T) {
	p := Diff([]string{"b", "a"}, nil)

	if len(p.Attach) != 0 {
		t.Errorf("Expected nothing to attach, got %v", p.Attach)
	}
	if !reflect.DeepEqual(p.Detach, []string{"a", "b"}) {
		t.Errorf("Expected detach [a b], got %v", p.Detach)
	}
}

func TestDiffSameSetIsEmpty(t *testing.T) {
	p := Diff([]string{"a", "b"}, []string{"b", " a", "a"})
	if !p.Empty() {
		t.Errorf("Expected empty plan, got %+v", p)
	}
}

func TestApplyReachesDesiredSet(t *testing.T) {
	cases := []struct {
		current []string
		desired []string
	}{
		{[]string{"work", "news"}, []string{"news", "urgent"}},
		{nil, []string{"a", "b"}},
		{[]string{"a", "b"}, nil},
		{[]string{"a"}, []string{"a"}},
		{[]string{"x", "y", "z"}, []string{"z", "w", "w", " x "}},
	}

	for _, c := range cases {
		got := NewSet(Apply(c.current, Diff(c.current, c.desired)))
		want := NewSet(Normalize(c.desired))
		if !got.Equal(want) {
			t.Errorf("Apply(%v, Diff(%v, %v)) = %v, want %v", c.current, c.current, c.desired, got.Sorted(), want.Sorted())
		}
	}
}

func TestSetEqual(t *testing.T) {
	if !NewSet([]string{"a", "b"}).Equal(NewSet([]string{"b", "a"})) {
		t.Error("Expected sets to be equal")
	}
	if NewSet([]string{"a"}).Equal(NewSet([]string{"a", "b"})) {
		t.Error("Expected sets of different size to differ")
	}
	if NewSet([]string{"a", "c"}).Equal(NewSet([]string{"a", "b"})) {
		t.Error("Expected sets with different members to differ")
	}
}
