package formula

import (
	"errors"
	"math"
	"testing"
)

func TestEval(t *testing.T) {
	tests := []struct {
		formula string
		n       float64
		want    float64
	}{
		{"42", 0, 42},
		{"1.5", 0, 1.5},
		{"N", 3.25, 3.25},
		{"n", 2, 2},
		{"N + 1", 2, 3},
		{"2 * N - 1", 3, 5},
		{"100 / 4", 0, 25},
		{"1 + 2 * 3", 0, 7},
		{"(1 + 2) * 3", 0, 9},
		{"abs(N)", -4, 4},
		{"abs(N) * 100", -2.5, 250},
		{"-N", 5, -5},
		{"10 - -2", 0, 12},
		{"abs(N - 10)", 4, 6},
	}
	for _, tt := range tests {
		got, err := Eval(tt.formula, tt.n)
		if err != nil {
			t.Errorf("Eval(%q, %v) returned error: %v", tt.formula, tt.n, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Eval(%q, %v) = %v, want %v", tt.formula, tt.n, got, tt.want)
		}
	}
}

func TestEvalErrors(t *testing.T) {
	bad := []string{
		"",
		"1 +",
		"(1 + 2",
		"1 + 2)",
		"foo",
		"max(1, 2)",
		"N N",
		"1..2",
		"abs 3",
		"$",
	}
	for _, formula := range bad {
		if _, err := Eval(formula, 1); err == nil {
			t.Errorf("Eval(%q) succeeded, want error", formula)
		}
	}
}

func TestEvalDivideByZero(t *testing.T) {
	_, err := Eval("1 / 0", 0)
	if !errors.Is(err, ErrDivideByZero) {
		t.Errorf("Eval(1/0) error = %v, want ErrDivideByZero", err)
	}

	_, err = Eval("10 / N", 0)
	if !errors.Is(err, ErrDivideByZero) {
		t.Errorf("Eval(10/N) with N=0 error = %v, want ErrDivideByZero", err)
	}
}

func TestEvalDeterministic(t *testing.T) {
	first, err := Eval("abs(N) * 2 + 1", -3.7)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if math.Abs(first-8.4) > 1e-9 {
		t.Fatalf("Eval = %v, want 8.4", first)
	}
	for i := 0; i < 10; i++ {
		got, err := Eval("abs(N) * 2 + 1", -3.7)
		if err != nil {
			t.Fatalf("Eval returned error: %v", err)
		}
		if got != first {
			t.Fatalf("Eval = %v on repeat, want %v", got, first)
		}
	}
}
