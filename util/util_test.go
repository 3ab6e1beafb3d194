package util_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/biologging/mtag/util"
)

func ExampleFloat64SliceToCSV() {
	fmt.Println(util.Float64SliceToCSV([]float64{1.5, 2.25, 3}, 'G', 3))
	// Output: 1.5,2.25,3
}

func TestFloat64SliceToCSV(t *testing.T) {
	inp := []float64{1, 2, 3}
	expected := "1,2,3"
	out := util.Float64SliceToCSV(inp, 'G', 3)
	if expected != out {
		t.Errorf("expected %s got %s", expected, out)
	}
}

func TestMergeErrorsAllNil(t *testing.T) {
	if err := util.MergeErrors([]error{nil, nil}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestMergeErrorsKeepsMessages(t *testing.T) {
	e1 := errors.New("first")
	e2 := errors.New("second")
	err := util.MergeErrors([]error{e1, nil, e2})
	if err == nil {
		t.Fatal("expected an error")
	}
	expected := "first\nsecond"
	if err.Error() != expected {
		t.Errorf("expected %q got %q", expected, err.Error())
	}
}
