package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseSweep(t *testing.T) {
	angles, err := parseSweep("90,60,120,90")
	if err != nil {
		t.Fatalf("parseSweep failed: %v", err)
	}
	if diff := cmp.Diff([]int{90, 60, 120, 90}, angles); diff != "" {
		t.Errorf("angles mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSweepTrimsSpaces(t *testing.T) {
	angles, err := parseSweep(" 0 , 180 ")
	if err != nil {
		t.Fatalf("parseSweep failed: %v", err)
	}
	if diff := cmp.Diff([]int{0, 180}, angles); diff != "" {
		t.Errorf("angles mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSweepRejectsGarbage(t *testing.T) {
	if _, err := parseSweep("90,abc"); err == nil {
		t.Error("expected error for non-numeric angle")
	}
}
