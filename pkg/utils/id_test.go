package utils

import (
	"strings"
	"testing"
)

func TestGenerateRunID(t *testing.T) {
	id1 := GenerateRunID()
	id2 := GenerateRunID()

	if id1 == "" {
		t.Error("GenerateRunID returned empty string")
	}
	if id1 == id2 {
		t.Error("GenerateRunID should return unique IDs")
	}
	if !strings.HasPrefix(id1, "run-") {
		t.Errorf("GenerateRunID should start with 'run-': %s", id1)
	}
	// run-YYYYMMDD-HHMMSS-xxxxxxxx
	if parts := strings.Split(id1, "-"); len(parts) != 4 {
		t.Errorf("GenerateRunID should have 4 parts: %s", id1)
	}
}

func TestIDUniqueness(t *testing.T) {
	numIDs := 1000
	ids := make(map[string]bool)

	for i := 0; i < numIDs; i++ {
		id := GenerateRunID()
		if ids[id] {
			t.Errorf("Duplicate ID generated: %s", id)
		}
		ids[id] = true
	}
}
