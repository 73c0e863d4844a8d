package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateRunID generates a run ID with a timestamp prefix
func GenerateRunID() string {
	timestamp := time.Now().UTC().Format("20060102-150405")
	short := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("run-%s-%s", timestamp, short)
}
