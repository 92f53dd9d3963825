package llm

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnsureBatchID returns the given prompt-log batch ID, or mints a
// fresh one when it is empty or malformed. Batch IDs group every
// completion of one server run in the prompt log.
func EnsureBatchID(s string) string {
	if isValidBatchID(s) {
		return s
	}
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.NewString())
}

func isValidBatchID(s string) bool {
	return s != "" && len(s) <= 64
}
