package sources

import (
	"crypto/sha256"
	"fmt"
)

// generateHash gives posts without a numeric id a stable identifier.
func generateHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}
