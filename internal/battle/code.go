package battle

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const codeBytes = 6

// newCode draws a random shareable battle code and retries until it is
// unused. The insert's unique constraint catches the window between this
// check and the write.
func (s *Service) newCode(ctx context.Context) (string, error) {
	for {
		buf := make([]byte, codeBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("battle: generate code: %w", err)
		}
		code := strings.ToUpper(hex.EncodeToString(buf))

		exists, err := s.battles.Exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
}
