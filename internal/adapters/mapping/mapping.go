// Package mapping loads the optional manual identity override file that
// pairs spreadsheet assignee names with code-host logins.
package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/teamlens/teamlens/pkg/logger"
)

// Keys starting with this marker are file comments, not mappings.
const commentPrefix = "_"

// Load reads a JSON object of assignee name to login. A missing file is not
// an error; manual mapping is optional and an empty map disables the pass.
func Load(ctx context.Context, path string) (map[string]string, error) {
	log := logger.Named("mapping")

	if path == "" {
		return map[string]string{}, nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Info(ctx, "no manual identity map found", logger.String("path", path))
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadMapping, path, err)
	}

	var parsed map[string]string
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseMapping, path, err)
	}

	out := make(map[string]string, len(parsed))
	for name, login := range parsed {
		if strings.HasPrefix(name, commentPrefix) {
			continue
		}
		out[name] = login
	}

	log.Info(ctx, "manual identity map loaded",
		logger.String("path", path),
		logger.Int("entries", len(out)))

	return out, nil
}
