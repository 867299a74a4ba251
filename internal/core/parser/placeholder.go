package parser

import (
	"context"
	"fmt"

	"docstream/internal/models"
)

// Placeholder reserves a tag whose backend does not exist yet. It fails
// before any dispatch could happen; no file is read, no call is made.
type Placeholder struct {
	Tag string
}

func (p Placeholder) Parse(_ context.Context, _ []byte) ([]models.Page, error) {
	return nil, fmt.Errorf("%w: parser %q is a placeholder for future development, use \"simple\" or \"gemini\" instead",
		models.ErrNotImplemented, p.Tag)
}
