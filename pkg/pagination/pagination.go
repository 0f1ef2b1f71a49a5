package pagination

import (
	"fmt"
	"strconv"

	"nutritrack-signaling/pkg/constants"
)

// Params represents limit/offset query parameters
type Params struct {
	Limit  int
	Offset int
}

// Parse parses limit and offset query values, clamping limit to [1, MaxPageSize]
func Parse(limitStr, offsetStr string) (*Params, error) {
	p := &Params{Limit: constants.DefaultPageSize}

	if limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, fmt.Errorf("invalid limit parameter: %w", err)
		}
		p.Limit = l
	}
	if p.Limit < 1 {
		p.Limit = 1
	}
	if p.Limit > constants.MaxPageSize {
		p.Limit = constants.MaxPageSize
	}

	if offsetStr != "" {
		o, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, fmt.Errorf("invalid offset parameter: %w", err)
		}
		if o > 0 {
			p.Offset = o
		}
	}

	return p, nil
}
