//go:build !linux

package copier

import (
	"fmt"
	"os"

	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
)

func newPlatform(kind string, src *os.File) (Strategy, error) {
	for _, s := range Strategies {
		if s == kind {
			return nil, fmt.Errorf("%w: the '%s' copy strategy is only "+
				"available on Linux. Use '%s' instead.",
				g_error.ErrInvalidConfig, kind, Buffered)
		}
	}
	return nil, unknownStrategy(kind)
}
