/*package sample selects random subsets of particles. Subsets are always
returned in ascending order, so that a subsampled file keeps the particle
ordering of its parent.
*/
package sample

import (
	"fmt"

	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
)

// Indices selects k of the indices 0, 1, ..., n-1 so that every k-element
// subset is equally likely, and returns them in ascending order. It makes a
// single pass over the candidates and never stores more than k of them. The
// result is written to dest, which is resized as needed.
//
// Index i is accepted with probability (k - selected) / (n - i), so one draw
// is taken from stream per candidate until k have been accepted. When k == n
// nothing is drawn.
func Indices(n, k int, stream Stream, dest []int) ([]int, error) {
	if n < 0 || k < 0 {
		return nil, fmt.Errorf("%w: cannot select %d of %d particles.",
			g_error.ErrSampleSizeExceeded, k, n)
	} else if k > n {
		return nil, fmt.Errorf("%w: cannot select %d particles when only "+
			"%d are present.", g_error.ErrSampleSizeExceeded, k, n)
	}

	if cap(dest) < k {
		dest = make([]int, k)
	}
	dest = dest[:k]
	if k == n {
		for i := range dest {
			dest[i] = i
		}
		return dest, nil
	}

	selected := 0
	for i := 0; i < n && selected < k; i++ {
		if float64(n-i)*stream.Uniform() < float64(k-selected) {
			dest[selected] = i
			selected++
		}
	}

	if selected != k {
		panic(fmt.Sprintf("Internal error: selected %d of %d particles.",
			selected, k))
	}
	return dest, nil
}
