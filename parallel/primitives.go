package parallel

import (
	"cmp"
	"slices"
)

// Map writes fn(in[i]) to out[i]. out must be at least as long as in.
func Map[T, U any](e *Executor, in []T, out []U, fn func(T) U) {
	out = out[:len(in)]
	e.For(len(in), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = fn(in[i])
		}
	})
}

// Gather writes src[idx[i]] to dst[i].
func Gather[T any](e *Executor, src []T, idx []uint32, dst []T) {
	dst = dst[:len(idx)]
	e.For(len(idx), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			dst[i] = src[idx[i]]
		}
	})
}

// Reduce folds in with op, starting every chunk from identity. op must be
// associative.
func Reduce[T any](e *Executor, in []T, identity T, op func(a, b T) T) T {
	e = orDefault(e)
	spans := e.split(len(in))
	partial := make([]T, len(spans))
	_ = e.each(len(spans), func(c int) error {
		acc := identity
		for i := spans[c].lo; i < spans[c].hi; i++ {
			acc = op(acc, in[i])
		}
		partial[c] = acc
		return nil
	})
	acc := identity
	for _, p := range partial {
		acc = op(acc, p)
	}
	return acc
}

// ExclusiveScan writes the exclusive prefix sum of in to out and returns the
// total. in and out may be the same slice.
func ExclusiveScan(e *Executor, in, out []uint32) uint32 {
	e = orDefault(e)
	out = out[:len(in)]
	spans := e.split(len(in))
	sums := make([]uint32, len(spans))
	_ = e.each(len(spans), func(c int) error {
		var acc uint32
		for i := spans[c].lo; i < spans[c].hi; i++ {
			acc += in[i]
		}
		sums[c] = acc
		return nil
	})
	var total uint32
	for c, s := range sums {
		sums[c] = total
		total += s
	}
	_ = e.each(len(spans), func(c int) error {
		acc := sums[c]
		for i := spans[c].lo; i < spans[c].hi; i++ {
			v := in[i]
			out[i] = acc
			acc += v
		}
		return nil
	})
	return total
}

// InclusiveScan writes out[i] = in[0] op in[1] op ... op in[i]. op must be
// associative. in and out may be the same slice.
func InclusiveScan[T any](e *Executor, in, out []T, op func(a, b T) T) {
	e = orDefault(e)
	out = out[:len(in)]
	spans := e.split(len(in))
	sums := make([]T, len(spans))
	_ = e.each(len(spans), func(c int) error {
		acc := in[spans[c].lo]
		for i := spans[c].lo + 1; i < spans[c].hi; i++ {
			acc = op(acc, in[i])
		}
		sums[c] = acc
		return nil
	})
	// carry[c] is the fold of every chunk before c
	carry := make([]T, len(spans))
	for c := 1; c < len(spans); c++ {
		if c == 1 {
			carry[c] = sums[0]
			continue
		}
		carry[c] = op(carry[c-1], sums[c-1])
	}
	_ = e.each(len(spans), func(c int) error {
		lo, hi := spans[c].lo, spans[c].hi
		acc := in[lo]
		if c > 0 {
			acc = op(carry[c], acc)
		}
		out[lo] = acc
		for i := lo + 1; i < hi; i++ {
			acc = op(acc, in[i])
			out[i] = acc
		}
		return nil
	})
}

// Compact returns, in ascending order, the positions i where flags[i] is
// true.
func Compact(e *Executor, flags []bool) []uint32 {
	pos := make([]uint32, len(flags))
	e.For(len(flags), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if flags[i] {
				pos[i] = 1
			}
		}
	})
	total := ExclusiveScan(e, pos, pos)
	out := make([]uint32, total)
	e.For(len(flags), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if flags[i] {
				out[pos[i]] = uint32(i)
			}
		}
	})
	return out
}

type pair[K cmp.Ordered] struct {
	key K
	val uint32
}

func comparePairs[K cmp.Ordered](a, b pair[K]) int {
	return cmp.Compare(a.key, b.key)
}

// SortByKey sorts keys ascending and applies the same permutation to vals.
// The sort is stable: equal keys keep their relative input order.
func SortByKey[K cmp.Ordered](e *Executor, keys []K, vals []uint32) {
	if len(keys) != len(vals) {
		panic("parallel: SortByKey with keys and vals of different length")
	}
	n := len(keys)
	if n < 2 {
		return
	}
	e = orDefault(e)
	src := make([]pair[K], n)
	e.For(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			src[i] = pair[K]{key: keys[i], val: vals[i]}
		}
	})

	runs := e.split(n)
	_ = e.each(len(runs), func(c int) error {
		slices.SortStableFunc(src[runs[c].lo:runs[c].hi], comparePairs[K])
		return nil
	})

	dst := make([]pair[K], n)
	for len(runs) > 1 {
		next := make([]span, (len(runs)+1)/2)
		_ = e.each(len(next), func(m int) error {
			left := runs[2*m]
			if 2*m+1 == len(runs) {
				copy(dst[left.lo:left.hi], src[left.lo:left.hi])
				next[m] = left
				return nil
			}
			right := runs[2*m+1]
			mergePairs(src[left.lo:left.hi], src[right.lo:right.hi], dst[left.lo:right.hi])
			next[m] = span{lo: left.lo, hi: right.hi}
			return nil
		})
		src, dst = dst, src
		runs = next
	}

	e.For(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			keys[i] = src[i].key
			vals[i] = src[i].val
		}
	})
}

// mergePairs merges two sorted runs, taking from a on ties.
func mergePairs[K cmp.Ordered](a, b, out []pair[K]) {
	i, j, o := 0, 0, 0
	for i < len(a) && j < len(b) {
		if cmp.Less(b[j].key, a[i].key) {
			out[o] = b[j]
			j++
		} else {
			out[o] = a[i]
			i++
		}
		o++
	}
	o += copy(out[o:], a[i:])
	copy(out[o:], b[j:])
}
