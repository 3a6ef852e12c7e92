package util

func ReverseSlice[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func ClipSlice[T any](s []T) []T {
	return s[:len(s):len(s)]
}

// IsSubset reports whether every element of sub is in set.
func IsSubset[T comparable](set map[T]struct{}, sub []T) bool {
	for _, v := range sub {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}

func SetOf[T comparable](s []T) map[T]struct{} {
	m := make(map[T]struct{}, len(s))
	for _, v := range s {
		m[v] = struct{}{}
	}
	return m
}
