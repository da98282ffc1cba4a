package ir

import "fmt"

// enum is implemented by the closed enumerations of this package.
type enum interface {
	~uint8
}

func enumString[T enum](v T, names []string) string {
	if int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("unknown(%d)", uint8(v))
}

func marshalEnum[T enum](v T, names []string, what string) ([]byte, error) {
	if int(v) >= len(names) {
		return nil, fmt.Errorf("invalid %s %d", what, uint8(v))
	}
	return []byte(names[v]), nil
}

func unmarshalEnum[T enum](text []byte, names []string, what string, dst *T) error {
	for i, name := range names {
		if name == string(text) {
			*dst = T(i)
			return nil
		}
	}
	return fmt.Errorf("unknown %s %q", what, text)
}
