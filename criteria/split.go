package criteria

import "fmt"

// splitTopLevel splits s at commas that sit outside every () and [] pair.
// Round and square brackets are tracked with independent depth counters.
func splitTopLevel(s string) ([]string, error) {
	var (
		parts  []string
		round  int
		square int
		start  int
	)
	for i, c := range s {
		switch c {
		case '(':
			round++
		case ')':
			round--
		case '[':
			square++
		case ']':
			square--
		case ',':
			if round == 0 && square == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
		if round < 0 || square < 0 {
			return nil, fmt.Errorf("unbalanced brackets at position %d", i)
		}
	}
	if round != 0 || square != 0 {
		return nil, fmt.Errorf("unbalanced brackets")
	}
	return append(parts, s[start:]), nil
}

// matchingClose returns the index of the bracket closing the one at open
func matchingClose(s string, open int, openCh, closeCh byte) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
