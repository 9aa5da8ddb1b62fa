package resolution

import "fmt"

// ClassifyMode selects how resolved references are typed.
type ClassifyMode string

const (
	// UseOnly types every resolved reference as Use.
	UseOnly ClassifyMode = "use-only"
	// AST classifies each reference from its syntax context.
	AST ClassifyMode = "ast"
)

// ParseClassifyMode parses a mode name. The empty string selects AST.
func ParseClassifyMode(s string) (ClassifyMode, error) {
	switch ClassifyMode(s) {
	case UseOnly:
		return UseOnly, nil
	case AST, "":
		return AST, nil
	default:
		return "", fmt.Errorf("resolution: unknown classify mode %q (want %s or %s)", s, UseOnly, AST)
	}
}

func (m ClassifyMode) String() string {
	return string(m)
}
