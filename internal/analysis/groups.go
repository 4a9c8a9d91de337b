package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/ironsheep/droplet-assay-mcp/internal/config"
)

// Group is a named set of 0-based ROI indices.
type Group struct {
	Name    string `json:"name" yaml:"name"`
	Members []int  `json:"members" yaml:"members"`
}

// span returns the group covering [first, last].
func span(first, last int) Group {
	return Group{
		Name:    fmt.Sprintf("%d-%d", first, last),
		Members: lo.RangeFrom(first, last-first+1),
	}
}

// Halves12 splits twelve droplets into the first and the last six.
func Halves12() []Group {
	return []Group{span(0, 5), span(6, 11)}
}

// Triples12 splits twelve droplets into four groups of three.
func Triples12() []Group {
	return []Group{span(0, 2), span(3, 5), span(6, 8), span(9, 11)}
}

// Quad15 is the four-group layout of a fifteen-droplet plate.
func Quad15() []Group {
	return []Group{span(0, 5), span(9, 11), span(6, 8), span(12, 14)}
}

// All puts the first n ROIs into one group.
func All(n int) []Group {
	if n < 1 {
		return []Group{{Name: "all", Members: []int{}}}
	}
	g := span(0, n-1)
	g.Name = "all"
	return []Group{g}
}

// DefaultGroups returns the grouping used when none is requested: halves for
// twelve ROIs, Quad15 for fifteen, a single group otherwise.
func DefaultGroups(n int) []Group {
	switch n {
	case 12:
		return Halves12()
	case 15:
		return Quad15()
	default:
		return All(n)
	}
}

// ParseGroups parses a comma separated list of 0-based ranges ("0-5") and
// single indices ("7").
//
// Example:
//
//	ParseGroups("0-5,6-11") // two groups of six
func ParseGroups(s string) ([]Group, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: empty grouping", config.ErrConfiguration)
	}

	var groups []Group
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if a, b, ok := strings.Cut(tok, "-"); ok {
			first, err1 := strconv.Atoi(strings.TrimSpace(a))
			last, err2 := strconv.Atoi(strings.TrimSpace(b))
			if err1 != nil || err2 != nil || first < 0 || last < first {
				return nil, fmt.Errorf("%w: invalid range %q", config.ErrConfiguration, tok)
			}
			groups = append(groups, span(first, last))
			continue
		}
		i, err := strconv.Atoi(tok)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("%w: invalid group %q", config.ErrConfiguration, tok)
		}
		groups = append(groups, Group{Name: tok, Members: []int{i}})
	}
	return groups, nil
}

// SchemeByName resolves a grouping by name for n ROIs. Known names are
// "default" (or empty), "halves", "triples", "quad15" and "all"; anything
// else is parsed with ParseGroups.
func SchemeByName(name string, n int) ([]Group, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return DefaultGroups(n), nil
	case "halves":
		return Halves12(), nil
	case "triples":
		return Triples12(), nil
	case "quad15":
		return Quad15(), nil
	case "all":
		return All(n), nil
	}
	return ParseGroups(name)
}

// members returns the indices of g below n.
func (g Group) members(n int) []int {
	return lo.Filter(g.Members, func(m int, _ int) bool { return m >= 0 && m < n })
}
