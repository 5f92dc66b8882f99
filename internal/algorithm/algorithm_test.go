package algorithm

import (
	"errors"
	"testing"

	"github.com/bearing-monitor/station/internal/param"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constAlgorithm struct{ summary string }

func (a constAlgorithm) Solve(Data, *param.Set) (Result, error) {
	return NewResult(a.summary), nil
}

func (constAlgorithm) DefaultParams() *param.Set { return param.NewSet() }

func TestCatalog(t *testing.T) {
	c := NewCatalog(
		Entry{Name: "B", New: func() Algorithm { return constAlgorithm{"b"} }},
		Entry{Name: "A", New: func() Algorithm { return constAlgorithm{"a"} }},
	)
	assert.Equal(t, []string{"B", "A"}, c.Names())

	alg, err := c.Algorithm("A")
	require.NoError(t, err)
	r, err := alg.Solve(Data{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", r.Summary)

	_, err = c.Algorithm("C")
	assert.True(t, errors.Is(err, ErrUnknownAlgorithm))
}

func TestRequireSet(t *testing.T) {
	set := param.NewSet(
		param.MustNew("a", param.Int, 1),
		param.MustNew("b", param.Int, nil),
	)
	err := RequireSet("X", set)
	var ae *Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "X", ae.Algorithm)
	assert.Contains(t, err.Error(), "parameter b is not set")

	require.NoError(t, set.SetValue("b", 2))
	assert.NoError(t, RequireSet("X", set))
}

func TestNewResultKeepsOrder(t *testing.T) {
	r := NewResult("s",
		NamedArtifact{Name: "z", Artifact: Artifact{Title: "Z"}},
		NamedArtifact{Name: "a", Artifact: Artifact{Title: "A"}},
	)
	assert.Equal(t, []string{"z", "a"}, r.Names())
	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("b"))
}
