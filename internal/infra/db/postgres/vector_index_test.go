package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/scriptsage/internal/domain/embedding"
)

func TestExcludeParamNilIsEmptyArray(t *testing.T) {
	// ANY(NULL) would null the WHERE clause out and drop every neighbor;
	// a nil exclusion list must reach the driver as '{}', not NULL.
	v, err := excludeParam(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)

	v, err = excludeParam([]string{}).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)
}

func TestExcludeParamKeepsIDs(t *testing.T) {
	v, err := excludeParam([]string{"a", "b"}).Value()
	require.NoError(t, err)
	assert.Equal(t, `{"a","b"}`, v)
}

func TestVectorLiteral(t *testing.T) {
	vec := make(embedding.Vector, 3)
	vec[0] = 0.5
	vec[1] = -1
	assert.Equal(t, "[0.5,-1,0]", vectorLiteral(vec))
}
