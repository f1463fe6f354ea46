package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDefaults(t *testing.T) {
	p := Pagination{}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PageSize)
	assert.Equal(t, 0, p.Offset())

	p = Pagination{Page: 3, PageSize: 500}.Normalize()
	assert.Equal(t, MaxPageSize, p.PageSize)
	assert.Equal(t, 200, p.Offset())
}

func TestBuildPageInfo(t *testing.T) {
	info := BuildPageInfo(Pagination{Page: 2, PageSize: 20}, 41)
	assert.Equal(t, PageInfo{Page: 2, PageSize: 20, Total: 41, TotalPages: 3}, info)

	empty := BuildPageInfo(Pagination{}, 0)
	assert.Equal(t, 1, empty.TotalPages)
}
