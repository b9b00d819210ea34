package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Query
		want Query
	}{
		{name: "defaults", in: Query{}, want: Query{Page: 1, PerPage: 20}},
		{name: "keeps explicit", in: Query{Page: 3, PerPage: 5}, want: Query{Page: 3, PerPage: 5}},
		{name: "clamps page size", in: Query{Page: 1, PerPage: 10000}, want: Query{Page: 1, PerPage: maxPerPage}},
		{name: "trims search", in: Query{Search: "  jdoe "}, want: Query{Search: "jdoe", Page: 1, PerPage: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize(20))
		})
	}
}

func TestOffsetAndLike(t *testing.T) {
	q := Query{Search: "50%_Off", Page: 3, PerPage: 10}
	assert.Equal(t, 20, q.Offset())
	assert.Equal(t, `%50\%\_off%`, q.Like())
}

func TestHasNext(t *testing.T) {
	assert.True(t, Page[int]{Page: 1, Pages: 2}.HasNext())
	assert.False(t, Page[int]{Page: 2, Pages: 2}.HasNext())
	assert.False(t, Page[int]{Page: 1, Pages: 0}.HasNext())
}
