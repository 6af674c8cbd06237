package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLikeSetToggle(t *testing.T) {
	var s LikeSet
	s = s.Toggle("u2")
	assert.Equal(t, LikeSet{"u2"}, s)

	s = s.Toggle("u3")
	assert.Equal(t, LikeSet{"u2", "u3"}, s)

	s = s.Toggle("u2")
	assert.Equal(t, LikeSet{"u3"}, s)
	assert.False(t, s.Has("u2"))
	assert.True(t, s.Has("u3"))
}

func TestLikeSetToggleTwiceIsNoop(t *testing.T) {
	sets := []LikeSet{nil, {}, {"a"}, {"a", "b", "c"}}
	for _, orig := range sets {
		for _, uid := range []string{"a", "b", "z"} {
			got := orig.Toggle(uid).Toggle(uid)
			assert.ElementsMatch(t, []string(orig), []string(got), "set=%v uid=%s", orig, uid)
		}
	}
}

func TestLikeSetToggleDoesNotMutate(t *testing.T) {
	orig := LikeSet{"a", "b"}
	_ = orig.Toggle("a")
	assert.Equal(t, LikeSet{"a", "b"}, orig)
}

func TestLikeSetNeverDuplicates(t *testing.T) {
	s := LikeSet{}
	for i := 0; i < 5; i++ {
		s = s.Toggle("u")
	}
	assert.Equal(t, LikeSet{"u"}, s)
}

func TestLikeSetJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Likes LikeSet `json:"likes"`
	}{})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"likes":[]}`, string(b))
}
