package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/botcsync/internal/entity"
	"github.com/roach88/botcsync/internal/validate"
)

func ent(id string, jinxes ...entity.Jinx) *entity.Entity {
	return &entity.Entity{ID: id, Name: id, Edition: "x", Team: "townsfolk", Ability: "a", Jinxes: jinxes}
}

func TestSymmetrizeJinxes_InsertsMissingReverse(t *testing.T) {
	a := ent("alchemist", entity.Jinx{ID: "spy", Reason: "r1"})
	b := ent("spy")

	issues := SymmetrizeJinxes([]*entity.Entity{a, b})

	assert.Empty(t, issues)
	assert.Equal(t, []entity.Jinx{{ID: "alchemist", Reason: "r1"}}, b.Jinxes)
	assert.Empty(t, validate.Integrity([]*entity.Entity{a, b}))
}

func TestSymmetrizeJinxes_ConflictSmallerIDWins(t *testing.T) {
	a := ent("alchemist", entity.Jinx{ID: "spy", Reason: "from alchemist"})
	b := ent("spy", entity.Jinx{ID: "alchemist", Reason: "from spy"})

	// Order of the input does not matter.
	issues := SymmetrizeJinxes([]*entity.Entity{b, a})

	require.Len(t, issues, 1)
	assert.Equal(t, validate.ErrAsymmetricJinx, issues[0].Code)
	assert.Equal(t, "alchemist", issues[0].EntityID)
	assert.Equal(t, "from alchemist", a.Jinxes[0].Reason)
	assert.Equal(t, "from alchemist", b.Jinxes[0].Reason)
}

func TestSymmetrizeJinxes_DanglingKept(t *testing.T) {
	a := ent("alchemist", entity.Jinx{ID: "ghost", Reason: "r"})

	issues := SymmetrizeJinxes([]*entity.Entity{a})

	assert.Empty(t, issues)
	assert.Equal(t, []entity.Jinx{{ID: "ghost", Reason: "r"}}, a.Jinxes)

	integrity := validate.Integrity([]*entity.Entity{a})
	require.Len(t, integrity, 1)
	assert.Equal(t, validate.ErrDanglingJinx, integrity[0].Code)
}

func TestSymmetrizeJinxes_SortsAndDedupes(t *testing.T) {
	a := ent("alchemist",
		entity.Jinx{ID: "zombuul", Reason: "z"},
		entity.Jinx{ID: "boffin", Reason: "b"},
		entity.Jinx{ID: "boffin", Reason: "b"},
	)
	b := ent("boffin")
	z := ent("zombuul")

	SymmetrizeJinxes([]*entity.Entity{a, b, z})

	assert.Equal(t, []entity.Jinx{{ID: "boffin", Reason: "b"}, {ID: "zombuul", Reason: "z"}}, a.Jinxes)
	assert.Len(t, b.Jinxes, 1)
	assert.Len(t, z.Jinxes, 1)
}

func TestSymmetrizeJinxes_RawCountIsEven(t *testing.T) {
	a := ent("a", entity.Jinx{ID: "b", Reason: "1"}, entity.Jinx{ID: "c", Reason: "2"})
	b := ent("b")
	c := ent("c", entity.Jinx{ID: "b", Reason: "3"})
	all := []*entity.Entity{a, b, c}

	SymmetrizeJinxes(all)

	raw := 0
	for _, e := range all {
		raw += len(e.Jinxes)
	}
	assert.Equal(t, 6, raw)
	assert.Empty(t, validate.Integrity(all))
}

func TestSymmetrizeJinxes_NoJinxesStaysNil(t *testing.T) {
	a := ent("a")
	SymmetrizeJinxes([]*entity.Entity{a})
	assert.Nil(t, a.Jinxes)
}
