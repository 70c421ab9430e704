package keyscheme

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewtec/imagesprite/internal/domain"
)

func TestEncode(t *testing.T) {
	cases := []struct {
		id   int
		want string
	}{
		{0, "00000000"},
		{1, "00000001"},
		{49999, "00049999"},
		{MaxID, "99999999"},
	}
	for _, c := range cases {
		got, err := Encode(c.id)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	t.Run("rejects out of range ids", func(t *testing.T) {
		for _, id := range []int{-1, MaxID + 1, 1 << 40} {
			_, err := Encode(id)
			assert.ErrorIs(t, err, domain.ErrOutOfRange, "id %d", id)
		}
	})
}

func TestDecode(t *testing.T) {
	id, err := Decode("00000042")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	t.Run("rejects malformed keys", func(t *testing.T) {
		for _, key := range []string{"", "42", "000000042", "0000004a", "-0000042", "+0000042", " 0000042"} {
			_, err := Decode(key)
			assert.ErrorIs(t, err, domain.ErrMalformedKey, "key %q", key)
		}
	})
}

func TestRoundTripAndOrder(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	ids := []int{0, 1, 9, 10, 99, 100, 12345678, MaxID - 1, MaxID}
	for i := 0; i < 1000; i++ {
		ids = append(ids, rng.IntN(MaxID+1))
	}

	for _, id := range ids {
		key := MustEncode(id)
		got, err := Decode(key)
		require.NoError(t, err)
		require.Equal(t, id, got)
	}

	for i := 0; i+1 < len(ids); i++ {
		a, b := ids[i], ids[i+1]
		if a == b {
			continue
		}
		if a > b {
			a, b = b, a
		}
		assert.Less(t, MustEncode(a), MustEncode(b), "encode(%d) < encode(%d)", a, b)
	}
}

func TestMustEncodePanics(t *testing.T) {
	assert.Panics(t, func() { MustEncode(-1) })
}
