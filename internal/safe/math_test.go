package safe

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestSaturatingMath(t *testing.T) {
	top := Max()
	tests := []struct {
		name string
		got  *uint256.Int
		want *uint256.Int
	}{
		{"add", Add(U64(10), U64(20)), U64(30)},
		{"add saturates", Add(top, U64(1)), top},
		{"sub", Sub(U64(30), U64(10)), U64(20)},
		{"sub clamps to zero", Sub(U64(1), U64(2)), Zero()},
		{"mul", Mul(U64(5), U64(6)), U64(30)},
		{"mul saturates", Mul(top, U64(2)), top},
		{"div", Div(U64(100), U64(4)), U64(25)},
		{"div by zero", Div(U64(100), Zero()), Zero()},
		{"nil as zero", Add(nil, U64(7)), U64(7)},
		{"muldiv", MulDiv(U64(7), U64(3), U64(2)), U64(10)},
		{"bps", Bps(U64(1_000_000), 250), U64(25_000)},
		{"bps rounds down", Bps(U64(3), 3333), Zero()},
		{"sum", Sum(U64(1), U64(2), U64(3)), U64(6)},
		{"min", Min(U64(9), U64(4)), U64(4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.got.Eq(tt.want), "got %s, want %s", tt.got.Dec(), tt.want.Dec())
		})
	}
}

func TestOperandsNotMutated(t *testing.T) {
	x, y := U64(40), U64(2)
	_ = Add(x, y)
	_ = Sub(x, y)
	_ = Mul(x, y)
	_ = Div(x, y)
	assert.Equal(t, uint64(40), x.Uint64())
	assert.Equal(t, uint64(2), y.Uint64())
}

func FuzzAddSub(f *testing.F) {
	f.Add(uint64(0), uint64(0))
	f.Add(uint64(1<<63), uint64(1<<63))
	f.Fuzz(func(t *testing.T, a, b uint64) {
		x, y := U64(a), U64(b)
		sum := Add(x, y)
		if !Sub(sum, y).Eq(x) {
			t.Fatalf("(%d+%d)-%d != %d", a, b, b, a)
		}
		if x.Lt(y) && !Sub(x, y).IsZero() {
			t.Fatalf("%d-%d should clamp to zero", a, b)
		}
	})
}
