package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestFormatValue(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	cases := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"nil", nil, ""},
		{"address", addr, addr.Hex()},
		{"address pointer", &addr, addr.Hex()},
		{"bigint", big.NewInt(-42), "-42"},
		{"bytes", []byte{0xde, 0xad}, "0xdead"},
		{"bytes4", [4]byte{0x01, 0x02, 0x03, 0x04}, "0x01020304"},
		{"bool", true, "true"},
		{"uint8", uint8(7), "7"},
		{"list", []*big.Int{big.NewInt(1), big.NewInt(2)}, "[1, 2]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatValue(tc.value); got != tc.want {
				t.Fatalf("format mismatch: %q != %q", got, tc.want)
			}
		})
	}
}
