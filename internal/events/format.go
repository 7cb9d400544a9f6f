package events

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// FormatValue renders a decoded ABI value as display text.
func FormatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case common.Address:
		return v.Hex()
	case *common.Address:
		return v.Hex()
	case common.Hash:
		return v.Hex()
	case [32]byte:
		return hexutil.Encode(v[:])
	case []byte:
		return hexutil.Encode(v)
	case *big.Int:
		return v.String()
	case string:
		return v
	case bool:
		return fmt.Sprintf("%t", v)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			buf := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(buf), rv)
			return hexutil.Encode(buf)
		}
		return formatList(rv)
	case reflect.Slice:
		return formatList(rv)
	default:
		return fmt.Sprint(value)
	}
}

func formatList(rv reflect.Value) string {
	out := "["
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			out += ", "
		}
		out += FormatValue(rv.Index(i).Interface())
	}
	return out + "]"
}
