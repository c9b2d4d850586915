package dynamo

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/mockstate/store"
)

// encodeValue maps a Value onto the native attribute type for its kind.
func encodeValue(v store.Value) types.AttributeValue {
	switch v.Kind() {
	case store.KindString:
		s, _ := v.AsString()
		return &types.AttributeValueMemberS{Value: s}
	case store.KindNumber:
		n, _ := v.NumberString()
		return &types.AttributeValueMemberN{Value: n}
	case store.KindBool:
		b, _ := v.AsBool()
		return &types.AttributeValueMemberBOOL{Value: b}
	case store.KindBinary:
		p, _ := v.AsBinary()
		return &types.AttributeValueMemberB{Value: p}
	default:
		return &types.AttributeValueMemberNULL{Value: true}
	}
}

// DecodeValue maps a record's value attribute back to a Value, the way
// Load does.
func DecodeValue(av types.AttributeValue) store.Value {
	return decodeValue(av)
}

// decodeValue maps an attribute back to a Value. Attributes of other types
// (lists, maps, sets) were not written by this package; they are read back
// as their string form rather than failing the read.
func decodeValue(av types.AttributeValue) store.Value {
	switch v := av.(type) {
	case nil:
		return store.Null()
	case *types.AttributeValueMemberS:
		return store.String(v.Value)
	case *types.AttributeValueMemberN:
		n, err := store.NumberText(v.Value)
		if err != nil {
			return store.String(v.Value)
		}
		return n
	case *types.AttributeValueMemberBOOL:
		return store.Bool(v.Value)
	case *types.AttributeValueMemberNULL:
		return store.Null()
	case *types.AttributeValueMemberB:
		return store.Binary(v.Value)
	default:
		var out any
		if err := attributevalue.Unmarshal(av, &out); err != nil {
			return store.String(fmt.Sprint(av))
		}
		return store.String(fmt.Sprint(out))
	}
}
