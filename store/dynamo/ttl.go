package dynamo

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// isExpired checks if a record carries a TTL at or before now. DynamoDB
// removes expired items lazily, so reads must hide them.
func isExpired(item map[string]types.AttributeValue, now time.Time) bool {
	ttlAttr, exists := item[AttrTTL]
	if !exists {
		return false
	}
	ttlNum, ok := ttlAttr.(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(ttlNum.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= now.Unix()
}

// ttlFilterExpr excludes expired records from scans and queries.
func ttlFilterExpr() string {
	return "(attribute_not_exists(#ttl) OR #ttl > :now)"
}

func ttlAttr(now time.Time, ttl time.Duration) types.AttributeValue {
	return &types.AttributeValueMemberN{
		Value: strconv.FormatInt(now.Add(ttl).Unix(), 10),
	}
}
