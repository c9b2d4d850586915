package dynamo

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeTable is an in-memory stand-in for a DynamoDB table keyed by
// (store_name, key). Scan and Query page through items pageSize at a time
// and evaluate the expressions the dynamo package builds.
type fakeTable struct {
	mu       sync.Mutex
	items    map[[2]string]map[string]types.AttributeValue
	pageSize int

	calls map[string]int
	fail  map[string]error
	block map[string]bool

	// consistent records the ConsistentRead flag of the last read per op.
	consistent map[string]bool
}

func newFakeTable() *fakeTable {
	return &fakeTable{
		items:    make(map[[2]string]map[string]types.AttributeValue),
		pageSize: 2,
		calls:    make(map[string]int),
		fail:     make(map[string]error),
		block:    make(map[string]bool),

		consistent: make(map[string]bool),
	}
}

func (f *fakeTable) called(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// enter records a call and returns its injected failure. Blocked operations
// wait for the context to end, like a call to an unreachable endpoint.
func (f *fakeTable) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	err, block := f.fail[op], f.block[op]
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if block {
		<-ctx.Done()
	}
	return ctx.Err()
}

func (f *fakeTable) read(op string, consistent *bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consistent[op] = consistent != nil && *consistent
}

func keyOf(m map[string]types.AttributeValue) [2]string {
	return [2]string{str(m["store_name"]), str(m["key"])}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeTable) put(item map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[keyOf(item)] = item
}

func (f *fakeTable) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := f.enter(ctx, "GetItem"); err != nil {
		return nil, err
	}
	f.read("GetItem", in.ConsistentRead)
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeTable) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := f.enter(ctx, "PutItem"); err != nil {
		return nil, err
	}
	f.put(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if err := f.enter(ctx, "DeleteItem"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, keyOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeTable) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if err := f.enter(ctx, "Scan"); err != nil {
		return nil, err
	}
	f.read("Scan", in.ConsistentRead)
	items, count, last := f.page(in.ExclusiveStartKey, in.ExpressionAttributeValues, in.Select, false)
	return &dynamodb.ScanOutput{Items: items, Count: count, LastEvaluatedKey: last}, nil
}

func (f *fakeTable) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if err := f.enter(ctx, "Query"); err != nil {
		return nil, err
	}
	f.read("Query", in.ConsistentRead)
	items, count, last := f.page(in.ExclusiveStartKey, in.ExpressionAttributeValues, in.Select, true)
	return &dynamodb.QueryOutput{Items: items, Count: count, LastEvaluatedKey: last}, nil
}

// page evaluates one page. A query only examines the requested partition;
// a scan examines every item, applying the filter after the page limit like
// DynamoDB does.
func (f *fakeTable) page(start map[string]types.AttributeValue, values map[string]types.AttributeValue, sel types.Select, query bool) ([]map[string]types.AttributeValue, int32, map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()

	storeName := str(values[":store"])
	var now int64 = -1
	if n, ok := values[":now"].(*types.AttributeValueMemberN); ok {
		now, _ = strconv.ParseInt(n.Value, 10, 64)
	}

	keys := make([][2]string, 0, len(f.items))
	for k := range f.items {
		if query && k[0] != storeName {
			continue
		}
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b [2]string) int {
		if c := cmp.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return cmp.Compare(a[1], b[1])
	})

	if start != nil {
		sk := keyOf(start)
		idx := slices.IndexFunc(keys, func(k [2]string) bool { return k == sk })
		keys = keys[idx+1:]
	}

	var last map[string]types.AttributeValue
	if len(keys) > f.pageSize {
		keys = keys[:f.pageSize]
		lk := keys[len(keys)-1]
		last = map[string]types.AttributeValue{
			"store_name": &types.AttributeValueMemberS{Value: lk[0]},
			"key":        &types.AttributeValueMemberS{Value: lk[1]},
		}
	}

	var out []map[string]types.AttributeValue
	var count int32
	for _, k := range keys {
		item := f.items[k]
		if k[0] != storeName {
			continue
		}
		if now >= 0 {
			if ttl, ok := item["ttl"].(*types.AttributeValueMemberN); ok {
				if v, _ := strconv.ParseInt(ttl.Value, 10, 64); v <= now {
					continue
				}
			}
		}
		count++
		if sel != types.SelectCount {
			out = append(out, item)
		}
	}
	return out, count, last
}
