package stream_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/mockstate/store"
	"github.com/jacentio/mockstate/stream"
)

// recorder collects applied changes.
type recorder struct {
	changes []stream.Change
	err     error
}

func (r *recorder) Apply(_ context.Context, c stream.Change) error {
	if r.err != nil {
		return r.err
	}
	r.changes = append(r.changes, c)
	return nil
}

func keys(storeName, key string) map[string]events.DynamoDBAttributeValue {
	return map[string]events.DynamoDBAttributeValue{
		"store_name": events.NewStringAttribute(storeName),
		"key":        events.NewStringAttribute(key),
	}
}

func image(storeName, key string, value events.DynamoDBAttributeValue) map[string]events.DynamoDBAttributeValue {
	img := keys(storeName, key)
	img["value"] = value
	return img
}

func insert(id, storeName, key string, value events.DynamoDBAttributeValue) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   id,
		EventName: "INSERT",
		Change: events.DynamoDBStreamRecord{
			Keys:     keys(storeName, key),
			NewImage: image(storeName, key, value),
		},
	}
}

func remove(id, storeName, key string) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   id,
		EventName: "REMOVE",
		Change: events.DynamoDBStreamRecord{
			Keys:     keys(storeName, key),
			OldImage: image(storeName, key, events.NewStringAttribute("old")),
		},
	}
}

func TestHandleChanges_SaveAndDelete(t *testing.T) {
	rec := &recorder{}
	h := stream.NewHandler(rec, "", nil)

	modify := insert("2", "orders", "1", events.NewStringAttribute("shipped"))
	modify.EventName = "MODIFY"

	err := h.HandleChanges(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		insert("1", "orders", "1", events.NewNumberAttribute("3")),
		modify,
		remove("3", "orders", "1"),
	}})
	require.NoError(t, err)
	require.Len(t, rec.changes, 3)

	assert.Equal(t, stream.OpSave, rec.changes[0].Op)
	assert.Equal(t, "orders", rec.changes[0].Store)
	assert.Equal(t, "1", rec.changes[0].Key)
	assert.True(t, store.Int(3).Equal(rec.changes[0].Value))

	assert.True(t, store.String("shipped").Equal(rec.changes[1].Value))

	assert.Equal(t, stream.OpDelete, rec.changes[2].Op)
	assert.Equal(t, "3", rec.changes[2].EventID)
	assert.False(t, rec.changes[2].Expired)
}

func TestHandleChanges_StripsKeyPrefix(t *testing.T) {
	rec := &recorder{}
	h := stream.NewHandler(rec, "tenantA.", nil)

	err := h.HandleChanges(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		insert("1", "orders", "tenantA.1", events.NewStringAttribute("mine")),
		insert("2", "orders", "tenantB.1", events.NewStringAttribute("theirs")),
	}})
	require.NoError(t, err)
	require.Len(t, rec.changes, 1)
	assert.Equal(t, "1", rec.changes[0].Key)
}

func TestHandleChanges_TTLExpiry(t *testing.T) {
	rec := &recorder{}
	h := stream.NewHandler(rec, "", nil)

	expired := remove("1", "orders", "1")
	expired.UserIdentity = &events.DynamoDBUserIdentity{
		Type:        "Service",
		PrincipalID: "dynamodb.amazonaws.com",
	}

	require.NoError(t, h.HandleChanges(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{expired},
	}))
	require.Len(t, rec.changes, 1)
	assert.True(t, rec.changes[0].Expired)
}

func TestHandleChanges_SkipsUnusableRecords(t *testing.T) {
	rec := &recorder{}
	h := stream.NewHandler(rec, "", nil)

	keysOnly := insert("1", "orders", "1", events.NewStringAttribute("x"))
	keysOnly.Change.NewImage = nil

	noStore := insert("2", "orders", "1", events.NewStringAttribute("x"))
	delete(noStore.Change.Keys, "store_name")

	noValue := insert("3", "orders", "2", events.NewStringAttribute("x"))
	delete(noValue.Change.NewImage, "value")

	require.NoError(t, h.HandleChanges(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{keysOnly, noStore, noValue},
	}))
	require.Len(t, rec.changes, 1, "only the record with keys and an image is applied")
	assert.Equal(t, "2", rec.changes[0].Key)
	assert.True(t, rec.changes[0].Value.IsNull())
}

func TestHandleChanges_SinkErrorStopsBatch(t *testing.T) {
	cause := errors.New("replica down")
	calls := 0
	sink := stream.SinkFunc(func(context.Context, stream.Change) error {
		calls++
		return cause
	})
	h := stream.NewHandler(sink, "", nil)

	err := h.HandleChanges(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		insert("1", "orders", "1", events.NewStringAttribute("a")),
		insert("2", "orders", "2", events.NewStringAttribute("b")),
	}})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, calls)
}

func TestHandleChanges_EmptyEvent(t *testing.T) {
	rec := &recorder{}
	h := stream.NewHandler(rec, "", nil)

	require.NoError(t, h.HandleChanges(context.Background(), events.DynamoDBEvent{}))
	assert.Empty(t, rec.changes)
}
