// Package stream turns DynamoDB Streams records of the store table into
// store changes and applies them to a Sink.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/mockstate/internal/keyspace"
	"github.com/jacentio/mockstate/store"
	"github.com/jacentio/mockstate/store/dynamo"
)

// Op is the kind of a Change.
type Op string

const (
	OpSave   Op = "save"
	OpDelete Op = "delete"
)

// Change is one key-level modification observed on the store table.
type Change struct {
	Op    Op
	Store string
	// Key is the logical key, with the deployment's key prefix removed.
	Key string
	// Value is set for OpSave.
	Value store.Value

	EventID string
	// Expired marks deletes performed by DynamoDB's TTL sweeper.
	Expired bool
}

// Sink consumes changes in stream order.
type Sink interface {
	Apply(ctx context.Context, change Change) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, change Change) error

// Apply calls f.
func (f SinkFunc) Apply(ctx context.Context, change Change) error { return f(ctx, change) }

// Handler processes DynamoDB stream events for the store table.
type Handler struct {
	sink      Sink
	keyPrefix string
	logger    *slog.Logger
}

// NewHandler creates a stream handler. Records whose key does not carry
// keyPrefix belong to another deployment and are skipped.
func NewHandler(sink Sink, keyPrefix string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sink:      sink,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

// HandleChanges applies every record of event to the sink, in order.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleChanges(ctx context.Context, event events.DynamoDBEvent) error {
	applied := 0
	for _, record := range event.Records {
		change, ok := h.decode(record)
		if !ok {
			continue
		}
		if err := h.sink.Apply(ctx, change); err != nil {
			h.logger.Error("failed to apply change",
				"eventID", record.EventID,
				"store", change.Store,
				"key", change.Key,
				"error", err,
			)
			return fmt.Errorf("apply %s: %w", record.EventID, err) // Will retry the batch
		}
		applied++
	}

	h.logger.Info("processed store changes",
		"records", len(event.Records),
		"applied", applied,
	)
	return nil
}

// decode maps a stream record to a Change. It reports false for records
// that carry no usable store change.
func (h *Handler) decode(record events.DynamoDBEventRecord) (Change, bool) {
	storeName, ok := getStringAttr(record.Change.Keys, dynamo.AttrStoreName)
	if !ok {
		h.logger.Warn("skipping record without store name", "eventID", record.EventID)
		return Change{}, false
	}
	physical, ok := getStringAttr(record.Change.Keys, dynamo.AttrKey)
	if !ok {
		h.logger.Warn("skipping record without key", "eventID", record.EventID, "store", storeName)
		return Change{}, false
	}
	key, ok := keyspace.Strip(h.keyPrefix, physical)
	if !ok {
		h.logger.Debug("skipping foreign key", "eventID", record.EventID, "store", storeName, "key", physical)
		return Change{}, false
	}

	change := Change{Store: storeName, Key: key, EventID: record.EventID}
	switch events.DynamoDBOperationType(record.EventName) {
	case events.DynamoDBOperationTypeInsert, events.DynamoDBOperationTypeModify:
		if record.Change.NewImage == nil {
			h.logger.Warn("skipping record without new image; stream view type must include new images",
				"eventID", record.EventID,
				"store", storeName,
			)
			return Change{}, false
		}
		change.Op = OpSave
		if v, ok := record.Change.NewImage[dynamo.AttrValue]; ok {
			change.Value = dynamo.DecodeValue(toAttributeValue(v))
		} else {
			change.Value = store.Null()
		}
	case events.DynamoDBOperationTypeRemove:
		change.Op = OpDelete
		change.Expired = expiredByTTL(record.UserIdentity)
	default:
		return Change{}, false
	}
	return change, true
}

// expiredByTTL reports whether a removal was made by DynamoDB's TTL process.
func expiredByTTL(identity *events.DynamoDBUserIdentity) bool {
	return identity != nil &&
		identity.Type == "Service" &&
		identity.PrincipalID == "dynamodb.amazonaws.com"
}
