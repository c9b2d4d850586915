package dynamo

import (
	"fmt"
	"time"

	"github.com/jacentio/mockstate/store"
)

// ListMode selects how LoadAll and Count enumerate a store's records.
type ListMode string

const (
	// ListScan scans the whole table with a server-side filter on the store
	// name. Works with any key schema; cost grows with the table, not the
	// store.
	ListScan ListMode = "scan"

	// ListQuery queries the store name partition directly. Requires
	// store_name to be the table's partition key, which is the expected
	// production layout (see EnsureTable).
	ListQuery ListMode = "query"
)

// Config holds configuration for DynamoDB-backed stores.
type Config struct {
	// TableName is the table shared by every store.
	// Default: "mockstate_stores"
	TableName string

	// ListMode selects Scan or Query for LoadAll and Count.
	// Default: ListScan
	ListMode ListMode

	// ConsistentRead requests strongly consistent reads for Load, LoadAll
	// and Count.
	ConsistentRead bool

	// RecordTTL, when positive, stamps every saved record with a "ttl"
	// attribute so DynamoDB expires it. Expired records are hidden from
	// reads before DynamoDB removes them.
	// Default: 0 (records never expire)
	RecordTTL time.Duration

	// OpTimeout bounds each call to DynamoDB. A call that runs out of time
	// fails like any other medium error.
	// Default: 0 (the caller's context decides)
	OpTimeout time.Duration
}

// DefaultConfig returns the defaults for a single shared table.
func DefaultConfig() Config {
	return Config{
		TableName: "mockstate_stores",
		ListMode:  ListScan,
	}
}

// validate fills defaults and rejects values no store can work with.
func (c *Config) validate() error {
	if c.TableName == "" {
		c.TableName = "mockstate_stores"
	}
	if c.ListMode == "" {
		c.ListMode = ListScan
	}
	if c.ListMode != ListScan && c.ListMode != ListQuery {
		return fmt.Errorf("%w: dynamodb list mode %q", store.ErrInvalidConfig, c.ListMode)
	}
	if c.RecordTTL < 0 {
		return fmt.Errorf("%w: dynamodb record ttl %s is negative", store.ErrInvalidConfig, c.RecordTTL)
	}
	if c.OpTimeout < 0 {
		return fmt.Errorf("%w: dynamodb op timeout %s is negative", store.ErrInvalidConfig, c.OpTimeout)
	}
	return nil
}
