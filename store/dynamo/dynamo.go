// Package dynamo implements store.Store over a single DynamoDB table shared
// by every logical store.
//
// Each record is addressed by the composite key (store_name, key) and holds
// its value in a "value" attribute of the native type for the value's kind:
// S, N, BOOL, NULL or B.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/jacentio/mockstate/store"
)

// TypeDynamoDB is the TypeDescription of Store.
const TypeDynamoDB = "dynamodb"

// Attribute names of a store record.
const (
	AttrStoreName = "store_name"
	AttrKey       = "key"
	AttrValue     = "value"
	AttrTTL       = "ttl"
)

// codeValidation is the error code DynamoDB returns for malformed requests.
const codeValidation = "ValidationException"

// API is the subset of *dynamodb.Client used by Store.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	dynamodb.ScanAPIClient
	dynamodb.QueryAPIClient
}

// recordKey is the composite primary key of a record.
type recordKey struct {
	StoreName string `dynamodbav:"store_name"`
	Key       string `dynamodbav:"key"`
}

// Store is a store.Store backed by a shared DynamoDB table.
type Store struct {
	client API
	config Config
	name   string
	now    func() time.Time
}

// New creates a Store for name. The client is not contacted until the first
// operation.
func New(client API, name string, config Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: dynamodb client is nil", store.ErrInvalidConfig)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: store name is empty", store.ErrInvalidConfig)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Store{
		client: client,
		config: config,
		name:   name,
		now:    time.Now,
	}, nil
}

// Builder returns a store.BuildFunc creating DynamoDB stores that share
// client and config. The config is checked immediately.
func Builder(client API, config Config) (store.BuildFunc, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: dynamodb client is nil", store.ErrInvalidConfig)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return func(_ context.Context, name string) (store.Store, error) {
		return New(client, name, config)
	}, nil
}

func (s *Store) Name() string            { return s.name }
func (s *Store) TypeDescription() string { return TypeDynamoDB }

// Config returns the validated configuration.
func (s *Store) Config() Config { return s.config }

func (s *Store) Save(ctx context.Context, key string, value store.Value) error {
	item, err := s.key(key)
	if err != nil {
		return s.opErr("save", key, err)
	}
	item[AttrValue] = encodeValue(value)
	if s.config.RecordTTL > 0 {
		item[AttrTTL] = ttlAttr(s.now(), s.config.RecordTTL)
	}

	ctx, cancel := s.callContext(ctx)
	defer cancel()

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.TableName),
		Item:      item,
	})
	if err != nil {
		return s.opErr("save", key, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, key string) (store.Value, bool, error) {
	pk, err := s.key(key)
	if err != nil {
		return store.Value{}, false, s.opErr("load", key, err)
	}

	ctx, cancel := s.callContext(ctx)
	defer cancel()

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.TableName),
		Key:            pk,
		ConsistentRead: aws.Bool(s.config.ConsistentRead),
	})
	if err != nil {
		return store.Value{}, false, s.opErr("load", key, err)
	}
	if result.Item == nil || isExpired(result.Item, s.now()) {
		return store.Value{}, false, nil
	}
	return decodeValue(result.Item[AttrValue]), true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	pk, err := s.key(key)
	if err != nil {
		return s.opErr("delete", key, err)
	}

	ctx, cancel := s.callContext(ctx)
	defer cancel()

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.config.TableName),
		Key:       pk,
	})
	if err != nil {
		return s.opErr("delete", key, err)
	}
	return nil
}

// HasItemWithKey performs a full Load; DynamoDB has no cheaper existence
// check for a single item.
func (s *Store) HasItemWithKey(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Load(ctx, key)
	return ok, err
}

// LoadAll returns every record of this store. In ListScan mode this reads
// the whole table.
func (s *Store) LoadAll(ctx context.Context) (map[string]store.Value, error) {
	items := make(map[string]store.Value)
	err := s.each(ctx, "loadAll", false, func(page []map[string]types.AttributeValue, _ int32) error {
		for _, raw := range page {
			var rk recordKey
			if err := attributevalue.UnmarshalMap(raw, &rk); err != nil {
				return fmt.Errorf("unmarshal record key: %w", err)
			}
			if rk.StoreName != s.name {
				continue
			}
			items[rk.Key] = decodeValue(raw[AttrValue])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Count returns the number of records in this store using a COUNT select,
// so no values are transferred.
func (s *Store) Count(ctx context.Context) (int, error) {
	total := 0
	err := s.each(ctx, "count", true, func(_ []map[string]types.AttributeValue, count int32) error {
		total += int(count)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// each pages through this store's records with Scan or Query.
func (s *Store) each(ctx context.Context, op string, countOnly bool, fn func(items []map[string]types.AttributeValue, count int32) error) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	// Expired records are hidden even when this store writes no ttl, so that
	// listing agrees with Load on records written by other configurations.
	names := map[string]string{"#store": AttrStoreName, "#ttl": AttrTTL}
	values := map[string]types.AttributeValue{
		":store": &types.AttributeValueMemberS{Value: s.name},
		":now":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", s.now().Unix())},
	}
	filter := ttlFilterExpr()
	var sel types.Select
	if countOnly {
		sel = types.SelectCount
	}

	if s.config.ListMode == ListQuery {
		input := &dynamodb.QueryInput{
			TableName:                 aws.String(s.config.TableName),
			KeyConditionExpression:    aws.String("#store = :store"),
			FilterExpression:          aws.String(filter),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			Select:                    sel,
			ConsistentRead:            aws.Bool(s.config.ConsistentRead),
		}
		paginator := dynamodb.NewQueryPaginator(s.client, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return s.opErr(op, "", err)
			}
			if err := fn(page.Items, page.Count); err != nil {
				return s.opErr(op, "", err)
			}
		}
		return nil
	}

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.config.TableName),
		FilterExpression:          aws.String("#store = :store AND " + filter),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		Select:                    sel,
		ConsistentRead:            aws.Bool(s.config.ConsistentRead),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return s.opErr(op, "", err)
		}
		if err := fn(page.Items, page.Count); err != nil {
			return s.opErr(op, "", err)
		}
	}
	return nil
}

// key builds the composite primary key for key. DynamoDB refuses empty
// strings in key attributes.
func (s *Store) key(key string) (map[string]types.AttributeValue, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", store.ErrInvalidInput)
	}
	pk, err := attributevalue.MarshalMap(recordKey{StoreName: s.name, Key: key})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal key: %w", store.ErrInvalidInput, err)
	}
	return pk, nil
}

func (s *Store) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.OpTimeout > 0 {
		return context.WithTimeout(ctx, s.config.OpTimeout)
	}
	return ctx, func() {}
}

// opErr wraps a failed call, keeping the DynamoDB error code if any. A
// ValidationException is filed as invalid input rather than a medium failure.
func (s *Store) opErr(op, key string, err error) error {
	var opErr *store.OpError
	if errors.As(err, &opErr) {
		return err
	}
	e := &store.OpError{
		Op:      op,
		Store:   s.name,
		Backend: TypeDynamoDB,
		Key:     key,
		Err:     err,
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		e.Code = apiErr.ErrorCode()
		if e.Code == codeValidation {
			e.Err = fmt.Errorf("%w: %w", store.ErrInvalidInput, err)
		}
	}
	return e
}
