//go:build e2e

// Package e2e contains end-to-end tests against a real DynamoDB endpoint.
// Run with: go test -tags=e2e -v ./e2e/...
//
// DYNAMODB_ENDPOINT selects an already running endpoint; otherwise a
// DynamoDB Local container is started.
package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jacentio/mockstate/bootstrap"
	"github.com/jacentio/mockstate/config"
	"github.com/jacentio/mockstate/store"
	"github.com/jacentio/mockstate/store/dynamo"
	"github.com/jacentio/mockstate/store/storetest"
)

const tablePrefix = "mockstate-e2e"

var (
	dynamoCfg config.DynamoDBConfig
	ddbClient *dynamodb.Client
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	endpoint := os.Getenv("DYNAMODB_ENDPOINT")
	var container testcontainers.Container
	if endpoint == "" {
		var err error
		container, endpoint, err = startDynamoDBLocal(ctx)
		if err != nil {
			fmt.Printf("Failed to start DynamoDB Local: %v\n", err)
			os.Exit(1)
		}
	}

	// Table name - unique per test run to avoid conflicts
	dynamoCfg = config.Default().DynamoDB
	dynamoCfg.TableName = fmt.Sprintf("%s-%s", tablePrefix, uuid.New().String()[:8])
	dynamoCfg.Region = "us-east-1"
	dynamoCfg.Endpoint = endpoint
	dynamoCfg.AccessKeyID = "test"
	dynamoCfg.SecretAccessKey = "test"
	fmt.Printf("Endpoint: %s\nTable: %s\n", endpoint, dynamoCfg.TableName)

	var err error
	ddbClient, err = bootstrap.NewDynamoDBClient(ctx, dynamoCfg)
	if err != nil {
		fmt.Printf("Failed to create client: %v\n", err)
		os.Exit(1)
	}
	if err := dynamo.EnsureTable(ctx, ddbClient, dynamoCfg.StoreConfig(), 2*time.Minute); err != nil {
		fmt.Printf("Failed to create table: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if _, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(dynamoCfg.TableName),
	}); err != nil {
		fmt.Printf("Failed to delete table: %v\n", err)
	}
	if container != nil {
		_ = container.Terminate(ctx)
	}

	os.Exit(code)
}

func startDynamoDBLocal(ctx context.Context) (testcontainers.Container, string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "amazon/dynamodb-local:2.5.2",
		ExposedPorts: []string{"8000/tcp"},
		Cmd:          []string{"-jar", "DynamoDBLocal.jar", "-inMemory", "-sharedDb"},
		WaitingFor:   wait.ForListeningPort("8000/tcp").WithStartupTimeout(2 * time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", err
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}
	port, err := container.MappedPort(ctx, "8000")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}
	return container, fmt.Sprintf("http://%s:%s", host, port.Port()), nil
}

// isolated returns a medium whose store names cannot collide with those of
// other tests sharing the table.
func isolated(t *testing.T, cfg dynamo.Config) storetest.Medium {
	run := uuid.NewString()[:8]
	return func(name string) store.Store {
		s, err := dynamo.New(ddbClient, run+"/"+name, cfg)
		require.NoError(t, err)
		return s
	}
}

// --- Conformance ---

func TestDynamoDB_Conformance_Scan(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Medium {
		return isolated(t, dynamoCfg.StoreConfig())
	})
}

func TestDynamoDB_Conformance_Query(t *testing.T) {
	cfg := dynamoCfg.StoreConfig()
	cfg.ListMode = dynamo.ListQuery
	storetest.Run(t, func(t *testing.T) storetest.Medium {
		return isolated(t, cfg)
	})
}

// --- Factory over DynamoDB ---

func newRuntime(t *testing.T, keyPrefix string) *bootstrap.Runtime {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Backend = config.BackendDynamoDB
	cfg.Store.KeyPrefix = keyPrefix
	cfg.DynamoDB = dynamoCfg
	cfg.DynamoDB.ConsistentRead = true

	rt, err := bootstrap.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestFactory_PrefixesIsolateDeployments(t *testing.T) {
	ctx := context.Background()
	name := "orders-" + uuid.NewString()[:8]

	a, err := newRuntime(t, "tenantA.").Factory.GetStoreByName(ctx, name, false)
	require.NoError(t, err)
	b, err := newRuntime(t, "tenantB.").Factory.GetStoreByName(ctx, name, false)
	require.NoError(t, err)

	require.NoError(t, a.Save(ctx, "1", store.String("a")))
	require.NoError(t, b.Save(ctx, "1", store.String("b")))
	require.NoError(t, b.Save(ctx, "2", store.Int(2)))

	got, ok, err := a.Load(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, store.String("a").Equal(got))

	all, err := a.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]store.Value{"1": store.String("a")}, all)

	count, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestFactory_ForcedStoresStayLocal(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, "")
	name := "request-" + uuid.NewString()

	s, err := rt.Factory.GetStoreByName(ctx, name, true)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "1", store.Int(1)))

	remote, err := dynamo.New(ddbClient, name, dynamoCfg.StoreConfig())
	require.NoError(t, err)
	count, err := remote.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "forced stores must never reach the table")
}

func TestDynamoDB_RecordTTLHidesExpired(t *testing.T) {
	ctx := context.Background()
	cfg := dynamoCfg.StoreConfig()
	cfg.RecordTTL = time.Second

	s, err := dynamo.New(ddbClient, "ttl-"+uuid.NewString()[:8], cfg)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "1", store.String("soon gone")))

	ok, err := s.HasItemWithKey(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)

	// The TTL attribute has second resolution.
	time.Sleep(2100 * time.Millisecond)

	ok, err = s.HasItemWithKey(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDynamoDB_UnreachableEndpoint(t *testing.T) {
	cfg := dynamoCfg
	cfg.Endpoint = "http://127.0.0.1:1"
	client, err := bootstrap.NewDynamoDBClient(context.Background(), cfg)
	require.NoError(t, err)

	opCfg := cfg.StoreConfig()
	opCfg.OpTimeout = 2 * time.Second
	s, err := dynamo.New(client, "orders", opCfg)
	require.NoError(t, err)

	err = s.Save(context.Background(), "1", store.Int(1))
	assert.ErrorIs(t, err, store.ErrMediumUnavailable)
}
