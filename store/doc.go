// Package store provides named key/value stores that request handlers and
// response scripts use to keep state between otherwise stateless requests.
//
// A [Store] maps string keys to scalar [Value]s. Every backend satisfies the
// same contract, whether it keeps data in process memory or in a table shared
// by many logical stores.
//
// # Values
//
// Values are a closed union of five kinds: string, number, bool, null and
// binary. [Of] converts arbitrary Go values; anything outside the union is
// stored as its fmt.Sprint form and comes back as a string.
//
//	s.Save(ctx, "count", store.Int(3))
//	s.Save(ctx, "owner", store.Of(user)) // lossy: stored as a string
//
// # Backends
//
//   - [MemoryStore] - in-process, the default and the backend for
//     request-scoped stores
//   - store/dynamo - one DynamoDB table shared by all stores
//   - store/badgerstore - an embedded BadgerDB shared by all stores
//
// # Factory
//
// A [Factory] builds stores on first lookup and caches them by name:
//
//	build, err := dynamo.Builder(client, cfg)
//	...
//	f := store.NewFactory(build,
//	    store.WithKeyPrefix("tenantA."),
//	    store.WithRequestScoped(scope.IsRequestScoped),
//	)
//	orders, err := f.GetStoreByName(ctx, "orders", false)
//
// Stores built from the configured backend are wrapped in a
// [PrefixedKeyStore]. Passing forceBaseline builds a plain [MemoryStore]
// instead, which never touches the shared medium.
//
// Evicting a store with [Factory.DeleteStoreByName] drops the cache entry
// only. Records in the medium are kept.
//
// # Errors
//
//   - [ErrMediumUnavailable] - the medium failed; the error is an [*OpError]
//   - [ErrInvalidInput] - the medium rejected the request as malformed (the
//     dynamodb backend refuses empty keys); also an [*OpError]
//   - [ErrInvalidConfig] - a backend could not be built
//   - [ErrClosed] - the factory was closed
//
// A missing key is not an error: Load returns ok == false.
package store
