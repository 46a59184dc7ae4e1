// Package authcore is an embeddable authentication engine offering user
// registration, password and OTP login, stateless JWT pairs with refresh,
// and single-use password reset links.
//
// The engine owns credential hashing, token issuance, rate limiting, and
// the ephemeral OTP/reset state in Redis. Durable user records live behind
// the host-provided UserStore, so any relational or document store can back
// the engine. Construct one with the builder:
//
//	engine, err := authcore.New().
//		WithRedis(client).
//		WithUserStore(store).
//		Build()
//
// All engine methods are safe for concurrent use.
package authcore
