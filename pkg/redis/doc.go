// Package redis connects to a Redis server with startup retries and
// exposes a health probe for liveness endpoints.
//
// Configuration comes from the Config struct, populated from environment
// variables via pkg/config:
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// The returned *redis.Client is the plain go-redis client; callers build
// their own caching semantics on top of it.
package redis
