package orchestrator

import (
	"path"

	"github.com/google/uuid"
)

// ShardPrefixLen is the number of leading object id characters used to pick
// the shard directory. With hex ids this yields 256 shards.
const ShardPrefixLen = 2

// NewObjectID returns a random, collision resistant object id.
func NewObjectID() string {
	return uuid.NewString()
}

// ShardPrefix returns the shard directory name of an object id.
func ShardPrefix(id string) string {
	if len(id) < ShardPrefixLen {
		return id
	}

	return id[:ShardPrefixLen]
}

// ObjectPath returns root/<shard>/<id>. Spreading objects over shard
// directories keeps any single directory from becoming a metadata hot spot.
func ObjectPath(root, id string) string {
	return path.Join(root, ShardPrefix(id), id)
}
