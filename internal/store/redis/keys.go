package redis

const (
	// KeyPrefixBookmark is the prefix for bookmark documents
	KeyPrefixBookmark = "stash:bookmark:"
	// KeyPrefixCollection is the prefix for collection documents
	KeyPrefixCollection = "stash:collection:"
	// KeyPrefixUser is the prefix for per-owner indexes and channels
	KeyPrefixUser = "stash:user:"
)

// BookmarkKey returns the Redis key for a bookmark
func BookmarkKey(id string) string {
	return KeyPrefixBookmark + id
}

// CollectionKey returns the Redis key for a collection
func CollectionKey(id string) string {
	return KeyPrefixCollection + id
}

// OwnerBookmarksKey returns the sorted set of an owner's bookmark ids,
// scored by creation time
func OwnerBookmarksKey(ownerID string) string {
	return KeyPrefixUser + ownerID + ":bookmarks"
}

// OwnerCollectionsKey returns the sorted set of an owner's collection ids
func OwnerCollectionsKey(ownerID string) string {
	return KeyPrefixUser + ownerID + ":collections"
}

// EventsChannel returns the pub/sub channel carrying an owner's changes
func EventsChannel(ownerID string) string {
	return KeyPrefixUser + ownerID + ":events"
}
