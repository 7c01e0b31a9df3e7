// Package topics builds topic URLs for the Helix-style notification types a hub offers.
package topics

import (
	"net/url"
)

// DefaultBaseURL is the API root topics are built against.
const DefaultBaseURL = "https://api.twitch.tv/helix"

// Builder builds topic URLs under a base URL.
type Builder struct {
	base string
}

// NewBuilder returns a Builder for base. An empty base means DefaultBaseURL.
func NewBuilder(base string) Builder {
	if base == "" {
		base = DefaultBaseURL
	}
	return Builder{base: base}
}

func (b Builder) build(path string, q url.Values) string {
	u := b.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// UserFollows watches follows from fromID, to toID, or both. Either may be empty, not both.
func (b Builder) UserFollows(fromID, toID string) string {
	q := url.Values{}
	q.Set("first", "1")
	if fromID != "" {
		q.Set("from_id", fromID)
	}
	if toID != "" {
		q.Set("to_id", toID)
	}
	return b.build("/users/follows", q)
}

// StreamChanged watches a user's stream going up, down or changing.
func (b Builder) StreamChanged(userID string) string {
	q := url.Values{}
	q.Set("user_id", userID)
	return b.build("/streams", q)
}

// UserChanged watches a user's profile.
func (b Builder) UserChanged(userID string) string {
	q := url.Values{}
	q.Set("id", userID)
	return b.build("/users", q)
}

// ExtensionTransactions watches transactions of an extension.
func (b Builder) ExtensionTransactions(extensionID string) string {
	q := url.Values{}
	q.Set("extension_id", extensionID)
	q.Set("first", "1")
	return b.build("/extensions/transactions", q)
}

// ModeratorChanged watches moderators being added to or removed from a broadcaster's channel.
func (b Builder) ModeratorChanged(broadcasterID string) string {
	q := url.Values{}
	q.Set("broadcaster_id", broadcasterID)
	q.Set("first", "1")
	return b.build("/moderation/moderators/events", q)
}
