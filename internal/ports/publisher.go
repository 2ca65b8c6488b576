package ports

import "context"

// Publisher delivers raw notification payloads to a topic.
type Publisher interface {
	PublishRaw(ctx context.Context, arn string, payload []byte) error
}
