package classifier

import (
	"context"

	"github.com/avvvet/octotalk/internal/models"
)

// IntentClassifier defines the interface for intent recognition services
type IntentClassifier interface {
	Classify(ctx context.Context, query Query) (models.Intent, error)
}

// Query is the text to classify plus the conversation metadata the service may use
type Query struct {
	Text           string
	Locale         string
	TimezoneOffset int
}
