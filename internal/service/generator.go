package service

import (
	"context"

	"github.com/talentfold/pulse/internal/genai"
)

// Generator is the slice of the text-generation client the services use.
// Satisfied by *genai.Client; faked in tests.
type Generator interface {
	Generate(ctx context.Context, req genai.Request) (*genai.Response, error)
	GenerateStream(ctx context.Context, req genai.Request, onToken func(token string)) (*genai.Response, error)
}
