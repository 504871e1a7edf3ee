package ai

import "context"

// Provider is the boundary to the generative model. Adapters hide every
// response-shape detail and only ever hand back these fixed types.
type Provider interface {
	Describe(ctx context.Context, req DescribeRequest) (Description, error)
	Generate(ctx context.Context, req GenerateRequest) ([]byte, error)
}
