package pei

import "context"

// Generator is the generative text backend: a prompt plus a system
// instruction in, raw model text out. Output may be malformed or empty.
type Generator interface {
	Generate(ctx context.Context, prompt, systemInstruction string) (string, error)
}

type GeneratorFunc func(ctx context.Context, prompt, systemInstruction string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	return f(ctx, prompt, systemInstruction)
}

// strictJSONSuffix is appended to every prompt.
const strictJSONSuffix = "\n\nIMPORTANTE: Responda ESTRITAMENTE em JSON válido. Sem explicações fora do JSON."
