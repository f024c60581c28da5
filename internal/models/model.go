package models

import "strings"

// ModelID identifies a model family served by the backend's per-model chat endpoint.
type ModelID string

const (
	ModelDeepSeek ModelID = "deepseek"
	ModelGemini   ModelID = "gemini"
	ModelOllama   ModelID = "ollama"
)

// DefaultModel is the model selected when a fresh session starts.
const DefaultModel = ModelGemini

// Model describes an entry of the model selector.
type Model struct {
	ID          ModelID
	Name        string
	Description string
}

// Models is the catalog of model families the backend exposes, in selector order.
var Models = []Model{
	{ID: ModelDeepSeek, Name: "DeepSeek", Description: "Poderoso e preciso"},
	{ID: ModelGemini, Name: "Gemini", Description: "Versátil e rápido"},
	{ID: ModelOllama, Name: "Ollama", Description: "Local e privado"},
}

// LookupModel returns the catalog entry for id.
func LookupModel(id ModelID) (Model, bool) {
	for _, m := range Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// NormalizeModel maps a stored model label such as "Gemini-Pro" or "deepseek-chat" to its model family.
// Labels are matched case-insensitively by substring; DeepSeek is checked before Gemini, and anything
// unrecognised is attributed to the local Ollama model.
func NormalizeModel(label string) ModelID {
	name := strings.ToLower(label)
	switch {
	case strings.Contains(name, string(ModelDeepSeek)):
		return ModelDeepSeek
	case strings.Contains(name, string(ModelGemini)):
		return ModelGemini
	default:
		return ModelOllama
	}
}
