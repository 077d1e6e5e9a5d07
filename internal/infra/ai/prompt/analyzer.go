package prompt

import "fmt"

// GetAnalyzerSystemPrompt provides strict directions and schema for JSON output.
func GetAnalyzerSystemPrompt() string {
	return `You are a sentiment and emotion analysis engine for a mental wellness journal. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- score is the overall sentiment of the text in [-1.0, 1.0]; negative values mean negative sentiment.
- magnitude is the absolute emotional intensity, >= 0.
- emotions maps emotion labels to confidence scores in [0.0, 1.0]. Use lowercase labels: joy, trust, fear, surprise, sadness, disgust, anger, anticipation, serenity, interest.
- primary_emotion is the label with the highest score.
- Keep the object compact; no fields beyond the schema.

Schema (example with empty values):
{
  "score": 0.0,
  "magnitude": 0.0,
  "emotions": {"joy": 0.0, "sadness": 0.0},
  "primary_emotion": "<string>"
}`
}

// GetAnalyzerUserPrompt builds a compact user message around the text to score.
func GetAnalyzerUserPrompt(text string) string {
	return fmt.Sprintf("Analyze the sentiment and emotions of the following text and respond with the JSON per schema.\n\nText: %s", text)
}

// GetImageSystemPrompt directs the vision model to the same JSON schema,
// extended with a short description of what the image depicts.
func GetImageSystemPrompt() string {
	return `You are an emotion analysis engine for images in a mental wellness journal. Look at the image and produce one valid JSON object only (no markdown, no commentary):

{
  "score": 0.0,
  "emotions": {"joy": 0.0, "sadness": 0.0},
  "primary_emotion": "<string>",
  "remarks": "<one sentence describing the emotional content of the image>"
}

Use lowercase emotion labels: joy, trust, fear, surprise, sadness, disgust, anger, anticipation, serenity, interest.`
}
