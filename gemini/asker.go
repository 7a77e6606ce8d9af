package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/solracnyc/gasrag"
	"google.golang.org/genai"
)

// DefaultAnswerModel is the generation model used by Asker.
const DefaultAnswerModel = "gemini-2.5-flash"

// Ensure Asker implements gasrag.Asker at compile time.
var _ gasrag.Asker = (*Asker)(nil)

// Asker implements gasrag.Asker using Google Gemini.
type Asker struct {
	client *genai.Client
	model  string
}

// NewAsker creates a new Asker. An empty model selects DefaultAnswerModel.
func NewAsker(client *genai.Client, model string) *Asker {
	if model == "" {
		model = DefaultAnswerModel
	}
	return &Asker{client: client, model: model}
}

// Ask answers a question from the retrieved chunks.
func (a *Asker) Ask(ctx context.Context, question string, results []gasrag.SearchResult) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", gasrag.Errorf(gasrag.EINVALID, "question required")
	}
	if len(results) == 0 {
		return "", gasrag.Errorf(gasrag.ENOTFOUND, "no relevant chunks found")
	}

	result, err := a.client.Models.GenerateContent(ctx, a.model,
		[]*genai.Content{{
			Parts: []*genai.Part{{Text: BuildUserPrompt(results, question)}},
		}},
		BuildConfig(),
	)
	if err != nil {
		return "", statusError(err)
	}
	if result == nil {
		return "", gasrag.Errorf(gasrag.EINTERNAL, "gemini returned nil result")
	}

	return result.Text(), nil
}

// BuildConfig returns the GenerateContentConfig for Gemini API calls.
func BuildConfig() *genai.GenerateContentConfig {
	temp := float32(0.2)
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{
				Text: "You are a helpful assistant answering questions about Google Apps Script. Answer based only on the reference excerpts provided and cite the source URL of each excerpt you use. If the answer is not in the excerpts, say so.",
			}},
		},
		Temperature: &temp,
	}
}

// BuildUserPrompt builds the user prompt containing retrieved excerpts and
// the question.
func BuildUserPrompt(results []gasrag.SearchResult, question string) string {
	var sb strings.Builder
	sb.WriteString("<excerpts>\n")
	for i, r := range results {
		source, _ := r.Metadata["source_url"].(string)
		sb.WriteString("<excerpt>\n")
		fmt.Fprintf(&sb, "<index>%d</index>\n", i+1)
		fmt.Fprintf(&sb, "<title>%s</title>\n", gasrag.ResultTitle(r))
		fmt.Fprintf(&sb, "<source>%s</source>\n", source)
		fmt.Fprintf(&sb, "<similarity>%.3f</similarity>\n", r.Similarity)
		fmt.Fprintf(&sb, "<content>%s</content>\n", r.Content)
		sb.WriteString("</excerpt>\n")
	}
	sb.WriteString("</excerpts>\n\n")
	fmt.Fprintf(&sb, "Question: %s", question)
	return sb.String()
}
