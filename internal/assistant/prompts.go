package assistant

import (
	"strings"

	"github.com/mohammad-safakhou/intelliweb/provider"
)

const routerSystemPrompt = `You route user questions to the best source for answering them. Pick exactly one source:

LLM: conversational messages, questions about your own capabilities, and anything that is not time-sensitive and can be answered from general knowledge.
WebSearch: questions about a topic, or about events that happened more than about three weeks ago. Use this when unsure.
NewsSearch: very recent events, breaking news and anything from the last few weeks.

Also write search_query: a short search engine query that would find the answer. When the source is LLM, search_query must be "NA".`

var routingSchema = provider.NewSchema("routing", `{
  "type": "object",
  "properties": {
    "source": {"type": "string", "enum": ["LLM", "WebSearch", "NewsSearch"]},
    "search_query": {"type": "string"}
  },
  "required": ["source", "search_query"]
}`)

const reframeSystemPrompt = `You rewrite the latest user query of a conversation so that it can be understood without the conversation.

If the new query is topically related to the conversation, fold in the named entities it refers to (diseases, genes, drugs, organisations, people, places, products and so on) so the query stands alone.
If the new query is not related to the conversation, return it verbatim.
Never answer the query.`

var reframeSchema = provider.NewSchema("reframe", `{
  "type": "object",
  "properties": {
    "reframed_query": {"type": "string"}
  },
  "required": ["reframed_query"]
}`)

func reframePrompt(history, query string) string {
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	b.WriteString(history)
	b.WriteString("\nNew query: ")
	b.WriteString(query)
	return b.String()
}

const followUpSystemPrompt = `You suggest what the user could ask next.

Read the exchange below and write exactly 3 distinct follow-up questions the user is likely to ask. Write them in the user's voice, as the user would type them. Keep each question short and self-contained.`

var followUpSchema = provider.NewSchema("followups", `{
  "type": "object",
  "properties": {
    "queries": {
      "type": "array",
      "items": {"type": "string"},
      "minItems": 3,
      "maxItems": 3
    }
  },
  "required": ["queries"]
}`)

// exchangeDivider closes each serialised question and answer pair.
var exchangeDivider = strings.Repeat("-", 60)
