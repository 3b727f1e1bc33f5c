package retrieval

import (
	"fmt"
	"strings"
)

const separator = "------------"

const systemPrompt = "You are a helpful answering assistant that can answer user queries on any topic. " +
	"Respond in a very comprehensive, informative and detailed manner. " +
	"Always give a direct answer. Never mention \"the context\", the search results or how you found the information."

func knowledgeSystemPrompt(today string) string {
	return systemPrompt + "\nAnswer from your training knowledge in no more than 150 words. " +
		"For your reference, today's date is: " + today + "."
}

// qaPrompt frames the first chunk. News answers stay within the results;
// web answers may lean on the model's own knowledge.
func qaPrompt(news bool, query, context, today string) string {
	var b strings.Builder
	if news {
		b.WriteString("Based on the provided web search results below.\n")
		fmt.Fprintf(&b, "%s\n%s\n%s\n", separator, context, separator)
		b.WriteString("Generate a comprehensive, very informative and detailed response (but not more than 150 words) " +
			"to answer the question below. Your response must be based solely on the provided web search results above.\n" +
			"Combine search results together into a coherent answer. Do not repeat text.\n")
		fmt.Fprintf(&b, "For your reference, today's date is: %s.\n", today)
		b.WriteString(query)
		return b.String()
	}
	b.WriteString("You are asked to provide an answer to the question below.\n")
	b.WriteString(query + "\n")
	b.WriteString("Generate a very comprehensive, informative and detailed response (but not more than 150 words) " +
		"based on your extensive training knowledge. Do not repeat text.\n" +
		"If needed, you can use the additional context below to better your answer.\n")
	fmt.Fprintf(&b, "%s\n%s\n%s\n", separator, context, separator)
	fmt.Fprintf(&b, "For your reference, today's date is: %s and the context provided is up-to-date.", today)
	return b.String()
}

func refinePrompt(news bool, context string) string {
	var b strings.Builder
	b.WriteString("You have the opportunity to refine your above answer (only if needed) " +
		"with some more context below extracted from web search results.\n")
	fmt.Fprintf(&b, "%s\n%s\n%s\n", separator, context, separator)
	if news {
		b.WriteString("Given the new context, refine the original answer to better answer the question " +
			"(but not more than 150 words). Make sure everything you say is supported by the web search results. ")
	} else {
		b.WriteString("Given the new context and your prior knowledge, you can refine the original answer if " +
			"anything new and relevant to the answer can be added. Make sure your answer is not more than 150 words. ")
	}
	b.WriteString("Answer in a comprehensive, very informative and detailed manner. Do not repeat text. " +
		"Do not mention the usage of this additional context anywhere in your answer. " +
		"If the context isn't useful, output the original answer again.")
	return b.String()
}
