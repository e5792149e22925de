package app

import (
	"strings"

	"docchat/internal/ai"
	"docchat/internal/model"
	"docchat/internal/vectorstore"
)

const answerSystemPrompt = "You are an intelligent assistant that helps users answer questions based on a document they have uploaded and previous interactions in this chat. Please consider the context from the uploaded document as well as the ongoing conversation when formulating your responses. Your task is to respond accurately and concisely based on the provided context."

// buildAnswerPrompt assembles the fixed two-part instruction around the
// conversation history: system role first, prior turns in order, then the
// user turn interpolating the retrieved passages and the question.
func buildAnswerPrompt(history []model.Message, passages []vectorstore.Passage, question string) []ai.ChatMessage {
	messages := make([]ai.ChatMessage, 0, len(history)+2)
	messages = append(messages, ai.ChatMessage{
		Role:    "system",
		Content: answerSystemPrompt,
	})

	for _, item := range history {
		role := item.Role
		if role == "" {
			role = model.RoleUser
		}
		messages = append(messages, ai.ChatMessage{
			Role:    role,
			Content: item.Content,
		})
	}

	var context strings.Builder
	for i, p := range passages {
		if i > 0 {
			context.WriteString("\n---\n")
		}
		context.WriteString(p.Text)
	}

	var user strings.Builder
	user.WriteString("Here is the context from the uploaded document: ")
	user.WriteString(context.String())
	user.WriteString("\n\nNow, answer the following question: ")
	user.WriteString(question)
	user.WriteString(" Based on the provided document and the chat history, answer the user's question. If the answer cannot be found in the document or the chat history, politely inform the user that the information they are asking for is not available.")

	messages = append(messages, ai.ChatMessage{
		Role:    model.RoleUser,
		Content: user.String(),
	})
	return messages
}
