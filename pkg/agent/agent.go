// Package agent is a conversational budget assistant backed by the Gemini
// API, with function-calling access to the transaction ledger.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

const systemPrompt = `You are a personal budget assistant. You answer questions
about the user's spending, budget position and merchants using the tools you
are given. Amounts are in PLN.

Rules:
- Always fetch data through the tools; never invent numbers.
- Keep answers short and concrete. Telegram-friendly plain text, no Markdown
  tables.
- When the user asks to categorize a merchant, confirm the keyword, category
  and Need/Want type you applied.
- Dates are YYYY-MM-DD.`

// maxToolRounds bounds tool-call loops per user message so a confused model
// cannot spin forever.
const maxToolRounds = 6

// Agent runs per-chat conversations against the Gemini API.
type Agent struct {
	client *genai.Client
	model  string
	tools  *Toolbox
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[int64][]*genai.Content
}

// New creates the agent. model is the Gemini model name, e.g.
// "gemini-2.5-flash".
func New(ctx context.Context, apiKey, model string, tools *Toolbox, logger *slog.Logger) (*Agent, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if tools.Now == nil {
		tools.Now = time.Now
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Agent{
		client:   client,
		model:    model,
		tools:    tools,
		logger:   logger,
		sessions: make(map[int64][]*genai.Content),
	}, nil
}

// Chat sends one user message in the chat's session and returns the model's
// reply. Tool calls are executed transparently.
func (a *Agent) Chat(ctx context.Context, chatID int64, text string) (string, error) {
	a.mu.Lock()
	history := a.sessions[chatID]
	a.mu.Unlock()

	history = append(history, genai.NewContentFromText(text, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(a.systemText(), genai.RoleUser),
		Tools: []*genai.Tool{
			{FunctionDeclarations: declarations()},
		},
	}

	var reply string
	for round := 0; ; round++ {
		if round >= maxToolRounds {
			return "", fmt.Errorf("model exceeded %d tool rounds", maxToolRounds)
		}

		resp, err := a.client.Models.GenerateContent(ctx, a.model, history, config)
		if err != nil {
			return "", fmt.Errorf("generating reply: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return "", fmt.Errorf("empty response from model")
		}
		history = append(history, resp.Candidates[0].Content)

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			reply = strings.TrimSpace(resp.Text())
			break
		}

		parts := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			a.logger.Debug("executing tool call", "chat_id", chatID, "tool", call.Name)
			result := a.tools.dispatch(ctx, call)
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name:     call.Name,
					Response: result,
				},
			})
		}
		history = append(history, &genai.Content{Role: genai.RoleUser, Parts: parts})
	}

	if reply == "" {
		reply = "I don't have an answer for that."
	}

	a.mu.Lock()
	a.sessions[chatID] = history
	a.mu.Unlock()
	return reply, nil
}

// Reset discards the chat's conversation history.
func (a *Agent) Reset(chatID int64) {
	a.mu.Lock()
	delete(a.sessions, chatID)
	a.mu.Unlock()
}

// WeeklyDigest produces a one-shot spending digest outside any chat session.
func (a *Agent) WeeklyDigest(ctx context.Context) (string, error) {
	prompt := "Write a short weekly budget digest for the user. Use the tools to " +
		"look at last week's and this month's spending, call out the biggest " +
		"categories and merchants, and give one actionable suggestion. Plain text, " +
		"under 120 words."

	// A throwaway session keyed off a reserved id keeps digest turns out of
	// real conversations.
	const digestChat = -1
	defer a.Reset(digestChat)
	return a.Chat(ctx, digestChat, prompt)
}

func (a *Agent) systemText() string {
	return systemPrompt + "\nToday is " + a.tools.Now().Format("2006-01-02 (Monday)") + "."
}
