package prompt

import "github.com/habitatfuturo/habitat/internal/adapter"

// TrimHistory drops the oldest exchanges until the conversation fits within
// maxTokens. An exchange is a user message and the replies that follow it,
// so the first kept non-system turn is always a user turn. System messages
// and the exchange holding the newest turn are always kept. A non-positive
// budget disables trimming.
func TrimHistory(history []adapter.Message, maxTokens int, counter Counter) []adapter.Message {
	if maxTokens <= 0 || counter == nil || len(history) == 0 {
		return history
	}

	total := 0
	for _, m := range history {
		total += counter.Count(m.Content)
	}
	if total <= maxTokens {
		return history
	}

	// Group non-system turns; replies before the first user turn form a
	// group of their own.
	var groups [][]int
	for i, m := range history {
		if m.Role == adapter.RoleSystem {
			continue
		}
		if m.Role == adapter.RoleUser || len(groups) == 0 {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], i)
	}

	drop := make([]bool, len(history))
	for g := 0; g < len(groups)-1 && total > maxTokens; g++ {
		for _, i := range groups[g] {
			drop[i] = true
			total -= counter.Count(history[i].Content)
		}
	}

	out := make([]adapter.Message, 0, len(history))
	for i, m := range history {
		if !drop[i] {
			out = append(out, m)
		}
	}
	return out
}
