package compaction

import (
	"fmt"

	"contextkeeper/internal/message"
)

// conversation returns n messages alternating user/assistant, user first.
func conversation(n int) []message.Message {
	msgs := make([]message.Message, n)
	for i := range msgs {
		role := message.RoleUser
		if i%2 == 1 {
			role = message.RoleAssistant
		}
		msgs[i] = message.New(role, fmt.Sprintf("message %d", i))
	}
	return msgs
}

func readResult(path, body string) message.Message {
	return message.New(message.RoleUser, fmt.Sprintf("[read_file for '%s'] Result:", path), body)
}

func writeResult(tool, path, body string) message.Message {
	return message.New(message.RoleUser, fmt.Sprintf("[%s for '%s'] Result:", tool, path), body)
}

func mention(path, body string) string {
	return fmt.Sprintf(`<file_content path="%s">%s</file_content>`, path, body)
}

func userMention(body string) message.Message {
	return message.New(message.RoleUser, "<task>", body)
}

func reply(text string) message.Message {
	return message.New(message.RoleAssistant, text)
}
