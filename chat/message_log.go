package chat

import "ShopChat/models"

// messageLog tracks what the open chat view has rendered, so that a
// message id is rendered at most once however often it arrives.
type messageLog struct {
	chatID  string
	seen    map[string]struct{}
	live    []models.Message // rendered since the last history landed
	pending []models.Message // local echoes not yet confirmed by the server
}

func newMessageLog() *messageLog {
	return &messageLog{seen: make(map[string]struct{})}
}

// start forgets everything and makes chatID the tracked chat.
func (l *messageLog) start(chatID string) {
	l.chatID = chatID
	l.seen = make(map[string]struct{})
	l.live = nil
	l.pending = nil
}

// reset makes history the rendered list of chatID and returns it with
// repeated ids dropped. Messages rendered live for the same chat that the
// history does not cover yet stay at the end.
func (l *messageLog) reset(chatID string, history []models.Message) []models.Message {
	live, pending := l.live, l.pending
	if chatID != l.chatID {
		live, pending = nil, nil
	}
	l.start(chatID)

	out := make([]models.Message, 0, len(history)+len(live))
	covered := make(map[string]int)
	for _, m := range history {
		if m.MessageID != "" {
			if _, dup := l.seen[m.MessageID]; dup {
				continue
			}
			l.seen[m.MessageID] = struct{}{}
		}
		covered[bodyKey(m)]++
		out = append(out, m)
	}

	for _, m := range live {
		if m.MessageID != "" {
			if _, dup := l.seen[m.MessageID]; dup {
				continue
			}
			l.seen[m.MessageID] = struct{}{}
		} else if covered[bodyKey(m)] > 0 {
			covered[bodyKey(m)]--
			continue
		}
		out = append(out, m)
		l.live = append(l.live, m)
		if m.MessageID == "" && isPending(pending, m) {
			l.pending = append(l.pending, m)
		}
	}
	return out
}

// add reports whether msg still has to be rendered.
func (l *messageLog) add(msg models.Message) bool {
	if msg.MessageID != "" {
		if _, dup := l.seen[msg.MessageID]; dup {
			return false
		}
		l.seen[msg.MessageID] = struct{}{}
	}
	for i, p := range l.pending {
		if bodyKey(p) == bodyKey(msg) {
			l.pending = append(l.pending[:i:i], l.pending[i+1:]...)
			return false
		}
	}
	l.live = append(l.live, msg)
	return true
}

// echo records a locally rendered message awaiting its server echo.
func (l *messageLog) echo(msg models.Message) {
	l.pending = append(l.pending, msg)
	l.live = append(l.live, msg)
}

func bodyKey(m models.Message) string {
	return string(m.Sender) + "\x00" + m.Content
}

func isPending(pending []models.Message, m models.Message) bool {
	for _, p := range pending {
		if bodyKey(p) == bodyKey(m) && p.Timestamp.Equal(m.Timestamp) {
			return true
		}
	}
	return false
}
