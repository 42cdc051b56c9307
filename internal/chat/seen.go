package chat

// markSeen records viewer on the message. It reports false when nothing
// changed: the viewer is the sender or already acknowledged it.
func (m *MessageEnvelope) markSeen(viewer string) bool {
	if viewer == "" || viewer == m.Sender {
		return false
	}
	for _, name := range m.SeenBy {
		if name == viewer {
			return false
		}
	}
	m.SeenBy = append(m.SeenBy, viewer)
	return true
}
