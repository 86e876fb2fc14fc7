package match

// Log is the append-only message log of a hearing.
type Log struct {
	messages []Message
}

// NewLog starts a log from previously persisted messages.
func NewLog(messages []Message) *Log {
	return &Log{messages: CopyMessages(messages)}
}

// Append adds a message at the end of the log.
func (l *Log) Append(message Message) {
	l.messages = append(l.messages, message)
}

// Len returns the number of messages.
func (l *Log) Len() int {
	return len(l.messages)
}

// Last returns the most recent message.
func (l *Log) Last() (Message, bool) {
	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}

// Messages returns a copy of the log.
func (l *Log) Messages() []Message {
	return CopyMessages(l.messages)
}
